package network

import (
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sfu-dhil/lockssomatic/models"
)

// S3Upload copies a fetched deposit into an S3 bucket.
//
//	upload := NewS3Upload("us-east-1", "lom-exports", "exports", deposit, "application/zip")
//	upload.Send(reader)
//	if upload.ErrorMessage != "" {
//	   ... do something ...
//	}
//	urlOfNewItem := upload.Response.Location
type S3Upload struct {
	AWSRegion    string
	ErrorMessage string
	UploadInput  *s3manager.UploadInput
	Response     *s3manager.UploadOutput
	session      *session.Session
}

// NewS3Upload creates an upload of deposit to bucket. The object key
// is the deposit's uuid under prefix, and the deposit's identity and
// checksum go into the object's metadata.
func NewS3Upload(region, bucket, prefix string, deposit *models.Deposit, contentType string) *S3Upload {
	key := path.Join(prefix, deposit.Uuid)
	uploadInput := &s3manager.UploadInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}
	uploadInput.Metadata = make(map[string]*string)
	upload := &S3Upload{
		AWSRegion:   region,
		UploadInput: uploadInput,
	}
	upload.AddMetadata("uuid", deposit.Uuid)
	upload.AddMetadata("url", deposit.Url)
	upload.AddMetadata("checksum-type", deposit.ChecksumType)
	upload.AddMetadata("checksum-value", deposit.ChecksumValue)
	return upload
}

func (client *S3Upload) GetSession() *session.Session {
	if client.session == nil {
		var err error
		client.session, err = GetS3Session(client.AWSRegion)
		if err != nil {
			client.ErrorMessage = err.Error()
		}
	}
	return client.session
}

// AddMetadata sets x-amz-meta-<key> on the uploaded object.
func (client *S3Upload) AddMetadata(key, value string) {
	client.UploadInput.Metadata[key] = &value
}

// Send uploads everything in reader. If ErrorMessage == "", the
// upload succeeded. Caller is responsible for closing the reader.
func (client *S3Upload) Send(reader io.Reader) {
	_session := client.GetSession()
	if _session == nil {
		return
	}
	client.UploadInput.Body = reader
	uploader := s3manager.NewUploader(_session)
	uploader.LeavePartsOnError = false // we pay for abandoned parts
	var err error
	client.Response, err = uploader.Upload(client.UploadInput)
	if err != nil {
		client.ErrorMessage = err.Error()
	}
}
