package network

import (
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/sfu-dhil/lockssomatic"
	"github.com/warpfork/go-errcat"
)

// GetS3Session returns an S3 session for awsRegion, with credentials
// from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
func GetS3Session(awsRegion string) (*session.Session, error) {
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" || os.Getenv("AWS_SECRET_ACCESS_KEY") == "" {
		return nil, errcat.Errorf(lockssomatic.ErrConfig,
			"AWS_ACCESS_KEY_ID and/or AWS_SECRET_ACCESS_KEY not set in environment")
	}
	_session, err := session.NewSession(&aws.Config{
		Region:      aws.String(awsRegion),
		Credentials: credentials.NewEnvCredentials(),
	})
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrConfig, "Cannot create AWS session: %v", err)
	}
	return _session, nil
}
