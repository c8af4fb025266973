package workers

import (
	stdcontext "context"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/platform"
	"github.com/sfu-dhil/lockssomatic/util"
	"github.com/sfu-dhil/lockssomatic/util/fileutil"
	"github.com/warpfork/go-errcat"
)

// ContentFetcher downloads a preserved deposit from one of the boxes
// in its network. It only serves deposits that every box agreed on at
// the last check, and only returns content whose checksum matches.
type ContentFetcher struct {
	Context *context.Context

	// Shuffle sets the order in which boxes are tried. The default
	// is random, so downloads are spread across the network.
	Shuffle func(boxes []*models.Box)
}

func NewContentFetcher(_context *context.Context) *ContentFetcher {
	return &ContentFetcher{
		Context: _context,
		Shuffle: func(boxes []*models.Box) {
			rand.Shuffle(len(boxes), func(i, j int) {
				boxes[i], boxes[j] = boxes[j], boxes[i]
			})
		},
	}
}

// FetchByUuid is Fetch for the deposit with the specified uuid.
func (fetcher *ContentFetcher) FetchByUuid(ctx stdcontext.Context, uuid string) (*models.Deposit, *FetchedContent, error) {
	if !util.LooksLikeUUID(uuid) {
		return nil, nil, errcat.Errorf(lockssomatic.ErrConfig, "'%s' is not a uuid", uuid)
	}
	deposit, err := fetcher.Context.Store.FindDeposit(uuid)
	if err != nil {
		return nil, nil, err
	}
	if deposit == nil {
		return nil, nil, errcat.Errorf(lockssomatic.ErrContentUnavailable, "No deposit with uuid %s", uuid)
	}
	reader, err := fetcher.Fetch(ctx, deposit)
	return deposit, reader, err
}

// Fetch returns the content of deposit from the first box whose copy
// matches the deposit's checksum. The content is spooled to a temp
// file; closing the returned FetchedContent deletes it.
//
// Deposits without full agreement are refused with ErrNotReady, and
// nothing is downloaded. If no box has a good copy, the error is
// ErrContentUnavailable.
func (fetcher *ContentFetcher) Fetch(ctx stdcontext.Context, deposit *models.Deposit) (*FetchedContent, error) {
	if !deposit.HasFullAgreement() {
		agreement := "never checked"
		if deposit.Agreement != nil {
			agreement = fmt.Sprintf("%.2f", *deposit.Agreement)
		}
		return nil, errcat.Errorf(lockssomatic.ErrNotReady,
			"Deposit %s has insufficient agreement (%s)", deposit.Uuid, agreement)
	}
	boxes, err := fetcher.boxesFor(deposit)
	if err != nil {
		return nil, err
	}
	fetcher.Shuffle(boxes)
	for _, box := range boxes {
		if ctx.Err() != nil {
			return nil, errcat.Errorf(lockssomatic.ErrContentUnavailable,
				"Fetch of deposit %s cancelled: %v", deposit.Uuid, ctx.Err())
		}
		content, err := fetcher.fetchFromBox(ctx, box, deposit)
		if err != nil {
			fetcher.Context.MessageLog.Warningf("Cannot fetch deposit %s from %s: %v",
				deposit.Uuid, box.HostPort(), err)
			continue
		}
		fetcher.Context.MessageLog.Infof("Fetched deposit %s (%s) from %s",
			deposit.Uuid, content.MimeType, box.HostPort())
		return content, nil
	}
	return nil, errcat.Errorf(lockssomatic.ErrContentUnavailable,
		"No box in the network has a good copy of deposit %s", deposit.Uuid)
}

func (fetcher *ContentFetcher) boxesFor(deposit *models.Deposit) ([]*models.Box, error) {
	store := fetcher.Context.Store
	au, err := store.FindAu(deposit.AuId)
	if err != nil {
		return nil, err
	}
	if au == nil {
		return nil, errcat.Errorf(lockssomatic.ErrStorage,
			"Deposit %s belongs to AU %d, which does not exist", deposit.Uuid, deposit.AuId)
	}
	plns, err := store.FindPlns([]int64{au.PlnId})
	if err != nil {
		return nil, err
	}
	boxes, err := store.FindActiveBoxes(plns[0])
	if err != nil {
		return nil, err
	}
	shuffled := make([]*models.Box, len(boxes))
	copy(shuffled, boxes)
	return shuffled, nil
}

func (fetcher *ContentFetcher) fetchFromBox(ctx stdcontext.Context, box *models.Box, deposit *models.Deposit) (*FetchedContent, error) {
	response, err := fetcher.Context.Lockss.Client().FetchContent(ctx, box, deposit.Url)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	tempDir := fetcher.Context.Config.TempDirectory
	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0755); err != nil {
			return nil, fmt.Errorf("Cannot create temp directory %s: %v", tempDir, err)
		}
	}
	tempFile, err := os.CreateTemp(tempDir, "lom_fetch_*")
	if err != nil {
		return nil, fmt.Errorf("Cannot create temp file: %v", err)
	}
	reader := &FetchedContent{File: tempFile, Box: box.HostPort()}
	digest, size, err := fileutil.DigestReader(response.Body, tempFile, deposit.ChecksumType)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("Error reading content: %v", err)
	}
	if !deposit.ChecksumMatches(digest) {
		reader.Close()
		return nil, fmt.Errorf("Checksum mismatch: expected %s, got %s", deposit.ChecksumValue, digest)
	}
	if deposit.Size > 0 && size != deposit.Size {
		fetcher.Context.MessageLog.Infof("Deposit %s from %s is %d bytes; expected %d",
			deposit.Uuid, box.HostPort(), size, deposit.Size)
	}
	reader.Size = size
	reader.MimeType, err = platform.GuessMimeType(tempFile.Name())
	if err != nil {
		fetcher.Context.MessageLog.Warningf("Cannot guess mime type of deposit %s: %v", deposit.Uuid, err)
		reader.MimeType = "application/octet-stream"
	}
	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		reader.Close()
		return nil, err
	}
	return reader, nil
}

// FetchedContent is a verified copy of a deposit, spooled to a temp
// file that is deleted on Close.
type FetchedContent struct {
	*os.File
	Box      string
	MimeType string
	Size     int64
}

func (content *FetchedContent) Close() error {
	err := content.File.Close()
	os.Remove(content.File.Name())
	return err
}
