//go:build !nomime

// This requires libmagic, so it is not compiled with -tags=nomime.
package platform

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/rakyll/magicmime"
)

var IsMimeDisabled = false

var magicMime *magicmime.Magic

// libmagic returns garbage when it's called from several
// goroutines at once.
var mutex = &sync.Mutex{}

var validMimeType = regexp.MustCompile(`^[\w.+-]+/[\w.+-]+$`)

// GuessMimeType returns the mime type of the file at absPath. When
// libmagic can't tell, or returns something that isn't a mime type,
// the answer is application/octet-stream.
func GuessMimeType(absPath string) (mimeType string, err error) {
	mutex.Lock()
	defer mutex.Unlock()
	if magicMime == nil {
		magicMime, err = magicmime.New(magicmime.MAGIC_MIME_TYPE)
		if err != nil {
			return "", fmt.Errorf("Error opening MimeMagic database: %v", err)
		}
	}
	mimeType = "application/octet-stream"
	guessedType, _ := magicMime.TypeByFile(absPath)
	if guessedType != "" && validMimeType.MatchString(guessedType) {
		mimeType = guessedType
	}
	return mimeType, nil
}
