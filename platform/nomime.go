//go:build nomime

// Builds without libmagic report every file as
// application/octet-stream.
package platform

var IsMimeDisabled = true

func GuessMimeType(absPath string) (mimeType string, err error) {
	return "application/octet-stream", nil
}
