// Package lockssomatic holds the error categories shared by the
// box client, the LOCKSS service layer, the status sweeps and the
// content fetcher.
package lockssomatic

import (
	"github.com/warpfork/go-errcat"
)

// ErrorCategory is used with github.com/warpfork/go-errcat to classify
// errors raised while talking to LOCKSS boxes. Use CategoryOf to
// recover the category from an error.
type ErrorCategory string

const (
	// ErrUnreachable means we could not open a connection to the box,
	// or the connection failed or timed out before we got a response.
	ErrUnreachable = ErrorCategory("lom-box-unreachable")

	// ErrNotReady means the daemon answered, but reported that it is
	// not ready to service requests (usually because it is starting up).
	// The content fetcher also uses this when a deposit has not reached
	// full agreement.
	ErrNotReady = ErrorCategory("lom-not-ready")

	// ErrRemoteFault means the daemon responded but declined the
	// operation, e.g. hashing a URL it has no record of.
	ErrRemoteFault = ErrorCategory("lom-remote-fault")

	// ErrProtocol means the daemon's response could not be decoded.
	// This usually points to a version mismatch, not a network problem.
	ErrProtocol = ErrorCategory("lom-protocol-error")

	// ErrContentUnavailable means no box could supply a verified copy
	// of a deposit's content.
	ErrContentUnavailable = ErrorCategory("lom-content-unavailable")

	// ErrConfig means the configuration is missing or invalid.
	ErrConfig = ErrorCategory("lom-config-error")

	// ErrStorage means the persistence layer failed.
	ErrStorage = ErrorCategory("lom-storage-error")
)

// CategoryOf returns the ErrorCategory of err, or an empty category
// if err is nil or was not created with errcat.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	catErr, ok := err.(errcat.Error)
	if !ok {
		return ""
	}
	category, ok := catErr.Category().(ErrorCategory)
	if !ok {
		return ""
	}
	return category
}

// IsBoxFailure returns true if err describes a box that could not
// be used at all: unreachable or not ready. Faults and protocol errors
// mean the box was up.
func IsBoxFailure(err error) bool {
	category := CategoryOf(err)
	return category == ErrUnreachable || category == ErrNotReady
}
