// Common vars and constants, shared by many parts of lockssomatic.
package constants

import (
	"strings"
)

// Names of the LOCKSS daemon web services we talk to. Each service
// lives at {protocol}://{host}:{port}/ws/{ServiceName}.
const (
	DaemonStatusService = "DaemonStatusService"
	ContentService      = "ContentService"
	HasherService       = "HasherService"
)

// LockssNamespace is the XML namespace of all LOCKSS web service
// operations.
const LockssNamespace = "http://ws.lockss.org/"

// SoapEnvelopeNamespace is the SOAP 1.1 envelope namespace.
const SoapEnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"

// HashTypeV3File asks the hasher for a per-file V3 hash, which is
// what the daemons compare during polls.
const HashTypeV3File = "V3File"

// Sentinel values recorded in a DepositStatus in place of a hash.
const (
	// HashFailed means the box could not be asked, or refused to hash
	// the deposit.
	HashFailed = "*"
	// HashUnknown means the box answered but did not return a hash.
	HashUnknown = "-"
)

// Queries sent to the daemon's SQL-ish query operations.
const (
	QueryAll = "SELECT *"
)

// Checksum algorithms supported by the hasher.
const (
	AlgMd5    = "md5"
	AlgSha1   = "sha1"
	AlgSha256 = "sha256"
	AlgSha512 = "sha512"
)

var ChecksumAlgorithms = []string{AlgMd5, AlgSha1, AlgSha256, AlgSha512}

// LockssAlgorithmNames maps our algorithm names to the Java
// MessageDigest names the LOCKSS hasher expects.
var LockssAlgorithmNames = map[string]string{
	AlgMd5:    "MD5",
	AlgSha1:   "SHA-1",
	AlgSha256: "SHA-256",
	AlgSha512: "SHA-512",
}

// NormalizeAlgorithm converts names like "SHA-1", "SHA1" or "Sha256"
// to one of our algorithm constants. Unknown names are lower-cased
// and returned without dashes, so the caller can report them.
func NormalizeAlgorithm(algorithm string) string {
	return strings.Replace(strings.ToLower(strings.TrimSpace(algorithm)), "-", "", -1)
}

// Box protocol defaults.
const (
	DefaultBoxProtocol        = "TCP"
	DefaultBoxPort            = 9729
	DefaultWebServicePort     = 8081
	DefaultWebServiceProtocol = "http"
)

// Notification events published when a box needs attention.
const (
	EventUnreachable      = "unreachable"
	EventFreeSpaceWarning = "free_space_warning"
)

// Storage drivers for the persistence layer.
const (
	StorageBolt     = "bolt"
	StoragePostgres = "postgres"
)

var StorageDrivers = []string{StorageBolt, StoragePostgres}

// HashBlockSize is the size of the chunks we read when computing
// a digest. Deposits can be arbitrarily large, so we never read
// the whole file into memory.
const HashBlockSize = 64 * 1024
