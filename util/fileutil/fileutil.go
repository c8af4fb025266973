package fileutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/sfu-dhil/lockssomatic/constants"
)

// LomHome returns the absolute path to the lockssomatic root directory,
// which contains source, config and test files. You can set this
// explicitly by defining an environment variable called LOM_HOME.
// Otherwise, this function walks up from the current working directory
// until it finds the directory holding go.mod. If neither works, this
// returns an error.
func LomHome() (lomHome string, err error) {
	lomHome = os.Getenv("LOM_HOME")
	if lomHome != "" {
		return filepath.Abs(lomHome)
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("Cannot determine lockssomatic home because LOM_HOME " +
		"is not set and no go.mod was found above the working directory.")
}

// LoadRelativeFile reads the file at the specified path
// relative to LOM_HOME and returns the contents as a byte array.
func LoadRelativeFile(relativePath string) ([]byte, error) {
	absPath, err := RelativeToAbsPath(relativePath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(absPath)
}

// Reads data from the file at absPath (an absolute path)
// and coverts it to an object of whatever type param obj
// is. Returns an error if there's a problem reading the
// file or unmarshalling the data into the type you passed in.
// On success, this returns nil and your object will contain
// the data from the file.
func JsonFileToObject(absPath string, obj interface{}) error {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, obj)
}

// Converts a relative path within the lockssomatic directory tree
// to an absolute path.
func RelativeToAbsPath(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return relativePath, nil
	}
	lomHome, err := LomHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(lomHome, relativePath), nil
}

// Returns true if the file at path exists, false if not.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	if err != nil && os.IsNotExist(err) {
		return false
	}
	return true
}

// Expands the tilde in a directory path to the current
// user's home directory. For example, on Linux, ~/data
// would expand to something like /home/josie/data
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	homeDir := usr.HomeDir + "/"
	expandedDir := strings.Replace(filePath, "~/", homeDir, 1)
	return expandedDir, nil
}

// NewHash returns a hash.Hash for the named algorithm. The name is
// normalized first, so "SHA-1", "sha1" and "Sha1" all work.
func NewHash(algorithm string) (hash.Hash, error) {
	switch constants.NormalizeAlgorithm(algorithm) {
	case constants.AlgMd5:
		return md5.New(), nil
	case constants.AlgSha1:
		return sha1.New(), nil
	case constants.AlgSha256:
		return sha256.New(), nil
	case constants.AlgSha512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("Unsupported algorithm: %s", algorithm)
}

// DigestReader reads everything from reader in fixed-size blocks and
// returns the hex-encoded digest along with the number of bytes read.
// If writer is not nil, everything read is also copied to writer.
func DigestReader(reader io.Reader, writer io.Writer, algorithm string) (string, int64, error) {
	_hash, err := NewHash(algorithm)
	if err != nil {
		return "", 0, err
	}
	var dest io.Writer = _hash
	if writer != nil {
		dest = io.MultiWriter(_hash, writer)
	}
	buffer := make([]byte, constants.HashBlockSize)
	// Hide any WriteTo method, or CopyBuffer ignores our buffer.
	byteCount, err := io.CopyBuffer(dest, struct{ io.Reader }{reader}, buffer)
	if err != nil {
		return "", byteCount, err
	}
	return fmt.Sprintf("%x", _hash.Sum(nil)), byteCount, nil
}

// CalculateChecksum calculates the checksum of a file. Param pathToFile
// is the path the file, and algorithm should be one of
// constants.ChecksumAlgorithms, in any of the spellings NormalizeAlgorithm
// accepts. Returns the hex-encoded digest or an error.
func CalculateChecksum(pathToFile, algorithm string) (string, error) {
	inputFile, err := os.Open(pathToFile)
	if err != nil {
		return "", err
	}
	defer inputFile.Close()
	digest, _, err := DigestReader(inputFile, nil, algorithm)
	return digest, err
}
