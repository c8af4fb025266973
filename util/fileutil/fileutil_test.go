package fileutil_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/util/fileutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLomHome(t *testing.T) {
	lomHome := os.Getenv("LOM_HOME")
	defer os.Setenv("LOM_HOME", lomHome)

	// Should use LOM_HOME, if it's set...
	os.Setenv("LOM_HOME", "/lom_home")
	home, err := fileutil.LomHome()
	require.Nil(t, err)
	assert.Equal(t, "/lom_home", home)

	// Otherwise, should find go.mod above the test directory.
	os.Setenv("LOM_HOME", "")
	home, err = fileutil.LomHome()
	require.Nil(t, err)
	assert.True(t, fileutil.FileExists(filepath.Join(home, "go.mod")))
}

func TestLoadRelativeFile(t *testing.T) {
	path := filepath.Join("config", "test.json")
	data, err := fileutil.LoadRelativeFile(path)
	require.Nil(t, err)
	assert.NotEmpty(t, data)
}

func TestJsonFileToObject(t *testing.T) {
	absPath, err := fileutil.RelativeToAbsPath(filepath.Join("config", "test.json"))
	require.Nil(t, err)
	obj := make(map[string]interface{})
	err = fileutil.JsonFileToObject(absPath, &obj)
	require.Nil(t, err)
	assert.Equal(t, "bolt", obj["StorageDriver"])
}

func TestRelativeToAbsPath(t *testing.T) {
	absPath, err := fileutil.RelativeToAbsPath("/already/absolute")
	require.Nil(t, err)
	assert.Equal(t, "/already/absolute", absPath)

	absPath, err = fileutil.RelativeToAbsPath("config")
	require.Nil(t, err)
	assert.True(t, filepath.IsAbs(absPath))
	assert.True(t, strings.HasSuffix(absPath, "config"))
}

func TestFileExists(t *testing.T) {
	assert.True(t, fileutil.FileExists("fileutil_test.go"))
	assert.False(t, fileutil.FileExists("NonExistentFile.xyz"))
}

func TestExpandTilde(t *testing.T) {
	expanded, err := fileutil.ExpandTilde("~/tmp")
	require.Nil(t, err)
	// Testing this cross-platform is pain. Different home dirs
	// on Windows, Linux, Mac.
	assert.True(t, len(expanded) > 5)
	assert.True(t, strings.HasSuffix(expanded, "tmp"))

	expanded, err = fileutil.ExpandTilde("/nothing/to/expand")
	require.Nil(t, err)
	assert.Equal(t, "/nothing/to/expand", expanded)
}

func TestNewHash(t *testing.T) {
	for _, alg := range []string{"md5", "MD5", "sha1", "SHA-1", "sha256", "SHA-256", "sha512", "SHA-512"} {
		_hash, err := fileutil.NewHash(alg)
		assert.Nil(t, err, alg)
		assert.NotNil(t, _hash, alg)
	}
	_, err := fileutil.NewHash("crc32")
	assert.NotNil(t, err)
}

func TestDigestReader(t *testing.T) {
	// Known digests of "hello world".
	expected := map[string]string{
		"md5":     "5eb63bbbe01eeed093cb22bb8f5acdc3",
		"SHA-1":   "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed",
		"sha256":  "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		"SHA-512": "309ecc489c12d6eb4cc40f50c902f2b4d0ed77ee511a7c7a9bcd3ca86d4cd86f989dd35bc5ff499670da34255b45b0cfd830e81f605dcf7dc5542e93ae9cd76f",
	}
	for alg, digest := range expected {
		actual, byteCount, err := fileutil.DigestReader(strings.NewReader("hello world"), nil, alg)
		require.Nil(t, err, alg)
		assert.Equal(t, digest, actual, alg)
		assert.EqualValues(t, 11, byteCount, alg)
	}
}

func TestDigestReaderCopiesToWriter(t *testing.T) {
	content := strings.Repeat("lockss", 20000)
	var buf bytes.Buffer
	_, byteCount, err := fileutil.DigestReader(strings.NewReader(content), &buf, "sha1")
	require.Nil(t, err)
	assert.EqualValues(t, len(content), byteCount)
	assert.Equal(t, content, buf.String())
}

// blockRecorder is a reader with a WriteTo method, like *os.File,
// that remembers the size of every read.
type blockRecorder struct {
	reader *strings.Reader
	sizes  []int
}

func (recorder *blockRecorder) Read(p []byte) (int, error) {
	recorder.sizes = append(recorder.sizes, len(p))
	return recorder.reader.Read(p)
}

func (recorder *blockRecorder) WriteTo(w io.Writer) (int64, error) {
	recorder.sizes = append(recorder.sizes, -1)
	return recorder.reader.WriteTo(w)
}

func TestDigestReaderReadsInBlocks(t *testing.T) {
	content := strings.Repeat("x", 3*constants.HashBlockSize)
	recorder := &blockRecorder{reader: strings.NewReader(content)}
	_, byteCount, err := fileutil.DigestReader(recorder, nil, "sha256")
	require.Nil(t, err)
	assert.EqualValues(t, len(content), byteCount)
	require.NotEmpty(t, recorder.sizes)
	for _, size := range recorder.sizes {
		assert.Equal(t, constants.HashBlockSize, size)
	}
}

func TestCalculateChecksum(t *testing.T) {
	tempFile, err := os.CreateTemp("", "fileutil_test")
	require.Nil(t, err)
	defer os.Remove(tempFile.Name())
	_, err = tempFile.WriteString("hello world")
	require.Nil(t, err)
	tempFile.Close()

	digest, err := fileutil.CalculateChecksum(tempFile.Name(), "md5")
	require.Nil(t, err)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", digest)

	_, err = fileutil.CalculateChecksum(tempFile.Name(), "bogus")
	assert.NotNil(t, err)

	_, err = fileutil.CalculateChecksum("/does/not/exist", "md5")
	assert.NotNil(t, err)
}
