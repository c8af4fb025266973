package constants_test

import (
	"testing"

	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeAlgorithm(t *testing.T) {
	assert.Equal(t, constants.AlgSha1, constants.NormalizeAlgorithm("SHA-1"))
	assert.Equal(t, constants.AlgSha1, constants.NormalizeAlgorithm("sha1"))
	assert.Equal(t, constants.AlgSha256, constants.NormalizeAlgorithm(" Sha-256 "))
	assert.Equal(t, constants.AlgMd5, constants.NormalizeAlgorithm("MD5"))
	assert.Equal(t, "crc32", constants.NormalizeAlgorithm("CRC-32"))
}

func TestLockssAlgorithmNames(t *testing.T) {
	for _, alg := range constants.ChecksumAlgorithms {
		_, ok := constants.LockssAlgorithmNames[alg]
		assert.True(t, ok, "missing LOCKSS name for %s", alg)
	}
}
