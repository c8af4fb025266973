package testutil_test

import (
	"os"
	"strings"
	"testing"

	"github.com/sfu-dhil/lockssomatic/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `-------- BEGIN deposit abc
{"deposit_id": 1, "agreement": 0.5}
 -------- END deposit abc
-------- BEGIN deposit xyz
{"deposit_id": 2, "agreement": 1}
 -------- END deposit xyz
-------- BEGIN deposit abc
{"deposit_id": 1, "agreement": 0.75}
 -------- END deposit abc
`

type logRecord struct {
	DepositId int64   `json:"deposit_id"`
	Agreement float64 `json:"agreement"`
}

func TestFindRecordInReader(t *testing.T) {
	record := &logRecord{}
	err := testutil.FindRecordInReader(strings.NewReader(sampleLog), "deposit xyz", record)
	require.Nil(t, err)
	assert.EqualValues(t, 2, record.DepositId)
	assert.Equal(t, 1.0, record.Agreement)

	// Should get the LAST copy of the record, if it appears
	// more than once in the logs.
	record = &logRecord{}
	err = testutil.FindRecordInReader(strings.NewReader(sampleLog), "deposit abc", record)
	require.Nil(t, err)
	assert.Equal(t, 0.75, record.Agreement)

	err = testutil.FindRecordInReader(strings.NewReader(sampleLog), "deposit nope", record)
	assert.NotNil(t, err)
}

func TestFindRecordInLog(t *testing.T) {
	tempFile, err := os.CreateTemp("", "json_log_test")
	require.Nil(t, err)
	defer os.Remove(tempFile.Name())
	_, err = tempFile.WriteString(sampleLog)
	require.Nil(t, err)
	tempFile.Close()

	record := &logRecord{}
	err = testutil.FindRecordInLog(tempFile.Name(), "deposit abc", record)
	require.Nil(t, err)
	assert.EqualValues(t, 1, record.DepositId)

	err = testutil.FindRecordInLog("/does/not/exist.json", "deposit abc", record)
	assert.NotNil(t, err)
}
