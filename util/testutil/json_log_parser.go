package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// FindRecordInLog finds the last record logged under key in the JSON
// log at pathToLogFile and unmarshals it into obj. The sweeps log each
// status record between "-------- BEGIN key" and " -------- END key"
// lines, where key is something like "deposit <uuid>".
func FindRecordInLog(pathToLogFile, key string, obj interface{}) error {
	file, err := os.Open(pathToLogFile)
	if err != nil {
		return err
	}
	defer file.Close()
	return FindRecordInReader(file, key, obj)
}

// FindRecordInReader is FindRecordInLog for any reader, such as a
// bytes.Buffer behind a test's JSON logger.
func FindRecordInReader(reader io.Reader, key string, obj interface{}) error {
	jsonString := findJsonString(reader, key)
	if len(jsonString) == 0 {
		return fmt.Errorf("Record %s not found in log", key)
	}
	return json.Unmarshal([]byte(jsonString), obj)
}

func findJsonString(file io.Reader, key string) string {
	startLine := fmt.Sprintf("-------- BEGIN %s", key)
	endLine := fmt.Sprintf(" -------- END %s", key)
	inJson := false
	jsonLines := make([]string, 0)
	lastRecord := ""
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			break
		}
		trimmed := strings.TrimRight(line, "\n")
		if trimmed == startLine {
			inJson = true
			jsonLines = make([]string, 0)
		} else if trimmed == endLine {
			// Keep the newest copy, since a record may be
			// logged more than once.
			inJson = false
			lastRecord = strings.Join(jsonLines, "")
		} else if inJson {
			jsonLines = append(jsonLines, line)
		}
		if err != nil {
			break
		}
	}
	return lastRecord
}
