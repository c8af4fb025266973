package util

import (
	"fmt"
	"regexp"
)

var reUUID = regexp.MustCompile(`(?i)^([a-f\d]{8}(-[a-f\d]{4}){3}-[a-f\d]{12}?)$`)

// Min returns the minimum of x or y. The Math package has this function
// but you have to cast to floats.
func Min(x, y int) int {
	if x < y {
		return x
	}
	return y
}

func LooksLikeUUID(uuid string) bool {
	return reUUID.MatchString(uuid)
}

// Returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	for i := range list {
		if list[i] == item {
			return true
		}
	}
	return false
}

// Truncate shortens str to at most maxLen characters, adding "..."
// when something was cut. Box error messages can contain entire
// HTML error pages, which we don't want in the status records.
func Truncate(str string, maxLen int) string {
	if maxLen < 4 || len(str) <= maxLen {
		return str
	}
	return fmt.Sprintf("%s...", str[:maxLen-3])
}
