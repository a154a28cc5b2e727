package util

import (
	"strings"
)

// StringInSlice returns true if str is in list.
func StringInSlice(str string, list []string) bool {
	for _, v := range list {
		if v == str {
			return true
		}
	}
	return false
}

// FoldInSlice returns true if str, with surrounding whitespace
// removed, matches an element of list under Unicode case folding.
func FoldInSlice(str string, list []string) bool {
	str = strings.TrimSpace(str)
	for _, v := range list {
		if strings.EqualFold(str, strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

// AppendUnique appends each of strs to list unless list already
// contains it.
func AppendUnique(list []string, strs ...string) []string {
	for _, s := range strs {
		if !StringInSlice(s, list) {
			list = append(list, s)
		}
	}
	return list
}
