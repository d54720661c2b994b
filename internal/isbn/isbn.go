// Package isbn pulls ISBN candidates out of free text such as OCR transcripts.
//
// Candidates are only checked for shape (ten characters ending in a digit or
// X, or thirteen digits). Check digits are never verified.
package isbn

import (
	"regexp"
	"strings"
)

var (
	validPattern = regexp.MustCompile(`^(?:\d{9}[\dX]|\d{13})$`)
	separators   = regexp.MustCompile(`[\s-]+`)
	lenientRun   = regexp.MustCompile(`[\d\s-]{15,20}`)
)

// Normalize uppercases s and removes whitespace, hyphens and any leading
// "ISBN" label. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = separators.ReplaceAllString(strings.ToUpper(s), "")
	for {
		trimmed := strings.TrimPrefix(s, "ISBN")
		trimmed = strings.TrimPrefix(trimmed, ":")
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// Valid reports whether s is an already-normalized ISBN-10 or ISBN-13
func Valid(s string) bool {
	return validPattern.MatchString(s)
}

// ConvertTo10 returns the ten characters following the 978 prefix of a
// 13-digit identifier. ok is false for anything else.
func ConvertTo10(id string) (string, bool) {
	clean := Normalize(id)
	if len(clean) != 13 || !strings.HasPrefix(clean, "978") || !Valid(clean) {
		return "", false
	}
	return clean[3:], true
}
