package isbn

import "regexp"

// rule is one matcher in the extraction cascade. The capture group, when
// present, holds the identifier without its label.
type rule struct {
	name    string
	pattern *regexp.Regexp
}

// Rules run most specific first. The thirteen-digit rules accept a single
// space or hyphen between digits since printed ISBN-13s are usually grouped.
// The bare 13 rule only needs a non-digit on either side so OCR output that
// fuses the number onto a word still matches.
var rules = []rule{
	{"labeled-13", regexp.MustCompile(`(?i)ISBN(?:-?1[03])?[:\s-]*(97[89](?:[\s-]?\d){10})`)},
	{"labeled-10", regexp.MustCompile(`(?i)ISBN(?:-?10)?[:\s-]*(\d(?:[\s-]?\d){8}[\s-]?[\dXx])`)},
	{"bare-13", regexp.MustCompile(`(?:^|\D)(97[89](?:[\s-]?\d){10})(?:\D|$)`)},
	{"bare-10", regexp.MustCompile(`\b(\d{9}[\dXx])\b`)},
}

// Extract returns the first valid candidate found in text. Earlier rules win
// over later ones; within a rule matches are tried left to right. When no rule
// yields a valid candidate the lenient fallback is tried.
func Extract(text string) (string, bool) {
	for _, r := range rules {
		if id, ok := r.first(text); ok {
			return id, true
		}
	}
	return ExtractLenient(text)
}

func (r rule) first(text string) (string, bool) {
	for _, m := range r.pattern.FindAllStringSubmatch(text, -1) {
		raw := m[0]
		if len(m) > 1 && m[1] != "" {
			raw = m[1]
		}
		if id := Normalize(raw); Valid(id) {
			return id, true
		}
	}
	return "", false
}

// ExtractLenient scans for runs of 15 to 20 digits, spaces and hyphens and
// validates the longest one. Ties go to the earliest run.
func ExtractLenient(text string) (string, bool) {
	longest := ""
	for _, run := range lenientRun.FindAllString(text, -1) {
		if len(run) > len(longest) {
			longest = run
		}
	}
	if longest == "" {
		return "", false
	}
	id := Normalize(longest)
	if !Valid(id) {
		return "", false
	}
	return id, true
}
