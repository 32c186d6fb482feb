package rag

import (
	"regexp"
	"strings"
)

var filterPattern = regexp.MustCompile(`^@([^@\s]+)(?:\s+|$)`)

type Question struct {
	Raw    string
	Text   string
	Filter string
}

// ParseQuestion splits a leading "@<filename>" token from the question text. The
// token ends at whitespace or at the end of the input.
func ParseQuestion(raw string) Question {
	q := Question{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	if m := filterPattern.FindStringSubmatchIndex(trimmed); m != nil {
		q.Filter = trimmed[m[2]:m[3]]
		q.Text = strings.TrimSpace(trimmed[m[1]:])
		return q
	}
	q.Text = trimmed
	return q
}

func (q Question) Empty() bool {
	return q.Text == ""
}
