// Package highlight splits display strings into literal and matched segments.
package highlight

import (
	"strings"

	"github.com/har-viewer/backend/internal/match"
)

// Segment is a run of text that either matched the query or did not.
type Segment struct {
	Text  string `json:"text" msgpack:"text"`
	Match bool   `json:"isMatch" msgpack:"isMatch"`
}

// Split partitions text around every case-insensitive occurrence of query.
// An empty query yields the whole text as one literal segment.
func Split(text, query string) []Segment {
	return SplitWith(text, match.New(query))
}

// SplitWith is Split with a precompiled matcher.
func SplitWith(text string, m *match.Matcher) []Segment {
	if m.Empty() {
		return []Segment{{Text: text}}
	}

	var segs []Segment
	last := 0
	for _, loc := range m.Indexes(text) {
		if loc[0] > last {
			segs = append(segs, Segment{Text: text[last:loc[0]]})
		}
		segs = append(segs, Segment{Text: text[loc[0]:loc[1]], Match: true})
		last = loc[1]
	}
	if last < len(text) {
		segs = append(segs, Segment{Text: text[last:]})
	}
	return segs
}

// Join concatenates segment texts.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Mark renders text with every matched segment wrapped in open and close.
func Mark(text, query, open, close string) string {
	var b strings.Builder
	for _, s := range Split(text, query) {
		if s.Match {
			b.WriteString(open)
			b.WriteString(s.Text)
			b.WriteString(close)
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
