// Package match implements the case-insensitive literal substring matcher shared by
// search, the JSON tree and the highlighter.
package match

import "regexp"

// Matcher finds a query in text, ignoring case. The query is always treated as a
// literal: pattern metacharacters are escaped before compiling.
type Matcher struct {
	query string
	re    *regexp.Regexp
}

// New compiles a matcher for query. An empty query yields a matcher that matches nothing.
func New(query string) *Matcher {
	m := &Matcher{query: query}
	if query != "" {
		m.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	}
	return m
}

// Query returns the query the matcher was built from.
func (m *Matcher) Query() string {
	if m == nil {
		return ""
	}
	return m.query
}

// Empty reports whether the matcher has no query.
func (m *Matcher) Empty() bool {
	return m == nil || m.re == nil
}

// Contains reports whether s contains the query.
func (m *Matcher) Contains(s string) bool {
	if m.Empty() {
		return false
	}
	return m.re.MatchString(s)
}

// Indexes returns the byte ranges of all non-overlapping occurrences of the query in s.
func (m *Matcher) Indexes(s string) [][2]int {
	if m.Empty() {
		return nil
	}
	locs := m.re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([][2]int, 0, len(locs))
	for _, loc := range locs {
		if loc[1] > loc[0] {
			out = append(out, [2]int{loc[0], loc[1]})
		}
	}
	return out
}
