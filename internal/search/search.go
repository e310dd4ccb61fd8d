// Package search filters transaction records by a literal query and enumerates
// every place the query occurs, in a fixed and deterministic order.
package search

import (
	"strconv"
	"strings"

	"github.com/har-viewer/backend/internal/jsonvalue"
	"github.com/har-viewer/backend/internal/match"
	"github.com/har-viewer/backend/internal/models"
)

// Result is the outcome of one search: the retained records and the ordered match
// locations within them. RecordIndex in each location points into Records.
type Result struct {
	Records []models.TransactionRecord `json:"records"`
	Matches []models.MatchLocation     `json:"matches"`
	// Positions maps each retained record to its index in the input.
	Positions []int `json:"-"`
}

// Search keeps the records that contain query in any searched field and lists every
// occurrence in record order, then field order, then JSON traversal order.
// An empty query returns records unchanged with no matches.
func Search(records []models.TransactionRecord, query string) Result {
	m := match.New(query)
	if m.Empty() {
		pos := make([]int, len(records))
		for i := range pos {
			pos[i] = i
		}
		return Result{Records: records, Matches: []models.MatchLocation{}, Positions: pos}
	}

	res := Result{
		Records:   make([]models.TransactionRecord, 0),
		Matches:   make([]models.MatchLocation, 0),
		Positions: make([]int, 0),
	}
	for i := range records {
		rec := &records[i]
		if !Matches(rec, m) {
			continue
		}
		idx := len(res.Records)
		res.Records = append(res.Records, *rec)
		res.Positions = append(res.Positions, i)
		res.Matches = append(res.Matches, Locate(idx, rec, m)...)
	}
	return res
}

// Matches reports whether rec contains the query in its URL, method, status code or
// text, trace ids, any header name or value, or the raw text of either body.
func Matches(rec *models.TransactionRecord, m *match.Matcher) bool {
	if m.Empty() {
		return true
	}
	for _, s := range [...]string{
		rec.URL, rec.Method, strconv.Itoa(rec.Status), rec.StatusText,
		rec.TraceID, rec.ExternalTraceID, rec.CallerID,
	} {
		if m.Contains(s) {
			return true
		}
	}
	for _, hs := range [...][]models.Header{rec.RequestHeaders, rec.ResponseHeaders} {
		for _, h := range hs {
			if m.Contains(h.Name) || m.Contains(h.Value) {
				return true
			}
		}
	}
	return m.Contains(rec.RequestBody) || m.Contains(rec.ResponseBody)
}

// Locate enumerates the occurrences of the query within one record. index is the
// record's position in the displayed list.
func Locate(index int, rec *models.TransactionRecord, m *match.Matcher) []models.MatchLocation {
	var out []models.MatchLocation
	flat := func(field models.MatchField, path, text string) {
		for _, loc := range m.Indexes(text) {
			out = append(out, models.MatchLocation{
				RecordIndex: index,
				Field:       field,
				Path:        path,
				MatchedText: tokenAround(text, loc[0], loc[1]),
			})
		}
	}

	flat(models.FieldURL, "", rec.URL)
	flat(models.FieldMethod, "", rec.Method)
	flat(models.FieldStatus, "code", strconv.Itoa(rec.Status))
	flat(models.FieldStatus, "text", rec.StatusText)
	flat(models.FieldTrace, "x-trace-id", rec.TraceID)
	flat(models.FieldTrace, "external-trace-id", rec.ExternalTraceID)
	flat(models.FieldTrace, "caller-id", rec.CallerID)

	for _, hs := range [...][]models.Header{rec.RequestHeaders, rec.ResponseHeaders} {
		for _, h := range hs {
			switch {
			case m.Contains(h.Value):
				out = append(out, models.MatchLocation{RecordIndex: index, Field: models.FieldHeader, Path: h.Name, MatchedText: h.Value})
			case m.Contains(h.Name):
				out = append(out, models.MatchLocation{RecordIndex: index, Field: models.FieldHeader, Path: h.Name, MatchedText: h.Name})
			}
		}
	}

	out = appendBody(out, index, models.FieldPayloadBody, rec.RequestBody, m)
	out = appendBody(out, index, models.FieldResponseBody, rec.ResponseBody, m)
	return out
}

func appendBody(out []models.MatchLocation, index int, field models.MatchField, body string, m *match.Matcher) []models.MatchLocation {
	if body == "" {
		return out
	}
	v, err := jsonvalue.Parse(body)
	if err != nil {
		locs := m.Indexes(body)
		if len(locs) == 0 {
			return out
		}
		return append(out, models.MatchLocation{
			RecordIndex: index,
			Field:       field,
			MatchedText: tokenAround(body, locs[0][0], locs[0][1]),
		})
	}

	Walk(v, func(path, key string, hasKey bool, node *jsonvalue.Value) {
		if hasKey && m.Contains(key) {
			out = append(out, models.MatchLocation{RecordIndex: index, Field: field, Path: path, MatchedText: key})
		}
		if !node.IsContainer() {
			if text := node.Text(); m.Contains(text) {
				out = append(out, models.MatchLocation{RecordIndex: index, Field: field, Path: path, MatchedText: text})
			}
		}
	})
	return out
}

// Walk visits v depth-first in document order. path is the dotted path from the
// root with array positions as numbers; hasKey is true for object members.
func Walk(v *jsonvalue.Value, fn func(path, key string, hasKey bool, node *jsonvalue.Value)) {
	walk(v, "", "", false, fn)
}

func walk(v *jsonvalue.Value, path, key string, hasKey bool, fn func(string, string, bool, *jsonvalue.Value)) {
	fn(path, key, hasKey, v)
	isObject := v.Kind == jsonvalue.Object
	v.Each(func(k string, i int, child *jsonvalue.Value) {
		seg := k
		if !isObject {
			seg = strconv.Itoa(i)
		}
		walk(child, joinPath(path, seg), k, isObject, fn)
	})
}

func joinPath(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + "." + seg
}

// tokenAround widens the byte range [start,end) of text to the enclosing token,
// stopping at URL and JSON punctuation or whitespace.
func tokenAround(text string, start, end int) string {
	for start > 0 && !isDelimiter(text[start-1]) {
		start--
	}
	for end < len(text) && !isDelimiter(text[end]) {
		end++
	}
	return text[start:end]
}

const delimiters = "/?&=#:;,\"'()[]{}<>"

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return strings.IndexByte(delimiters, c) >= 0
}
