// Package redact masks credentials in analyzed records before they are searched or
// served.
package redact

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/har-viewer/backend/internal/models"
)

// Mask replaces every redacted value.
const Mask = "***"

var sensitive = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
	"access_token":  true,
	"id_token":      true,
	"refresh_token": true,
	"password":      true,
	"session":       true,
	"apikey":        true,
	"api_key":       true,
	"x-api-key":     true,
}

// IsSensitive reports whether a header name or JSON key holds a secret.
func IsSensitive(name string) bool {
	return sensitive[strings.ToLower(name)]
}

// Record returns a copy of rec with sensitive header values and JSON body values
// masked. Bodies that are not JSON are kept as they are.
func Record(rec models.TransactionRecord) models.TransactionRecord {
	rec.RequestHeaders = Headers(rec.RequestHeaders)
	rec.ResponseHeaders = Headers(rec.ResponseHeaders)
	rec.RequestBody = JSON(rec.RequestBody)
	rec.ResponseBody = JSON(rec.ResponseBody)
	return rec
}

// Result redacts every list of res in place.
func Result(res *models.AnalysisResult) {
	for _, list := range [][]models.TransactionRecord{res.FailedRequestsList, res.SlowRequestsList, res.SuccessRequestsList} {
		for i := range list {
			list[i] = Record(list[i])
		}
	}
}

// Headers returns a copy of hs with sensitive values masked.
func Headers(hs []models.Header) []models.Header {
	if hs == nil {
		return nil
	}
	out := make([]models.Header, len(hs))
	for i, h := range hs {
		if IsSensitive(h.Name) {
			h.Value = Mask
		}
		out[i] = h
	}
	return out
}

// JSON masks the values of sensitive keys anywhere in body. Member order and the
// rest of the document are kept.
func JSON(body string) string {
	if body == "" || !gjson.Valid(body) {
		return body
	}
	var paths []string
	collect(gjson.Parse(body), "", &paths)

	for _, p := range paths {
		out, err := sjson.Set(body, p, Mask)
		if err != nil {
			continue
		}
		body = out
	}
	return body
}

func collect(r gjson.Result, prefix string, paths *[]string) {
	if r.IsObject() {
		r.ForEach(func(key, value gjson.Result) bool {
			p := join(prefix, escape(key.String()))
			if IsSensitive(key.String()) {
				*paths = append(*paths, p)
				return true
			}
			collect(value, p, paths)
			return true
		})
		return
	}
	if r.IsArray() {
		i := 0
		r.ForEach(func(_, value gjson.Result) bool {
			collect(value, join(prefix, strconv.Itoa(i)), paths)
			i++
			return true
		})
	}
}

func join(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}

// escape protects gjson path metacharacters inside a key.
func escape(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
