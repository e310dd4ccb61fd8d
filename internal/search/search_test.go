package search

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/har-viewer/backend/internal/match"
	"github.com/har-viewer/backend/internal/metrics"
	"github.com/har-viewer/backend/internal/models"
)

func rec(status int, url string) models.TransactionRecord {
	return models.TransactionRecord{Method: "GET", URL: url, Status: status, StatusText: statusText(status)}
}

func statusText(status int) string {
	switch status {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	}
	return ""
}

func TestSearch_EmptyQueryPassesThrough(t *testing.T) {
	records := []models.TransactionRecord{rec(200, "/a"), rec(404, "/b")}
	res := Search(records, "")
	assert.Equal(t, records, res.Records)
	assert.Empty(t, res.Matches)
	assert.Equal(t, []int{0, 1}, res.Positions)
}

func TestSearch_URLExample(t *testing.T) {
	records := []models.TransactionRecord{rec(200, "/a"), rec(404, "/b?x=failme")}
	res := Search(records, "fail")

	require.Len(t, res.Records, 1)
	assert.Equal(t, "/b?x=failme", res.Records[0].URL)
	assert.Equal(t, []models.MatchLocation{
		{RecordIndex: 0, Field: models.FieldURL, MatchedText: "failme"},
	}, res.Matches)

	var nav Navigator
	nav.Reset(res.Matches)
	assert.Equal(t, 0, nav.Cursor())
}

func TestSearch_StatusDigits(t *testing.T) {
	records := []models.TransactionRecord{
		{URL: "/x", Status: 200},
		{URL: "/y", Status: 400},
		{URL: "/z", Status: 404},
	}
	res := Search(records, "40")

	require.Len(t, res.Records, 2)
	assert.Equal(t, 400, res.Records[0].Status)
	assert.Equal(t, 404, res.Records[1].Status)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, models.MatchLocation{RecordIndex: 0, Field: models.FieldStatus, Path: "code", MatchedText: "400"}, res.Matches[0])
	assert.Equal(t, models.MatchLocation{RecordIndex: 1, Field: models.FieldStatus, Path: "code", MatchedText: "404"}, res.Matches[1])
}

func TestSearch_FieldOrder(t *testing.T) {
	r := models.TransactionRecord{
		Method:          "POST",
		URL:             "/orders/abc",
		Status:          500,
		StatusText:      "abc error",
		TraceID:         "trace-abc",
		RequestHeaders:  []models.Header{{Name: "X-Abc", Value: "1"}, {Name: "Accept", Value: "text/abc"}},
		ResponseHeaders: []models.Header{{Name: "Server", Value: "nginx"}},
		RequestBody:     `{"abc":{"list":[1,"xabc"]}}`,
		ResponseBody:    "plain abc text",
	}
	res := Search([]models.TransactionRecord{r}, "ABC")

	want := []models.MatchLocation{
		{Field: models.FieldURL, MatchedText: "abc"},
		{Field: models.FieldStatus, Path: "text", MatchedText: "abc"},
		{Field: models.FieldTrace, Path: "x-trace-id", MatchedText: "trace-abc"},
		{Field: models.FieldHeader, Path: "X-Abc", MatchedText: "X-Abc"},
		{Field: models.FieldHeader, Path: "Accept", MatchedText: "text/abc"},
		{Field: models.FieldPayloadBody, Path: "abc", MatchedText: "abc"},
		{Field: models.FieldPayloadBody, Path: "abc.list.1", MatchedText: "xabc"},
		{Field: models.FieldResponseBody, MatchedText: "abc"},
	}
	assert.Equal(t, want, res.Matches)
}

func TestSearch_JSONTraversal(t *testing.T) {
	r := models.TransactionRecord{
		URL:          "/u",
		ResponseBody: `{"z":"fail-z","a":{"failKey":true,"n":[{"m":"FAIL"}]},"num":1}`,
	}
	res := Search([]models.TransactionRecord{r}, "fail")

	var paths, texts []string
	for _, m := range res.Matches {
		assert.Equal(t, models.FieldResponseBody, m.Field)
		paths = append(paths, m.Path)
		texts = append(texts, m.MatchedText)
	}
	assert.Equal(t, []string{"z", "a.failKey", "a.n.0.m"}, paths)
	assert.Equal(t, []string{"fail-z", "failKey", "FAIL"}, texts)
}

func TestSearch_KeyAndLeafBothMatch(t *testing.T) {
	r := models.TransactionRecord{RequestBody: `{"error":"error occurred"}`}
	res := Search([]models.TransactionRecord{r}, "error")
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "error", res.Matches[0].MatchedText)
	assert.Equal(t, "error occurred", res.Matches[1].MatchedText)
	assert.Equal(t, "error", res.Matches[1].Path)
}

func TestSearch_NonJSONBodyFallback(t *testing.T) {
	r := models.TransactionRecord{ResponseBody: "<html>fatal failure, fail again</html>"}
	res := Search([]models.TransactionRecord{r}, "fail")
	require.Len(t, res.Matches, 1)
	assert.Equal(t, models.MatchLocation{Field: models.FieldResponseBody, MatchedText: "failure"}, res.Matches[0])
}

func TestSearch_FilterReadsSerializedBody(t *testing.T) {
	r := models.TransactionRecord{URL: "/x", ResponseBody: `{"a": 1}`}

	// the filter sees the raw text, enumeration only keys and leaves
	res := Search([]models.TransactionRecord{r}, `": 1`)
	assert.Len(t, res.Records, 1)
	assert.Empty(t, res.Matches)

	r.ResponseBody = `{"name":"caf\u00e9"}`
	res = Search([]models.TransactionRecord{r}, "é")
	assert.Empty(t, res.Records)
}

func TestSearch_FilterSoundAndComplete(t *testing.T) {
	records := []models.TransactionRecord{
		rec(200, "/users"),
		{Method: "GET", URL: "/h", Status: 200, ResponseHeaders: []models.Header{{Name: "Content-Type", Value: "application/json"}}},
		{Method: "GET", URL: "/b", Status: 200, RequestBody: `{"q":"JSONish"}`},
		{Method: "GET", URL: "/c", Status: 200, CallerID: "json-caller"},
		rec(404, "/missing"),
	}
	m := match.New("json")
	res := Search(records, "json")

	kept := map[string]bool{}
	for i := range res.Records {
		assert.True(t, Matches(&res.Records[i], m))
		kept[res.Records[i].URL] = true
	}
	for i := range records {
		if !kept[records[i].URL] {
			assert.False(t, Matches(&records[i], m), records[i].URL)
		}
	}
	assert.Len(t, res.Records, 3)
}

func TestSearch_MatchesPointIntoFilteredList(t *testing.T) {
	records := make([]models.TransactionRecord, 0, 10)
	for i := 0; i < 10; i++ {
		url := "/item/" + strconv.Itoa(i)
		if i%3 == 0 {
			url += "/hit"
		}
		records = append(records, rec(200, url))
	}
	res := Search(records, "hit")
	require.Len(t, res.Records, 4)
	assert.Equal(t, []int{0, 3, 6, 9}, res.Positions)
	for _, m := range res.Matches {
		require.Less(t, m.RecordIndex, len(res.Records))
		assert.Contains(t, res.Records[m.RecordIndex].URL, "hit")
	}
}

func TestSearch_Deterministic(t *testing.T) {
	records := []models.TransactionRecord{
		{URL: "/a/x", RequestBody: `{"b":"x","a":"x","c":["x","y","x"]}`},
		{URL: "/x", ResponseHeaders: []models.Header{{Name: "x", Value: "x"}}},
	}
	first := Search(records, "x")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Search(records, "x"))
	}
}

func TestSearch_RegexMetacharactersAreLiteral(t *testing.T) {
	records := []models.TransactionRecord{rec(200, "/a.b"), rec(200, "/axb")}
	res := Search(records, "a.b")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "/a.b", res.Records[0].URL)
}

func TestTokenAround(t *testing.T) {
	tests := []struct {
		text       string
		start, end int
		want       string
	}{
		{"/b?x=failme", 5, 9, "failme"},
		{"failme", 0, 4, "failme"},
		{"a b", 0, 1, "a"},
		{`{"k":"v"}`, 2, 3, "k"},
		{"x=1&y=2", 4, 5, "y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tokenAround(tt.text, tt.start, tt.end), tt.text)
	}
}

func TestEngine_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	e := NewEngine(m)
	records := []models.TransactionRecord{rec(200, "/a"), rec(404, "/b")}

	res := e.Search(records, "/b")
	assert.Len(t, res.Records, 1)

	e.Search(records, "")
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "har_viewer_searches_total" {
			assert.Equal(t, 1.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestEngine_NilMetrics(t *testing.T) {
	e := NewEngine(nil)
	assert.NotPanics(t, func() { e.Search([]models.TransactionRecord{rec(200, "/a")}, "a") })
}
