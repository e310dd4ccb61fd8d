package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/har-viewer/backend/internal/analyzer"
	"github.com/har-viewer/backend/internal/models"
)

// FakeAnalyzer returns a canned result or error and records what it was sent.
type FakeAnalyzer struct {
	mu       sync.Mutex
	Result   *models.AnalysisResult
	Err      error
	Calls    int
	Received []byte
}

// Analyze validates the file name like the real client and then answers from the fake.
func (f *FakeAnalyzer) Analyze(_ context.Context, fileName string, r io.Reader) (*models.AnalysisResult, error) {
	if err := analyzer.ValidateFileName(fileName); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.Received = data
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}

// SetErr swaps the error returned by later calls.
func (f *FakeAnalyzer) SetErr(err error) {
	f.mu.Lock()
	f.Err = err
	f.mu.Unlock()
}

// CallCount returns the number of calls that reached the fake.
func (f *FakeAnalyzer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}

var _ analyzer.Analyzer = (*FakeAnalyzer)(nil)

// SampleResult returns a small analysis with two failed and three successful records.
// Failed: GET https://api.example.com/b?x=failme 500, POST /login 401.
// Success: GET /a 200, GET /slow 200 (2500ms), PUT /items 204.
func SampleResult() *models.AnalysisResult {
	failed := []models.TransactionRecord{
		{
			Method: "GET", URL: "https://api.example.com/b?x=failme", Status: 500,
			StatusText: "Internal Server Error", Time: 120, Size: 512,
			StartedDateTime: "2024-03-01T10:00:01Z", TraceID: "trace-500",
			ResponseBody: `{"error":{"code":"failcase","retry":false}}`,
			RequestHeaders: []models.Header{{Name: "Accept", Value: "application/json"}},
		},
		{
			Method: "POST", URL: "https://api.example.com/login", Status: 401,
			StatusText: "Unauthorized", Time: 80, Size: 128,
			StartedDateTime: "2024-03-01T10:00:02Z", CallerID: "web-ui",
			RequestBody: `{"user":"alice","password":"hunter2"}`,
			RequestHeaders: []models.Header{{Name: "Authorization", Value: "Bearer abc"}},
		},
	}
	success := []models.TransactionRecord{
		{
			Method: "GET", URL: "https://api.example.com/a", Status: 200,
			StatusText: "OK", Time: 40, Size: 2048,
			StartedDateTime: "2024-03-01T10:00:00Z",
			ResponseBody: `{"items":[{"name":"alpha"},{"name":"beta"}],"total":2}`,
		},
		{
			Method: "GET", URL: "https://api.example.com/slow", Status: 200,
			StatusText: "OK", Time: 2500, Size: 4096,
			StartedDateTime: "2024-03-01T10:00:03Z",
			ResponseBody: "plain text body",
		},
		{
			Method: "PUT", URL: "https://api.example.com/items", Status: 204,
			StatusText: "No Content", Time: 60, Size: 0,
			StartedDateTime: "2024-03-01T10:00:04Z",
		},
	}
	return &models.AnalysisResult{
		TotalRequests:       5,
		FailedRequests:      2,
		SlowRequests:        1,
		TotalLoadTime:       2800,
		TotalSize:           6784,
		FailedRequestsList:  failed,
		SlowRequestsList:    []models.TransactionRecord{success[1]},
		SuccessRequestsList: success,
	}
}
