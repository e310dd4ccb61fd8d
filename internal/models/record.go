// Package models contains domain types for the HAR viewer.
package models

import "encoding/json"

// Header is one HTTP header as captured in the archive, in capture order.
type Header struct {
	Name  string `json:"name" msgpack:"name"`
	Value string `json:"value" msgpack:"value"`
}

// TransactionRecord is one HTTP request/response pair summarized by the analyzer.
// Records are immutable once received and are identified by their position in a list.
type TransactionRecord struct {
	Method          string   `json:"method" msgpack:"method"`
	URL             string   `json:"url" msgpack:"url"`
	Status          int      `json:"status" msgpack:"status"`
	StatusText      string   `json:"statusText" msgpack:"statusText"`
	Time            float64  `json:"time" msgpack:"time"` // ms
	Size            int64    `json:"size" msgpack:"size"` // bytes
	StartedDateTime string   `json:"startedDateTime" msgpack:"startedDateTime"`
	TraceID         string   `json:"traceId,omitempty" msgpack:"traceId,omitempty"`
	ExternalTraceID string   `json:"externalTraceId,omitempty" msgpack:"externalTraceId,omitempty"`
	CallerID        string   `json:"callerId,omitempty" msgpack:"callerId,omitempty"`
	RequestBody     string   `json:"requestBody,omitempty" msgpack:"requestBody,omitempty"`
	ResponseBody    string   `json:"responseBody,omitempty" msgpack:"responseBody,omitempty"`
	RequestHeaders  []Header `json:"requestHeaders" msgpack:"requestHeaders"`
	ResponseHeaders []Header `json:"responseHeaders" msgpack:"responseHeaders"`
}

// UnmarshalJSON accepts the older analyzer field name xTraceId as an alias of traceId.
func (r *TransactionRecord) UnmarshalJSON(data []byte) error {
	type plain TransactionRecord
	aux := struct {
		*plain
		XTraceID string `json:"xTraceId"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.TraceID == "" {
		r.TraceID = aux.XTraceID
	}
	return nil
}

// Failed reports whether the record counts as a failed request.
func (r *TransactionRecord) Failed() bool {
	return r.Status >= 400
}

// AnalysisResult is the summary returned by the external analyzer for one archive.
type AnalysisResult struct {
	TotalRequests       int                 `json:"totalRequests"`
	FailedRequests      int                 `json:"failedRequests"`
	SlowRequests        int                 `json:"slowRequests"`
	TotalLoadTime       float64             `json:"totalLoadTime"`
	TotalSize           int64               `json:"totalSize"`
	FailedRequestsList  []TransactionRecord `json:"failedRequestsList"`
	SlowRequestsList    []TransactionRecord `json:"slowRequestsList"`
	SuccessRequestsList []TransactionRecord `json:"successRequestsList"`
}

// All returns failed followed by success records in the order the analyzer supplied them.
// The lists are not deduplicated.
func (a *AnalysisResult) All() []TransactionRecord {
	all := make([]TransactionRecord, 0, len(a.FailedRequestsList)+len(a.SuccessRequestsList))
	all = append(all, a.FailedRequestsList...)
	all = append(all, a.SuccessRequestsList...)
	return all
}
