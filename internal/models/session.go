package models

import "time"

// SessionStatus represents the status of a viewer session.
type SessionStatus string

const (
	SessionStatusReady SessionStatus = "ready"
	SessionStatusError SessionStatus = "error"
)

// ViewSession is the client-visible state of one uploaded archive being viewed.
type ViewSession struct {
	ID         string        `json:"id"`
	FileID     string        `json:"fileId"`
	FileName   string        `json:"fileName"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	View       string        `json:"view"`
	SortBy     string        `json:"sortBy"`
	SortDir    string        `json:"sortDir"`
	Query      string        `json:"query"`
	Displayed  int           `json:"displayed"` // records in the current filtered+sorted list
	MatchCount int           `json:"matchCount"`
	Cursor     int           `json:"cursor"`
}

// JobStatus is the outcome state of an analysis call.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusComplete JobStatus = "complete"
	JobStatusError    JobStatus = "error"
)

// AnalysisJob tracks one pending/resolved/rejected call to the external analyzer.
type AnalysisJob struct {
	ID          string     `json:"id"`
	FileID      string     `json:"fileId"`
	FileName    string     `json:"fileName"`
	Status      JobStatus  `json:"status"`
	ErrorKind   string     `json:"errorKind,omitempty"` // "wrong-file-type", "upload-failed"
	Error       string     `json:"error,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
