package models

import "time"

// FileInfo represents metadata about an uploaded HAR file held in the upload spool.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "analyzing", "analyzed", "error"
}
