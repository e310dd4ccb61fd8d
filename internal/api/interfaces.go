// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/har-viewer/backend/internal/models"
	"github.com/har-viewer/backend/internal/search"
	"github.com/har-viewer/backend/internal/session"
	"github.com/har-viewer/backend/internal/view"
)

// UploadHandler handles archive upload and analysis jobs
type UploadHandler interface {
	HandleUpload(c echo.Context) error
	HandleUploadAsync(c echo.Context) error
	HandleGetJob(c echo.Context) error
	HandleJobStream(c echo.Context) error
	HandleRetryJob(c echo.Context) error
}

// SessionHandler handles viewer session lifecycle and the displayed list
type SessionHandler interface {
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleGetStats(c echo.Context) error
	HandleSetView(c echo.Context) error
	HandleGetRecords(c echo.Context) error
	HandleGetRecordsMsgpack(c echo.Context) error
	HandleGetRecord(c echo.Context) error
}

// SearchHandler handles queries, match navigation and highlighting
type SearchHandler interface {
	HandleSearch(c echo.Context) error
	HandleNavigate(c echo.Context) error
	HandleHighlight(c echo.Context) error
}

// TreeHandler handles body tree rendering
type TreeHandler interface {
	HandleGetTree(c echo.Context) error
	HandleToggleNode(c echo.Context) error
}

// ReportHandler handles ticket templates
type ReportHandler interface {
	HandleGetTemplate(c echo.Context) error
	HandleRecordReport(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Get(id string) (*models.ViewSession, error)
	List() []models.ViewSession
	Delete(id string) (string, error)
	TouchSession(id string) bool
	Stats(id string) (view.Summary, error)
	SetView(id, kind, sortBy, sortDir string) (*models.ViewSession, error)
	SetQuery(id, query string) (*session.SearchState, error)
	Navigate(id string, dir search.Direction) (*session.SearchState, error)
	Matches(id string) (*session.SearchState, error)
	Records(id string, offset, limit int) (*session.Page, error)
	Record(id string, index int) (*session.Row, error)
	Tree(id string, index int, field string, expandAll bool) (*session.TreeView, error)
	ToggleNode(id string, index int, field, path string, expandAll bool) (*session.TreeView, error)
}

// JobManager defines the analysis job operations the handlers need
type JobManager interface {
	StartJob(info *models.FileInfo) *models.AnalysisJob
	Run(ctx context.Context, info *models.FileInfo) (*models.AnalysisJob, error)
	GetJob(id string) (*models.AnalysisJob, bool)
	Retry(id string) (*models.AnalysisJob, error)
}
