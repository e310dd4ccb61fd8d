// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/har-viewer/backend/internal/metrics"
	"github.com/har-viewer/backend/internal/report"
	"github.com/har-viewer/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store              storage.Store
	Sessions           SessionManager
	Jobs               JobManager
	Template           *report.Template
	Metrics            *metrics.Metrics
	AnalyzerEndpoint   string
	Debounce           time.Duration
	MaxMessageBytes    int64
	AllowSessionDelete bool
	Version            string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Upload  UploadHandler
	Session SessionHandler
	Search  SearchHandler
	Tree    TreeHandler
	Report  ReportHandler
	Live    *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.AnalyzerEndpoint, deps.Sessions),
		Upload:  NewUploadHandler(deps.Store, deps.Sessions, deps.Jobs),
		Session: NewSessionHandler(deps.Store, deps.Sessions, deps.AllowSessionDelete),
		Search:  NewSearchHandler(deps.Sessions),
		Tree:    NewTreeHandler(deps.Sessions),
		Report:  NewReportHandler(deps.Sessions, deps.Template),
		Live:    NewWebSocketHandler(deps.Sessions, deps.Debounce, deps.MaxMessageBytes, deps.Metrics),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	// Health check
	api.GET("/health", handlers.Health.HandleHealth)

	// Upload and analysis jobs
	api.POST("/har/upload", handlers.Upload.HandleUpload)
	api.POST("/har/upload/async", handlers.Upload.HandleUploadAsync)
	api.GET("/jobs/:jobId", handlers.Upload.HandleGetJob)
	api.GET("/jobs/:jobId/stream", handlers.Upload.HandleJobStream)
	api.POST("/jobs/:jobId/retry", handlers.Upload.HandleRetryJob)

	// Viewer sessions
	sessions := api.Group("/sessions")
	sessions.GET("", handlers.Session.HandleListSessions)
	sessions.GET("/:id", handlers.Session.HandleGetSession)
	sessions.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessions.POST("/:id/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessions.GET("/:id/stats", handlers.Session.HandleGetStats)
	sessions.PUT("/:id/view", handlers.Session.HandleSetView)
	sessions.GET("/:id/records", handlers.Session.HandleGetRecords)
	sessions.GET("/:id/records/msgpack", handlers.Session.HandleGetRecordsMsgpack)
	sessions.GET("/:id/records/:index", handlers.Session.HandleGetRecord)

	// Search and navigation
	sessions.POST("/:id/search", handlers.Search.HandleSearch)
	sessions.POST("/:id/navigate", handlers.Search.HandleNavigate)
	sessions.GET("/:id/live", handlers.Live.HandleLiveSearch)
	api.POST("/highlight", handlers.Search.HandleHighlight)

	// Body trees
	sessions.GET("/:id/records/:index/tree", handlers.Tree.HandleGetTree)
	sessions.POST("/:id/records/:index/tree/toggle", handlers.Tree.HandleToggleNode)

	// Ticket reports
	sessions.GET("/:id/records/:index/report", handlers.Report.HandleRecordReport)
	api.GET("/report/template", handlers.Report.HandleGetTemplate)
}

// StreamingPath reports whether path serves a long-lived response that must not be
// cut by the request timeout middleware.
func StreamingPath(path string) bool {
	return strings.HasSuffix(path, "/stream") ||
		strings.HasSuffix(path, "/live") ||
		strings.HasPrefix(path, "/api/har/upload")
}
