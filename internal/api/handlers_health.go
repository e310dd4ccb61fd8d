// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	analyzer string
	sessions SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, analyzerEndpoint string, sessions SessionManager) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		analyzer: analyzerEndpoint,
		sessions: sessions,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"analyzer": h.analyzer,
	}
	if h.sessions != nil {
		resp["sessions"] = len(h.sessions.List())
	}
	return c.JSON(http.StatusOK, resp)
}
