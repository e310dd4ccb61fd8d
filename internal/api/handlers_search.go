// handlers_search.go - Query, navigation and highlight handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/har-viewer/backend/internal/highlight"
	"github.com/har-viewer/backend/internal/search"
)

// SearchHandlerImpl implements the SearchHandler interface
type SearchHandlerImpl struct {
	sessions SessionManager
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(sessions SessionManager) SearchHandler {
	return &SearchHandlerImpl{sessions: sessions}
}

type searchRequest struct {
	Query string `json:"query"`
}

// HandleSearch applies a query immediately and returns the match sequence
func (h *SearchHandlerImpl) HandleSearch(c echo.Context) error {
	id := c.Param("id")
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	st, err := h.sessions.SetQuery(id, req.Query)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, st)
}

type navigateRequest struct {
	Direction string `json:"direction"`
}

// HandleNavigate moves the match cursor one step
func (h *SearchHandlerImpl) HandleNavigate(c echo.Context) error {
	id := c.Param("id")
	var req navigateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	dir, err := search.ParseDirection(req.Direction)
	if err != nil {
		return NewValidationError("direction")
	}

	st, err := h.sessions.Navigate(id, dir)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, st)
}

type highlightRequest struct {
	Text  string `json:"text"`
	Query string `json:"query"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

// HandleHighlight splits text into plain and matching segments, and also returns the
// text with every match wrapped in open/close markers (default <mark></mark>)
func (h *SearchHandlerImpl) HandleHighlight(c echo.Context) error {
	var req highlightRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Open == "" && req.Close == "" {
		req.Open, req.Close = "<mark>", "</mark>"
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"segments": highlight.Split(req.Text, req.Query),
		"marked":   highlight.Mark(req.Text, req.Query, req.Open, req.Close),
	})
}
