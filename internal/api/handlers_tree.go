// handlers_tree.go - Body tree handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/har-viewer/backend/internal/session"
)

// TreeHandlerImpl implements the TreeHandler interface
type TreeHandlerImpl struct {
	sessions SessionManager
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(sessions SessionManager) TreeHandler {
	return &TreeHandlerImpl{sessions: sessions}
}

// HandleGetTree renders a record body against the active query
func (h *TreeHandlerImpl) HandleGetTree(c echo.Context) error {
	id := c.Param("id")
	idx, err := indexParam(c)
	if err != nil {
		return err
	}

	field := c.QueryParam("field")
	if field == "" {
		field = session.FieldResponse
	}
	expandAll := c.QueryParam("expandAll") == "true"

	tv, err := h.sessions.Tree(id, idx, field, expandAll)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, tv)
}

type toggleRequest struct {
	Field     string `json:"field"`
	Path      string `json:"path"`
	ExpandAll bool   `json:"expandAll"`
}

// HandleToggleNode flips a container between expanded and collapsed
func (h *TreeHandlerImpl) HandleToggleNode(c echo.Context) error {
	id := c.Param("id")
	idx, err := indexParam(c)
	if err != nil {
		return err
	}

	var req toggleRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Field == "" {
		return NewValidationError("field")
	}

	tv, err := h.sessions.ToggleNode(id, idx, req.Field, req.Path, req.ExpandAll)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, tv)
}
