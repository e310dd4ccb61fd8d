// handlers_session.go - Viewer session and displayed list handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/session"
	"github.com/har-viewer/backend/internal/storage"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	store       storage.Store
	sessions    SessionManager
	allowDelete bool
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store storage.Store, sessions SessionManager, allowDelete bool) SessionHandler {
	return &SessionHandlerImpl{
		store:       store,
		sessions:    sessions,
		allowDelete: allowDelete,
	}
}

// HandleListSessions returns all live sessions, newest first
func (h *SessionHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.List())
}

// HandleGetSession returns the state of one session
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	sess, err := h.sessions.Get(id)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleDeleteSession resets the viewer: the session and its spooled upload are discarded
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	if !h.allowDelete {
		return NewForbiddenError("session deletion is disabled")
	}

	id := c.Param("id")
	fileID, err := h.sessions.Delete(id)
	if err != nil {
		return sessionError(err, id)
	}

	if err := h.store.Delete(fileID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.L.Warn("failed to delete spooled upload",
			zap.String("file", logging.ShortID(fileID)), zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive updates the session's last accessed time
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleGetStats returns the dashboard stat cards
func (h *SessionHandlerImpl) HandleGetStats(c echo.Context) error {
	id := c.Param("id")
	stats, err := h.sessions.Stats(id)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, stats)
}

type setViewRequest struct {
	View    string `json:"view"`
	SortBy  string `json:"sortBy"`
	SortDir string `json:"sortDir"`
}

// HandleSetView switches view kind and sort order
func (h *SessionHandlerImpl) HandleSetView(c echo.Context) error {
	id := c.Param("id")
	var req setViewRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	sess, err := h.sessions.SetView(id, req.View, req.SortBy, req.SortDir)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleGetRecords returns a page of the displayed list
func (h *SessionHandlerImpl) HandleGetRecords(c echo.Context) error {
	page, err := h.page(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// HandleGetRecordsMsgpack returns a page of the displayed list in MessagePack format
func (h *SessionHandlerImpl) HandleGetRecordsMsgpack(c echo.Context) error {
	page, err := h.page(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(page)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *SessionHandlerImpl) page(c echo.Context) (*session.Page, error) {
	id := c.Param("id")

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	page, err := h.sessions.Records(id, offset, limit)
	if err != nil {
		return nil, sessionError(err, id)
	}
	return page, nil
}

// HandleGetRecord returns one displayed record
func (h *SessionHandlerImpl) HandleGetRecord(c echo.Context) error {
	id := c.Param("id")
	idx, err := indexParam(c)
	if err != nil {
		return err
	}

	row, err := h.sessions.Record(id, idx)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusOK, row)
}
