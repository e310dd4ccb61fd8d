package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/har-viewer/backend/internal/models"
	"github.com/har-viewer/backend/internal/session"
	"github.com/har-viewer/backend/internal/view"
)

func TestSessionHandler_GetAndList(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedSession(t)

	c, rec := env.newContext(http.MethodGet, "/api/sessions/"+id, nil, "id", id)
	require.NoError(t, env.handlers.Session.HandleGetSession(c))
	var sess models.ViewSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "all", sess.View)
	assert.Equal(t, 5, sess.Displayed)

	c, rec = env.newContext(http.MethodGet, "/api/sessions", nil)
	require.NoError(t, env.handlers.Session.HandleListSessions(c))
	var list []models.ViewSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	c, _ = env.newContext(http.MethodGet, "/api/sessions/nope", nil, "id", "nope")
	assert.Equal(t, http.StatusNotFound, apiErrorOf(t, env.handlers.Session.HandleGetSession(c)).Status)
}

func TestSessionHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedSession(t)
	require.Equal(t, 1, env.store.GetFileCount())

	c, rec := env.newContext(http.MethodDelete, "/api/sessions/"+id, nil, "id", id)
	require.NoError(t, env.handlers.Session.HandleDeleteSession(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.store.GetFileCount())

	_, err := env.sessions.Get(id)
	assert.ErrorIs(t, err, session.ErrNotFound)

	c, _ = env.newContext(http.MethodDelete, "/api/sessions/"+id, nil, "id", id)
	assert.Equal(t, http.StatusNotFound, apiErrorOf(t, env.handlers.Session.HandleDeleteSession(c)).Status)
}

func TestSessionHandler_DeleteDisabled(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedSession(t)
	h := NewSessionHandler(env.store, env.sessions, false)

	c, _ := env.newContext(http.MethodDelete, "/api/sessions/"+id, nil, "id", id)
	assert.Equal(t, "FORBIDDEN", apiErrorOf(t, h.HandleDeleteSession(c)).Code)
	assert.Equal(t, 1, env.store.GetFileCount())
}

func TestSessionHandler_KeepAliveAndStats(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedSession(t)

	c, rec := env.newContext(http.MethodPost, "/api/sessions/"+id+"/keepalive", nil, "id", id)
	require.NoError(t, env.handlers.Session.HandleSessionKeepAlive(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = env.newContext(http.MethodPost, "/api/sessions/nope/keepalive", nil, "id", "nope")
	assert.Equal(t, http.StatusNotFound, apiErrorOf(t, env.handlers.Session.HandleSessionKeepAlive(c)).Status)

	c, rec = env.newContext(http.MethodGet, "/api/sessions/"+id+"/stats", nil, "id", id)
	require.NoError(t, env.handlers.Session.HandleGetStats(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2.80s")
}

func TestSessionHandler_SetView(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantView   string
		wantCount  int
	}{
		{"failed view", `{"view":"failed"}`, http.StatusOK, "failed", 2},
		{"success sorted by time", `{"view":"success","sortBy":"time","sortDir":"desc"}`, http.StatusOK, "success", 3},
		{"unknown view", `{"view":"broken"}`, http.StatusBadRequest, "", 0},
		{"unknown sort", `{"view":"all","sortBy":"colour"}`, http.StatusBadRequest, "", 0},
		{"malformed body", `{"view":`, http.StatusBadRequest, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			id := env.seedSession(t)

			c, rec := env.newContext(http.MethodPut, "/api/sessions/"+id+"/view", jsonBody(tt.body), "id", id)
			err := env.handlers.Session.HandleSetView(c)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, tt.wantStatus, apiErrorOf(t, err).Status)
				return
			}

			require.NoError(t, err)
			var sess models.ViewSession
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
			assert.Equal(t, tt.wantView, sess.View)
			assert.Equal(t, tt.wantCount, sess.Displayed)
		})
	}
}

func TestSessionHandler_Records(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedSession(t)

	c, rec := env.newContext(http.MethodGet, "/api/sessions/"+id+"/records?offset=1&limit=2", nil, "id", id)
	require.NoError(t, env.handlers.Session.HandleGetRecords(c))

	var page session.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, 1, page.Rows[0].Index)
	assert.Equal(t, "/login", page.Rows[0].Record.URL)
	assert.Equal(t, view.Failed, page.Rows[0].Class)
	assert.Equal(t, view.Success, page.Rows[1].Class)
}

func TestSessionHandler_RecordsMsgpack(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedSession(t)

	c, rec := env.newContext(http.MethodGet, "/api/sessions/"+id+"/records/msgpack?limit=5000", nil, "id", id)
	require.NoError(t, env.handlers.Session.HandleGetRecordsMsgpack(c))
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var page session.Page
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Rows, 5)
	assert.Equal(t, view.EmptyNone, page.EmptyState)
}

func TestSessionHandler_GetRecord(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedSession(t)

	tests := []struct {
		name       string
		index      string
		wantStatus int
	}{
		{"first", "0", http.StatusOK},
		{"last", "4", http.StatusOK},
		{"out of range", "5", http.StatusNotFound},
		{"negative", "-1", http.StatusBadRequest},
		{"not a number", "x", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := env.newContext(http.MethodGet, "/", nil, "id", id, "index", tt.index)
			err := env.handlers.Session.HandleGetRecord(c)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, tt.wantStatus, apiErrorOf(t, err).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"index":`+tt.index)
		})
	}
}
