package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/metrics"
	"github.com/har-viewer/backend/internal/search"
	"github.com/har-viewer/backend/internal/session"
)

// WebSocket message types for the live search protocol
const (
	// Client -> Server messages
	MsgTypeQuery    = "query"
	MsgTypeNavigate = "navigate"
	MsgTypePing     = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeResults   = "results"
	MsgTypeCursor    = "cursor"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope of every live search message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// QueryPayload carries the text typed into the search box
type QueryPayload struct {
	Query string `json:"query"`
}

// NavigatePayload carries a navigation step
type NavigatePayload struct {
	Direction string `json:"direction"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler serves live, debounced search for one session per connection
type WebSocketHandler struct {
	sessions SessionManager
	upgrader websocket.Upgrader
	debounce time.Duration
	maxMsg   int64
	metrics  *metrics.Metrics
}

// NewWebSocketHandler creates a live search handler. Queries are applied once the
// client has been quiet for debounce.
func NewWebSocketHandler(sessions SessionManager, debounce time.Duration, maxMessageBytes int64, m *metrics.Metrics) *WebSocketHandler {
	if debounce <= 0 {
		debounce = search.DefaultDebounce
	}
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		debounce: debounce,
		maxMsg:   maxMessageBytes,
		metrics:  m,
	}
}

// wsConn serializes writes from the read loop and the debounce timer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		logging.L.Debug("websocket write failed", zap.Error(err))
	}
}

func (c *wsConn) sendError(message, code string) {
	c.send(WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload:   mustJSON(WSErrorResponse{Message: message, Code: code}),
	})
}

// HandleLiveSearch upgrades the connection and runs the live search protocol
func (wsh *WebSocketHandler) HandleLiveSearch(c echo.Context) error {
	id := c.Param("id")
	initial, err := wsh.sessions.Matches(id)
	if err != nil {
		return sessionError(err, id)
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	if wsh.maxMsg > 0 {
		ws.SetReadLimit(wsh.maxMsg)
	}

	if wsh.metrics != nil {
		wsh.metrics.WebsocketClients.Inc()
		defer wsh.metrics.WebsocketClients.Dec()
	}

	log := logging.L.With(zap.String("session", logging.ShortID(id)))
	log.Debug("live search connected")

	conn := &wsConn{ws: ws}
	debouncer := search.NewDebouncer(wsh.debounce)
	defer debouncer.Stop()

	conn.send(WSMessage{
		Type:      MsgTypeConnected,
		ID:        id,
		Payload:   mustJSON(initial),
		Timestamp: time.Now().UnixMilli(),
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("live search connection error", zap.Error(err))
			}
			break
		}
		wsh.sessions.TouchSession(id)

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeQuery:
			var p QueryPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				conn.sendError("Invalid query payload: "+err.Error(), "INVALID_PAYLOAD")
				continue
			}
			reqID := msg.ID
			debouncer.Trigger(func() {
				wsh.applyQuery(conn, id, reqID, p.Query)
			})
		case MsgTypeNavigate:
			wsh.handleNavigate(conn, id, msg)
		default:
			conn.sendError("Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	log.Debug("live search disconnected")
	return nil
}

func (wsh *WebSocketHandler) applyQuery(conn *wsConn, id, reqID, query string) {
	st, err := wsh.sessions.SetQuery(id, query)
	if err != nil {
		conn.sendError(err.Error(), "SEARCH_FAILED")
		return
	}
	conn.send(WSMessage{
		Type:      MsgTypeResults,
		ID:        reqID,
		Payload:   mustJSON(st),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (wsh *WebSocketHandler) handleNavigate(conn *wsConn, id string, msg WSMessage) {
	var p NavigatePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		conn.sendError("Invalid navigate payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	dir, err := search.ParseDirection(p.Direction)
	if err != nil {
		conn.sendError(err.Error(), "INVALID_PAYLOAD")
		return
	}

	st, err := wsh.sessions.Navigate(id, dir)
	if err != nil {
		conn.sendError(err.Error(), "NAVIGATE_FAILED")
		return
	}
	conn.send(WSMessage{
		Type:      MsgTypeCursor,
		ID:        msg.ID,
		Payload:   mustJSON(cursorPayload(st)),
		Timestamp: time.Now().UnixMilli(),
	})
}

func cursorPayload(st *session.SearchState) map[string]interface{} {
	return map[string]interface{}{
		"cursor":  st.Cursor,
		"current": st.Current,
		"total":   len(st.Matches),
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
