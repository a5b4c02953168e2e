package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hmi-forge/backend/internal/models"
)

// WebSocket message types for the progress protocol
const (
	// Client -> Server messages
	MsgTypeSubscribe = "subscribe"
	MsgTypeCancel    = "cancel"
	MsgTypePing      = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeAck       = "ack"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage is the envelope for every WebSocket message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// SessionPayload names the session a subscribe or cancel message targets
type SessionPayload struct {
	SessionID string `json:"sessionId"`
}

// WSErrorPayload is the payload of an error message
type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProgressSocket pushes generation progress over WebSocket. A connection
// follows one session at a time; subscribing again switches sessions.
type ProgressSocket struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
	interval   time.Duration
	logger     *slog.Logger
}

// NewProgressSocket creates a progress socket handler
func NewProgressSocket(sessionMgr SessionManager, logger *slog.Logger) *ProgressSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressSocket{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// CORS middleware already restricts browser origins
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		interval: 100 * time.Millisecond,
		logger:   logger,
	}
}

// wsConn serialises writes from the reader loop and the watcher.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteJSON(msg)
}

func (c *wsConn) sendPayload(msgType, id string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.send(WSMessage{Type: msgType, ID: id, Payload: data})
}

func (c *wsConn) sendError(id, message, code string) error {
	return c.sendPayload(MsgTypeError, id, WSErrorPayload{Message: message, Code: code})
}

// HandleWebSocket upgrades the HTTP connection and serves the progress protocol
func (p *ProgressSocket) HandleWebSocket(c echo.Context) error {
	ws, err := p.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	conn := &wsConn{ws: ws}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		watchers  sync.WaitGroup
		stopWatch = func() {}
	)
	defer func() {
		stopWatch()
		watchers.Wait()
	}()

	p.logger.Debug("progress socket connected", "remote", c.RealIP())
	conn.send(WSMessage{Type: MsgTypeConnected})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Warn("progress socket read failed", "error", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID})

		case MsgTypeSubscribe:
			sessionID, ok := p.target(conn, msg)
			if !ok {
				continue
			}
			stopWatch()
			watchers.Wait()
			wctx, wcancel := context.WithCancel(ctx)
			stopWatch = wcancel
			watchers.Add(1)
			go func() {
				defer watchers.Done()
				p.watch(wctx, conn, msg.ID, sessionID)
			}()

		case MsgTypeCancel:
			sessionID, ok := p.target(conn, msg)
			if !ok {
				continue
			}
			if !p.sessionMgr.CancelSession(sessionID) {
				conn.sendError(msg.ID, "session has already finished", "CONFLICT")
				continue
			}
			conn.sendPayload(MsgTypeAck, msg.ID, SessionPayload{SessionID: sessionID})

		default:
			conn.sendError(msg.ID, "unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	p.logger.Debug("progress socket disconnected", "remote", c.RealIP())
	return nil
}

// target decodes and checks the session a message refers to.
func (p *ProgressSocket) target(conn *wsConn, msg WSMessage) (string, bool) {
	var payload SessionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.SessionID == "" {
		conn.sendError(msg.ID, "payload must carry a sessionId", "INVALID_PAYLOAD")
		return "", false
	}
	if _, ok := p.sessionMgr.GetSession(payload.SessionID); !ok {
		conn.sendError(msg.ID, "session not found: "+payload.SessionID, "NOT_FOUND")
		return "", false
	}
	return payload.SessionID, true
}

// watch sends a progress message whenever the session changes and a
// complete message once it reaches a terminal status.
func (p *ProgressSocket) watch(ctx context.Context, conn *wsConn, reqID, sessionID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *models.GenerationSession
	for {
		sess, ok := p.sessionMgr.GetSession(sessionID)
		if !ok {
			conn.sendError(reqID, "session not found: "+sessionID, "NOT_FOUND")
			return
		}
		if last == nil || sessionChanged(last, sess) {
			msgType := MsgTypeProgress
			if sess.Done() {
				msgType = MsgTypeComplete
			}
			if err := conn.sendPayload(msgType, reqID, sess); err != nil || sess.Done() {
				return
			}
			last = sess
			p.sessionMgr.TouchSession(sessionID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
