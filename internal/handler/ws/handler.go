package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/agent-relay/backend/internal/model/event"
	"github.com/zhouzirui/agent-relay/backend/internal/model/session"
	brokerService "github.com/zhouzirui/agent-relay/backend/internal/service/broker"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Handler owns the live WebSocket channel.
type Handler struct {
	broker   *brokerService.Broker
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(b *brokerService.Broker) *Handler {
	return &Handler{
		broker: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// inboundFrame is a client protocol frame. Fields are top-level; only
// the ones relevant to each type are set.
type inboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Mode      string `json:"mode"`
}

// wsConn serializes all writes to one connection. Pushes from request
// goroutines, frame acks from the read loop and pings would otherwise
// race on the gorilla conn.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connectionID := uuid.NewString()
	wc := &wsConn{conn: conn}
	defer h.broker.Leave(wc)

	log.Printf("[websocket] new connection %s", connectionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go h.pingLoop(ctx, wc)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var frame inboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error on %s: %v", connectionID, err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(readDeadline))
			h.handleFrame(ctx, wc, connectionID, &frame)
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, wc *wsConn, connectionID string, frame *inboundFrame) {
	switch frame.Type {
	case "join_session":
		evt, err := h.broker.Join(ctx, frame.SessionID, connectionID, wc)
		if err != nil {
			h.sendError(wc, frame.SessionID, "session not found")
			return
		}
		h.send(wc, evt)
	case "chat_message":
		mode := frame.Mode
		if mode == "" {
			mode = session.ModeAct
		}
		evt, err := h.broker.EchoUserMessage(ctx, frame.SessionID, frame.Content, mode)
		if err != nil {
			h.sendError(wc, frame.SessionID, "session not found")
			return
		}
		h.send(wc, evt)
	case "switch_mode":
		evt, err := h.broker.LocalSwitchMode(ctx, frame.SessionID, frame.Mode)
		if err != nil {
			h.sendError(wc, frame.SessionID, "session not found")
			return
		}
		h.send(wc, evt)
	default:
		h.sendError(wc, frame.SessionID, "unsupported frame type: "+frame.Type)
	}
}

func (h *Handler) send(wc *wsConn, evt event.Envelope) {
	if err := wc.WriteJSON(evt); err != nil {
		log.Printf("[websocket] write failed: %v", err)
	}
}

func (h *Handler) sendError(wc *wsConn, sessionID, message string) {
	evt := event.New(event.TypeError)
	evt.SessionID = sessionID
	evt.Message = message
	h.send(wc, evt)
}

// pingLoop keeps the connection alive until the read loop exits.
func (h *Handler) pingLoop(ctx context.Context, wc *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		}
	}
}
