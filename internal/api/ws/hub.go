package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/permission"
	"github.com/GriffinCanCode/WidgetHost/internal/domain/supervisor"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var (
	// ErrNoPresenter is returned by Prompt when no client is connected
	ErrNoPresenter = errors.New("no presentation client connected")
	// ErrClosed is returned by Prompt after Close
	ErrClosed = errors.New("hub closed")
)

type pendingPrompt struct {
	prompt permission.Prompt
	answer chan bool
}

// Hub fans host events out to WebSocket clients and routes their permission
// decisions back to waiting prompts
type Hub struct {
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	promptMu sync.Mutex
	pending  map[string]*pendingPrompt
}

// NewHub creates a hub. checkOrigin may be nil to accept loopback origins only.
func NewHub(checkOrigin func(r *http.Request) bool, metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	if checkOrigin == nil {
		checkOrigin = LoopbackOrigin
	}
	return &Hub{
		logger:   logging.OrNop(logger),
		metrics:  metrics,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:  make(map[*client]struct{}),
		pending:  make(map[string]*pendingPrompt),
	}
}

// HandleConnection upgrades the request and serves the client until it leaves
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := newClient(conn)
	if !h.register(cl) {
		cl.close()
		return
	}
	defer h.unregister(cl)

	go h.writeLoop(cl)

	h.send(cl, "hello", gin.H{"type": "hello", "service": "widgethost"})
	for _, p := range h.outstanding() {
		h.send(cl, "permission_prompt", promptMessage(p))
	}

	h.readLoop(cl)
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Prompt asks the connected clients to decide a permission request
func (h *Hub) Prompt(ctx context.Context, p permission.Prompt) (bool, error) {
	if h.Clients() == 0 {
		return false, ErrNoPresenter
	}

	pp := &pendingPrompt{prompt: p, answer: make(chan bool, 1)}
	h.promptMu.Lock()
	h.pending[p.ID] = pp
	h.promptMu.Unlock()

	h.broadcast("permission_prompt", promptMessage(p))

	select {
	case allow, ok := <-pp.answer:
		if !ok {
			return false, ErrClosed
		}
		return allow, nil
	case <-ctx.Done():
		if h.take(p.ID) != nil {
			h.broadcast("permission_expired", gin.H{"type": "permission_expired", "id": p.ID})
		}
		return false, ctx.Err()
	}
}

// Resolve answers a pending prompt. It reports false for unknown or already
// answered prompts.
func (h *Hub) Resolve(promptID string, allow bool) bool {
	pp := h.take(promptID)
	if pp == nil {
		return false
	}
	pp.answer <- allow
	h.broadcast("permission_resolved", gin.H{"type": "permission_resolved", "id": promptID})
	return true
}

// PublishEvent forwards a supervisor lifecycle event
func (h *Hub) PublishEvent(ev supervisor.Event) {
	h.broadcast("lifecycle", gin.H{
		"type":     "lifecycle",
		"event":    ev.Type,
		"instance": ev.Instance,
		"reason":   ev.Reason,
		"at":       ev.At,
	})
}

// PublishDecision forwards a stored or revoked permission decision
func (h *Hub) PublishDecision(d permission.Decision) {
	h.broadcast("permission_changed", gin.H{
		"type":       "permission_changed",
		"widget_id":  d.WidgetID,
		"permission": d.Permission,
		"granted":    d.Granted,
		"revoked":    d.Revoked,
	})
}

// Close disconnects every client and fails pending prompts
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for cl := range clients {
		cl.close()
	}

	h.promptMu.Lock()
	for id, pp := range h.pending {
		close(pp.answer)
		delete(h.pending, id)
	}
	h.promptMu.Unlock()
}

func (h *Hub) take(promptID string) *pendingPrompt {
	h.promptMu.Lock()
	defer h.promptMu.Unlock()
	pp, ok := h.pending[promptID]
	if ok {
		delete(h.pending, promptID)
	}
	return pp
}

func (h *Hub) outstanding() []permission.Prompt {
	h.promptMu.Lock()
	defer h.promptMu.Unlock()
	out := make([]permission.Prompt, 0, len(h.pending))
	for _, pp := range h.pending {
		out = append(out, pp.prompt)
	}
	return out
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	h.metrics.IncWSConnections()
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()

	if ok {
		h.metrics.DecWSConnections()
	}
	cl.close()
}

func (h *Hub) broadcast(msgType string, msg interface{}) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.String("type", msgType), zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		h.deliver(cl, msgType, data)
	}
}

func (h *Hub) send(cl *client, msgType string, msg interface{}) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.String("type", msgType), zap.Error(err))
		return
	}
	h.deliver(cl, msgType, data)
}

// deliver queues data for cl; a client too slow to keep up is dropped
func (h *Hub) deliver(cl *client, msgType string, data []byte) {
	if !cl.enqueue(data) {
		h.logger.Warn("Dropping slow WebSocket client")
		h.unregister(cl)
		return
	}
	h.metrics.RecordWSMessage("out", msgType)
}

func (h *Hub) readLoop(cl *client) {
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg types.WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.send(cl, "error", gin.H{"type": "error", "message": "malformed message"})
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "permission_decision":
			if !h.Resolve(msg.ID, msg.Allow) {
				h.send(cl, "error", gin.H{"type": "error", "message": "unknown or expired prompt", "id": msg.ID})
			}
		case "ping":
			h.send(cl, "pong", gin.H{"type": "pong"})
		default:
			h.send(cl, "error", gin.H{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-cl.out:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cl.close()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.close()
				return
			}
		case <-cl.done:
			_ = cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = cl.conn.Close()
			return
		}
	}
}

func promptMessage(p permission.Prompt) gin.H {
	return gin.H{
		"type":        "permission_prompt",
		"id":          p.ID,
		"widget_id":   p.WidgetID,
		"widget_name": p.WidgetName,
		"capability":  p.Capability,
		"label":       p.Label,
		"reason":      p.Reason,
	}
}
