package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"dcaadvisor/internal/metrics"
	"dcaadvisor/internal/services/advisor"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

const (
	wsWriteTimeout        = 10 * time.Second
	defaultWSPongTimeout  = 60 * time.Second
	defaultWSPingInterval = 30 * time.Second
	wsQueueSize           = 4
)

// Frame types sent to WebSocket clients
const (
	FrameTool   = "tool"
	FrameAnswer = "answer"
	FrameError  = "error"
)

// Frame is one server-to-client WebSocket message
type Frame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`

	Tool     string `json:"tool,omitempty"`
	Status   string `json:"status,omitempty"`
	Payload  any    `json:"payload,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// WebSocketConfig tunes the chat socket. PingInterval must stay below
// PongTimeout; zero values take the defaults.
type WebSocketConfig struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// WebSocketHandler serves chat over a WebSocket. Every text frame from the
// client is an AskRequest; the reply is one tool frame per executed tool call
// followed by an answer or error frame. Requests on one socket are answered
// in order.
type WebSocketHandler struct {
	advisor      Advisor
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongTimeout  time.Duration
	log          *logger.Logger
}

// NewWebSocketHandler creates the handler; an empty AllowedOrigins accepts any origin
func NewWebSocketHandler(a Advisor, cfg WebSocketConfig) *WebSocketHandler {
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongTimeout {
		cfg.PingInterval = cfg.PongTimeout / 2
	}
	origins := cfg.AllowedOrigins

	return &WebSocketHandler{
		advisor: a,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || slices.Contains(origins, origin)
			},
		},
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		log:          logger.Get().With("component", "chat_ws"),
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	// a closed socket cancels the turn in flight
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	// gorilla allows one concurrent writer, so every write goes through send
	writes := make(chan Frame)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go h.writeLoop(conn, writes, done, stopped)

	send := func(f Frame) bool {
		select {
		case writes <- f:
			return true
		case <-stopped:
			return false
		}
	}

	// the reader runs for the whole connection so pongs are processed while
	// a long turn is still running
	requests := make(chan advisor.AskRequest, wsQueueSize)
	readerDone := make(chan struct{})
	go h.readLoop(conn, requests, send, cancel, readerDone)

	defer func() {
		close(done)
		<-stopped
		_ = conn.Close()
		<-readerDone
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if !h.answer(ctx, req, send) {
				return
			}
		}
	}
}

func (h *WebSocketHandler) readLoop(conn *websocket.Conn, requests chan<- advisor.AskRequest, send func(Frame) bool, cancel context.CancelFunc, readerDone chan<- struct{}) {
	defer close(readerDone)
	defer close(requests)
	defer cancel()

	for {
		var req advisor.AskRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warnw("WebSocket read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongTimeout))

		select {
		case requests <- req:
		default:
			busy := Frame{
				Type:           FrameError,
				ConversationID: req.ConversationID,
				Error:          errors.CodeRateLimited,
				Message:        "Too many pending requests on this connection. Wait for the current answer.",
			}
			if !send(busy) {
				return
			}
		}
	}
}

// answer runs one turn and streams its frames; false means the socket is gone
func (h *WebSocketHandler) answer(ctx context.Context, req advisor.AskRequest, send func(Frame) bool) bool {
	resp, err := h.advisor.Ask(ctx, req)
	if resp != nil {
		for _, res := range resp.Trace.ToolResults() {
			f := Frame{
				Type:     FrameTool,
				Tool:     res.ToolName,
				Status:   string(res.Status),
				Payload:  res.Payload,
				Duration: res.Duration.String(),
			}
			if res.Failure != nil {
				f.Error = res.Failure.Reason
				f.Message = res.Failure.Message
			}
			if !send(f) {
				return false
			}
		}
	}

	final := Frame{Type: FrameAnswer}
	if resp != nil {
		final.ConversationID = resp.ConversationID
		final.Model = resp.Model
		final.Message = resp.Message
	}
	if err != nil {
		body := errorBody(err, resp)
		final.Type = FrameError
		final.Error = body.Error
		final.Message = body.Message
	}
	return send(final)
}

func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, writes <-chan Frame, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteTimeout))
			return
		case f := <-writes:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				h.log.Warnw("WebSocket write failed", "error", errors.Wrap(err, "write frame"))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
