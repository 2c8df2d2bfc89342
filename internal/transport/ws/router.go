package ws

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"beatrice-server-go/internal/platform/logging"
	"beatrice-server-go/internal/platform/observability"
)

// HandlerBuilder creates a session handler for an upgraded websocket connection.
type HandlerBuilder func(conn *Connection, req *http.Request) (SessionHandler, error)

// Router upgrades HTTP requests to websocket sessions.
type Router struct {
	hub    *Hub
	logger logging.Interface

	upgrader         *websocket.Upgrader
	handshakeTimeout time.Duration
	authorize        func(*http.Request) error
	builder          atomic.Value // HandlerBuilder
	base             context.Context
}

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	CheckOrigin      func(r *http.Request) bool
	// Authorize rejects the upgrade when it returns an error.
	Authorize func(r *http.Request) error
	// BaseContext parents every session; cancelling it ends them all.
	BaseContext context.Context
}

// NewRouter constructs a websocket router.
func NewRouter(hub *Hub, logger logging.Interface, opts RouterOptions) *Router {
	if logger == nil {
		logger = logging.Nop()
	}
	upgrader := &websocket.Upgrader{CheckOrigin: opts.CheckOrigin}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}
	return &Router{
		hub:              hub,
		logger:           logger,
		upgrader:         upgrader,
		handshakeTimeout: timeout,
		authorize:        opts.Authorize,
		base:             base,
	}
}

// SetHandlerBuilder registers the builder invoked after a successful upgrade.
func (r *Router) SetHandlerBuilder(builder HandlerBuilder) {
	r.builder.Store(builder)
}

// Handle upgrades the HTTP connection and launches a new websocket session.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	value := r.builder.Load()
	if value == nil {
		http.Error(w, "websocket handler not ready", http.StatusServiceUnavailable)
		return
	}
	builder := value.(HandlerBuilder)

	if r.authorize != nil {
		if err := r.authorize(req); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	handshakeCtx, cancel := context.WithTimeoutCause(req.Context(), r.handshakeTimeout, ErrHandshakeTimeout)
	defer cancel()
	req = req.WithContext(handshakeCtx)

	span := observability.Start(handshakeCtx, "transport.websocket", "upgrade")
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		span.End(err)
		r.logger.ErrorTag("WebSocket", "握手失败: %v", err)
		return
	}

	clientID := req.Header.Get("Client-Id")
	if clientID == "" {
		clientID = req.URL.Query().Get("client-id")
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}
	wsConn := NewConnection(clientID, conn)

	handler, err := builder(wsConn, req)
	if err != nil || handler == nil {
		span.End(err)
		r.logger.ErrorTag("WebSocket", "创建会话处理器失败: %v", err)
		_ = wsConn.Close()
		return
	}
	span.End(nil)

	session := NewSession(r.base, handler, wsConn, r.logger)
	r.hub.Register(session)
	r.logger.InfoTag("WebSocket", "会话建立 %s", clientID)
	observability.Metric(r.base, "websocket.sessions.opened", 1, nil)

	go session.Run(func(runErr error) {
		r.hub.Unregister(session.ID())
		if runErr != nil {
			r.logger.WarnTag("WebSocket", "会话 %s 异常结束: %v", session.ID(), runErr)
		} else {
			r.logger.InfoTag("WebSocket", "会话结束 %s", session.ID())
		}
		observability.Metric(r.base, "websocket.sessions.closed", 1, nil)
	})
}

// Shutdown closes every live session.
func (r *Router) Shutdown() {
	r.hub.CloseAll(ErrSessionShutdown)
}

// CloseIdle closes sessions idle for longer than timeout and reports how many.
func (r *Router) CloseIdle(timeout time.Duration) int {
	return r.hub.CloseIdle(timeout)
}
