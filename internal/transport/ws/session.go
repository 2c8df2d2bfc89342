package ws

import (
	"context"
	"sync/atomic"
	"time"

	"beatrice-server-go/internal/platform/logging"
)

const defaultCloseTimeout = 5 * time.Second

// SessionHandler serves one upgraded connection until it ends or ctx is cancelled.
type SessionHandler interface {
	Handle(ctx context.Context) error
	Close()
}

// Session encapsulates the lifecycle of a single websocket connection.
type Session struct {
	id      string
	handler SessionHandler
	conn    *Connection
	logger  logging.Interface

	ctx    context.Context
	cancel context.CancelCauseFunc

	closed atomic.Bool
}

// NewSession constructs a managed websocket session.
func NewSession(parent context.Context, handler SessionHandler, conn *Connection, logger logging.Interface) *Session {
	sessionCtx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:      conn.ID(),
		handler: handler,
		conn:    conn,
		logger:  logger,
		ctx:     sessionCtx,
		cancel:  cancel,
	}
}

// Context returns the session context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// ID exposes the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run executes the session handler and invokes onDone once exiting.
func (s *Session) Run(onDone func(error)) {
	runErr := s.handler.Handle(s.ctx)
	s.Close(runErr)
	if onDone != nil {
		onDone(runErr)
	}
}

// Close attempts to gracefully terminate the session.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel(reason)

	shutdownCtx, cancel := context.WithTimeoutCause(context.Background(), defaultCloseTimeout, reason)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.handler.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.WarnTag("WebSocket", "会话 %s 关闭超时: %v", s.id, context.Cause(shutdownCtx))
	}

	if err := s.conn.Close(); err != nil {
		s.logger.WarnTag("WebSocket", "会话 %s 连接关闭失败: %v", s.id, err)
	}
}
