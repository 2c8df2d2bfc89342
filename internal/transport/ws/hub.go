package ws

import (
	"sync"
	"time"

	"beatrice-server-go/internal/platform/logging"
)

// Hub tracks the active websocket sessions.
type Hub struct {
	logger   logging.Interface
	sessions sync.Map // map[string]*Session
}

// NewHub builds a fresh session hub.
func NewHub(logger logging.Interface) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{logger: logger}
}

// Register adds a new session to the hub.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	h.sessions.Store(session.ID(), session)
}

// Unregister removes the session from the hub.
func (h *Hub) Unregister(id string) {
	if id == "" {
		return
	}
	h.sessions.Delete(id)
}

// CloseAll terminates every active session.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}
	closed := 0
	h.sessions.Range(func(key, value any) bool {
		if session, ok := value.(*Session); ok {
			session.Close(reason)
			closed++
		}
		h.sessions.Delete(key)
		return true
	})
	if closed > 0 {
		h.logger.InfoTag("WebSocket", "已关闭 %d 个会话", closed)
	}
}

// CloseIdle closes sessions whose connection has been silent longer than timeout.
func (h *Hub) CloseIdle(timeout time.Duration) int {
	closed := 0
	h.sessions.Range(func(key, value any) bool {
		if session, ok := value.(*Session); ok && session.conn.IsStale(timeout) {
			session.Close(ErrSessionShutdown)
			h.sessions.Delete(key)
			closed++
		}
		return true
	})
	return closed
}

// Count returns the number of active sessions.
func (h *Hub) Count() int {
	n := 0
	h.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
