package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"beatrice-server-go/internal/app/services"
)

// Dispatcher runs one model function call.
type Dispatcher interface {
	Dispatch(ctx context.Context, call services.FunctionCall) services.FunctionResponse
}

// errorFrame 无法解析的帧的回复
type errorFrame struct {
	Error string `json:"error"`
}

// toolHandler answers every text frame {id, name, args} with {id, name, response}.
type toolHandler struct {
	conn       *Connection
	dispatcher Dispatcher
}

// ToolHandlerBuilder returns a HandlerBuilder serving session tool calls.
func ToolHandlerBuilder(dispatcher Dispatcher) HandlerBuilder {
	return func(conn *Connection, _ *http.Request) (SessionHandler, error) {
		if dispatcher == nil {
			return nil, errors.New("dispatcher is required")
		}
		return &toolHandler{conn: conn, dispatcher: dispatcher}, nil
	}
}

func (h *toolHandler) Handle(ctx context.Context) error {
	for {
		messageType, payload, err := h.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || h.conn.IsClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage {
			if err := h.conn.WriteJSON(errorFrame{Error: "only text frames are accepted"}); err != nil {
				return err
			}
			continue
		}

		var call services.FunctionCall
		if err := sonic.Unmarshal(payload, &call); err != nil || call.Name == "" {
			if err := h.conn.WriteJSON(errorFrame{Error: "expected {id, name, args}"}); err != nil {
				return err
			}
			continue
		}
		if err := h.conn.WriteJSON(h.dispatcher.Dispatch(ctx, call)); err != nil {
			return err
		}
	}
}

func (h *toolHandler) Close() {}
