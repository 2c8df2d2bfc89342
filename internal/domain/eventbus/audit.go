package eventbus

import (
	"context"
	"time"
)

// EventStore is the persistence side of the audit trail.
type EventStore interface {
	Append(ctx context.Context, eventType, provider, operation string, data any) error
}

// Logger 审计记录器使用的日志接口
type Logger interface {
	WarnTag(tag, msg string, args ...any)
}

// AuditRecorder persists orchestration events to an EventStore.
type AuditRecorder struct {
	bus     *Bus
	store   EventStore
	logger  Logger
	timeout time.Duration

	handlers map[string]any
}

// NewAuditRecorder 创建审计记录器；调用 Attach 后开始订阅
func NewAuditRecorder(bus *Bus, store EventStore, logger Logger) *AuditRecorder {
	return &AuditRecorder{
		bus:     bus,
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Attach subscribes the recorder to every audit topic.
func (r *AuditRecorder) Attach() error {
	r.handlers = map[string]any{
		TopicAttemptFailed: func(e AttemptEvent) {
			r.append(TopicAttemptFailed, e.Provider, e.Operation, e)
		},
		TopicExhausted: func(e ExhaustedEvent) {
			r.append(TopicExhausted, "", e.Operation, e)
		},
		TopicRegistryRebuilt: func(e RegistryRebuiltEvent) {
			r.append(TopicRegistryRebuilt, "", "", e)
		},
		TopicToolDispatched: func(e ToolDispatchedEvent) {
			r.append(TopicToolDispatched, "", e.Name, e)
		},
	}
	for _, topic := range AuditTopics {
		if err := r.bus.Subscribe(topic, r.handlers[topic]); err != nil {
			return err
		}
	}
	return nil
}

// Detach removes the subscriptions installed by Attach.
func (r *AuditRecorder) Detach() {
	for topic, fn := range r.handlers {
		_ = r.bus.Unsubscribe(topic, fn)
	}
	r.handlers = nil
}

func (r *AuditRecorder) append(topic, provider, operation string, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Append(ctx, topic, provider, operation, data); err != nil && r.logger != nil {
		r.logger.WarnTag("审计", "写入事件 %s 失败: %v", topic, err)
	}
}
