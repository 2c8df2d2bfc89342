package orchestrator

import (
	"context"
	"fmt"
	"time"

	"beatrice-server-go/internal/domain/eventbus"
)

// Logger is the tagged logging surface the orchestrator needs.
type Logger interface {
	DebugTag(tag, msg string, args ...any)
	InfoTag(tag, msg string, args ...any)
	WarnTag(tag, msg string, args ...any)
	ErrorTag(tag, msg string, args ...any)
}

// Publisher receives attempt and exhaustion events; evbus.Bus satisfies it.
type Publisher interface {
	Publish(topic string, args ...any)
}

type nopLogger struct{}

func (nopLogger) DebugTag(string, string, ...any) {}
func (nopLogger) InfoTag(string, string, ...any)  {}
func (nopLogger) WarnTag(string, string, ...any)  {}
func (nopLogger) ErrorTag(string, string, ...any) {}

const logTag = "MCP"

// Orchestrator is the explicit orchestration context: one registry plus the
// seven capability facades bound to it.
type Orchestrator struct {
	registry *Registry
	logger   Logger
	events   Publisher

	Voice     VoiceFacade
	Messaging MessagingFacade
	DB        DBFacade
	Storage   StorageFacade
	RAG       RAGFacade
	Memory    MemoryFacade
	Tools     ToolsFacade
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for per-attempt failures.
func WithLogger(l Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// New 创建编排上下文；registry 为 nil 时使用空注册表
func New(registry *Registry, opts ...Option) *Orchestrator {
	if registry == nil {
		registry = NewRegistry()
	}
	o := &Orchestrator{
		registry: registry,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.Voice = VoiceFacade{o}
	o.Messaging = MessagingFacade{o}
	o.DB = DBFacade{o}
	o.Storage = StorageFacade{o}
	o.RAG = RAGFacade{o}
	o.Memory = MemoryFacade{o}
	o.Tools = ToolsFacade{o}
	return o
}

// Registry returns the registry the facades read from.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) publish(topic string, payload any) {
	if o.events != nil {
		o.events.Publish(topic, payload)
	}
}

// invoke is the fallback loop shared by every facade operation. The registry
// generation is captured once so a concurrent rebuild cannot change the
// candidate set mid-call.
func invoke[P Provider, In, Out any](
	ctx context.Context,
	o *Orchestrator,
	op Operation,
	preferred []string,
	in In,
	call func(P, context.Context, In) (*Out, error),
) (*Out, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	providers := o.registry.snapshot()
	attempts := make([]Attempt, 0, len(preferred))

	for _, name := range preferred {
		if err := ctx.Err(); err != nil {
			return nil, o.exhausted(op, attempts, err)
		}

		p, ok := providers[name]
		if !ok {
			attempts = append(attempts, o.skip(name, op, OutcomeNotFound, ErrProviderNotFound))
			continue
		}
		impl, ok := any(p).(P)
		if !ok || !p.Operations().Has(op) {
			attempts = append(attempts, o.skip(name, op, OutcomeUnsupported, ErrOperationUnsupported))
			continue
		}

		start := time.Now()
		out, err := safeCall(ctx, impl, in, call)
		elapsed := time.Since(start)
		if err == nil && out == nil {
			err = ErrEmptyResult
		}
		if err == nil {
			o.logger.DebugTag(logTag, "提供者 %s 执行 %s 成功，耗时 %s", name, op, elapsed)
			return out, nil
		}

		attempt := Attempt{Provider: name, Operation: op, Outcome: OutcomeFailed, Err: err, Duration: elapsed}
		attempts = append(attempts, attempt)
		o.logger.WarnTag(logTag, "提供者 %s 执行 %s 失败: %v", name, op, err)
		o.publish(eventbus.TopicAttemptFailed, attemptEvent(attempt))
	}

	return nil, o.exhausted(op, attempts, nil)
}

// safeCall turns a provider panic into an ordinary failure.
func safeCall[P any, In, Out any](ctx context.Context, p P, in In, call func(P, context.Context, In) (*Out, error)) (out *Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()
	return call(p, ctx, in)
}

func (o *Orchestrator) skip(name string, op Operation, outcome Outcome, err error) Attempt {
	attempt := Attempt{Provider: name, Operation: op, Outcome: outcome, Err: err}
	o.logger.WarnTag(logTag, "提供者 %s 跳过 %s: %v", name, op, err)
	o.publish(eventbus.TopicAttemptFailed, attemptEvent(attempt))
	return attempt
}

func (o *Orchestrator) exhausted(op Operation, attempts []Attempt, cause error) error {
	err := &ExhaustedError{Operation: op, Attempts: attempts, Cause: cause}
	o.logger.ErrorTag(logTag, "%v", err)

	records := make([]eventbus.AttemptEvent, len(attempts))
	for i, a := range attempts {
		records[i] = attemptEvent(a)
	}
	o.publish(eventbus.TopicExhausted, eventbus.ExhaustedEvent{
		Operation: string(op),
		Attempts:  records,
		Message:   err.Error(),
	})
	return err
}

func attemptEvent(a Attempt) eventbus.AttemptEvent {
	return eventbus.AttemptEvent{
		Provider:   a.Provider,
		Operation:  string(a.Operation),
		Outcome:    string(a.Outcome),
		Reason:     a.Reason(),
		DurationMS: a.Duration.Milliseconds(),
	}
}
