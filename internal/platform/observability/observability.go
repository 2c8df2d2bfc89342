// Package observability emits debug-level spans and metric points through the
// structured logger. It stays silent until Setup enables it.
package observability

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type state struct {
	logger  *slog.Logger
	enabled bool
}

var current atomic.Pointer[state]

// Setup installs the sink. A nil logger or enabled=false turns everything off.
func Setup(logger *slog.Logger, enabled bool) {
	current.Store(&state{logger: logger, enabled: enabled && logger != nil})
}

// Enabled reports whether spans and metrics are emitted.
func Enabled() bool {
	s := current.Load()
	return s != nil && s.enabled
}

func sink() *slog.Logger {
	if s := current.Load(); s != nil && s.enabled {
		return s.logger
	}
	return nil
}

// Span measures one unit of work; End must be called once.
type Span struct {
	ctx       context.Context
	logger    *slog.Logger
	component string
	operation string
	start     time.Time
}

// Start opens a span. The returned span is usable when observability is off.
func Start(ctx context.Context, component, operation string) *Span {
	return &Span{ctx: ctx, logger: sink(), component: component, operation: operation, start: time.Now()}
}

// End records the span duration; err raises the level to error.
func (s *Span) End(err error) time.Duration {
	elapsed := time.Since(s.start)
	if s.logger == nil {
		return elapsed
	}
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("component", s.component),
		slog.String("operation", s.operation),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(s.ctx, level, "span", attrs...)
	return elapsed
}

// Metric emits one datapoint.
func Metric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger := sink()
	if logger == nil {
		return
	}
	attrs := make([]slog.Attr, 0, len(labels)+2)
	attrs = append(attrs, slog.String("metric", name), slog.Float64("value", value))
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "metric", attrs...)
}
