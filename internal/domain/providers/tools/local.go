package tools

import (
	"context"
	"fmt"
	"time"

	"beatrice-server-go/internal/domain/orchestrator"
)

// Func is an in-process tool implementation.
type Func func(ctx context.Context, args map[string]any) (any, error)

// LocalFunctions 进程内函数路由；函数表在构造后不再变化
type LocalFunctions struct {
	orchestrator.Descriptor
	table map[string]Func
}

// NewLocalFunctions registers ping and get_current_time, then any map[string]Func
// supplied in extra "functions".
func NewLocalFunctions(cfg orchestrator.ProviderConfig) *LocalFunctions {
	l := &LocalFunctions{
		Descriptor: orchestrator.NewDescriptor("local-fn", true, callOps),
		table: map[string]Func{
			"ping":             ping,
			"get_current_time": currentTime,
		},
	}
	if extra, ok := cfg.Extra["functions"].(map[string]Func); ok {
		for name, fn := range extra {
			l.table[name] = fn
		}
	}
	return l
}

func ping(_ context.Context, args map[string]any) (any, error) {
	return map[string]any{"ok": true, "echo": args}, nil
}

func currentTime(_ context.Context, args map[string]any) (any, error) {
	now := time.Now()
	if tz, _ := args["timezone"].(string); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", tz)
		}
		now = now.In(loc)
	}
	return map[string]any{
		"iso":      now.Format(time.RFC3339),
		"unix":     now.Unix(),
		"timezone": now.Location().String(),
	}, nil
}

func (l *LocalFunctions) CallTool(ctx context.Context, in orchestrator.ToolCallIn) (*orchestrator.ToolCallOut, error) {
	fn, ok := l.table[in.Name]
	if !ok {
		return nil, fmt.Errorf("No local function: %s", in.Name)
	}
	result, err := fn(ctx, argsOrEmpty(in.Args))
	if err != nil {
		return nil, err
	}
	return &orchestrator.ToolCallOut{Result: result}, nil
}
