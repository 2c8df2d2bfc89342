// Package memory contains the memory.note / memory.read adapters.
package memory

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"beatrice-server-go/internal/domain/orchestrator"
)

var memoryOps = orchestrator.Ops(orchestrator.OpMemoryNote, orchestrator.OpMemoryRead)

func checkKey(scope orchestrator.MemoryScope, key string) error {
	if !scope.Valid() {
		return fmt.Errorf("invalid memory scope %q", scope)
	}
	if key == "" {
		return errors.New("memory key is required")
	}
	return nil
}

// encode stores values as JSON text.
func encode(v any) (string, error) {
	data, err := sonic.MarshalString(v)
	if err != nil {
		return "", fmt.Errorf("encode memory value: %w", err)
	}
	return data, nil
}

func decode(s string) (any, error) {
	var v any
	if err := sonic.UnmarshalString(s, &v); err != nil {
		return nil, fmt.Errorf("decode memory value: %w", err)
	}
	return v, nil
}
