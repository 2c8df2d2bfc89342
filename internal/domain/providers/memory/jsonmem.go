package memory

import (
	"context"
	"net/http"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

// JSONMemory 文件型记忆网关：/mem/put 与 /mem/get
type JSONMemory struct {
	orchestrator.Descriptor
	client *httpc.Client
	base   string
}

func NewJSONMemory(cfg orchestrator.ProviderConfig) *JSONMemory {
	return &JSONMemory{
		Descriptor: orchestrator.NewDescriptor("json-memory", true, memoryOps),
		client:     kit.HTTP(cfg),
		base:       cfg.Base("http://localhost:8787"),
	}
}

func (j *JSONMemory) Note(ctx context.Context, in orchestrator.MemoryNoteIn) (*orchestrator.MemoryNoteOut, error) {
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	reply, err := j.client.JSON(ctx, httpc.Request{Method: http.MethodPost, URL: j.base + "/mem/put", JSON: in})
	if err != nil {
		return nil, err
	}
	return &orchestrator.MemoryNoteOut{OK: true, Meta: reply}, nil
}

func (j *JSONMemory) Read(ctx context.Context, in orchestrator.MemoryReadIn) (*orchestrator.MemoryReadOut, error) {
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	reply, err := j.client.JSON(ctx, httpc.Request{
		Method: http.MethodGet,
		URL:    j.base + "/mem/get",
		Query:  map[string]string{"scope": string(in.Scope), "key": in.Key},
	})
	if err != nil {
		return nil, err
	}
	found, _ := reply["found"].(bool)
	return &orchestrator.MemoryReadOut{Value: reply["value"], Found: found, Meta: reply}, nil
}
