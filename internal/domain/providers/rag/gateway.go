// Package rag contains the embed / upsert / search adapters.
package rag

import (
	"context"
	"errors"
	"net/http"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

var (
	allOps     = orchestrator.Ops(orchestrator.OpEmbed, orchestrator.OpUpsert, orchestrator.OpSearch)
	errNoQuery = errors.New("queryVector is required")
)

// gateway is the self-hosted vector service contract: /embed, /upsert and
// /query accept the request contract as-is.
type gateway struct {
	orchestrator.Descriptor
	client *httpc.Client
	base   string
}

func (g *gateway) post(ctx context.Context, path string, body any) (map[string]any, error) {
	return g.client.JSON(ctx, httpc.Request{Method: http.MethodPost, URL: g.base + path, JSON: body})
}

func (g *gateway) Embed(ctx context.Context, in orchestrator.EmbedIn) (*orchestrator.EmbedOut, error) {
	j, err := g.post(ctx, "/embed", in)
	if err != nil {
		return nil, err
	}
	vectors := kit.Vectors(j["vectors"])
	if vectors == nil {
		return nil, errors.New(g.Name() + ": reply has no vectors")
	}
	dim, ok := httpc.Float(j["dim"])
	if !ok && len(vectors) > 0 {
		dim = float64(len(vectors[0]))
	}
	return &orchestrator.EmbedOut{Vectors: vectors, Dim: int(dim), Meta: j}, nil
}

func (g *gateway) Upsert(ctx context.Context, in orchestrator.UpsertIn) (*orchestrator.UpsertOut, error) {
	j, err := g.post(ctx, "/upsert", in)
	if err != nil {
		return nil, err
	}
	return &orchestrator.UpsertOut{Upserted: countOr(j["upserted"], len(in.IDs)), Meta: j}, nil
}

func (g *gateway) Search(ctx context.Context, in orchestrator.SearchIn) (*orchestrator.SearchOut, error) {
	j, err := g.post(ctx, "/query", in)
	if err != nil {
		return nil, err
	}
	return &orchestrator.SearchOut{Matches: kit.Matches(j["matches"]), Meta: j}, nil
}

// countOr returns a positive reported count, or fallback.
func countOr(v any, fallback int) int {
	if n, ok := httpc.Float(v); ok && n > 0 {
		return int(n)
	}
	return fallback
}

// FAISS 自建向量检索网关
type FAISS struct{ gateway }

func NewFAISS(cfg orchestrator.ProviderConfig) *FAISS {
	return &FAISS{gateway{
		Descriptor: orchestrator.NewDescriptor("faiss", true, allOps),
		client:     kit.HTTP(cfg),
		base:       cfg.Base("http://localhost:8900"),
	}}
}

// Qdrant 自建向量数据库网关
type Qdrant struct{ gateway }

func NewQdrant(cfg orchestrator.ProviderConfig) *Qdrant {
	return &Qdrant{gateway{
		Descriptor: orchestrator.NewDescriptor("qdrant", true, allOps),
		client:     kit.HTTP(cfg),
		base:       cfg.Base("http://localhost:6333"),
	}}
}
