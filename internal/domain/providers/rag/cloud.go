package rag

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

// placeholderDim matches the width of the hosted indexes' default embedding model.
const placeholderDim = 1536

// embedVia uses the configured embedder, or constant placeholder vectors when none is set.
func embedVia(ctx context.Context, embedder orchestrator.Embedder, in orchestrator.EmbedIn) (*orchestrator.EmbedOut, error) {
	if embedder != nil {
		return embedder.Embed(ctx, in)
	}
	return &orchestrator.EmbedOut{
		Vectors: kit.Placeholder(len(in.Texts), placeholderDim, 0.1),
		Dim:     placeholderDim,
		Meta:    orchestrator.Meta{"placeholder": true},
	}, nil
}

// Pinecone 托管向量索引；自身不提供 embedding
type Pinecone struct {
	orchestrator.Descriptor
	cfg      orchestrator.ProviderConfig
	client   *httpc.Client
	embedder orchestrator.Embedder
}

// NewPinecone reads an optional orchestrator.Embedder from extra "embedder".
func NewPinecone(cfg orchestrator.ProviderConfig) *Pinecone {
	embedder, _ := cfg.Extra["embedder"].(orchestrator.Embedder)
	return &Pinecone{
		Descriptor: orchestrator.NewDescriptor("pinecone", false, allOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		embedder:   embedder,
	}
}

func (p *Pinecone) call(ctx context.Context, path string, body any) (map[string]any, error) {
	base, err := kit.RequireBase(p.Name(), p.cfg)
	if err != nil {
		return nil, err
	}
	return p.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     base + path,
		Headers: map[string]string{"Api-Key": p.cfg.APIKey},
		JSON:    body,
	})
}

func (p *Pinecone) Embed(ctx context.Context, in orchestrator.EmbedIn) (*orchestrator.EmbedOut, error) {
	return embedVia(ctx, p.embedder, in)
}

func (p *Pinecone) Upsert(ctx context.Context, in orchestrator.UpsertIn) (*orchestrator.UpsertOut, error) {
	vectors := make([]map[string]any, len(in.Vectors))
	for i, values := range in.Vectors {
		metadata := map[string]any{}
		if i < len(in.Metadata) && in.Metadata[i] != nil {
			metadata = in.Metadata[i]
		}
		id := ""
		if i < len(in.IDs) {
			id = in.IDs[i]
		}
		vectors[i] = map[string]any{"id": id, "values": values, "metadata": metadata}
	}
	j, err := p.call(ctx, "/vectors/upsert", map[string]any{"vectors": vectors, "namespace": in.Namespace})
	if err != nil {
		return nil, err
	}
	return &orchestrator.UpsertOut{Upserted: countOr(j["upsertedCount"], len(in.IDs)), Meta: j}, nil
}

func (p *Pinecone) Search(ctx context.Context, in orchestrator.SearchIn) (*orchestrator.SearchOut, error) {
	if len(in.QueryVector) == 0 {
		return nil, errNoQuery
	}
	body := map[string]any{
		"vector":          in.QueryVector,
		"topK":            topK(in.TopK),
		"includeMetadata": true,
		"namespace":       in.Namespace,
	}
	if len(in.Filter) > 0 {
		body["filter"] = in.Filter
	}
	j, err := p.call(ctx, "/query", body)
	if err != nil {
		return nil, err
	}
	return &orchestrator.SearchOut{Matches: kit.Matches(j["matches"]), Meta: j}, nil
}

func topK(k int) int {
	if k <= 0 {
		return 5
	}
	return k
}

// WeaviateCloud 托管 Weaviate；命名空间即类名
type WeaviateCloud struct {
	orchestrator.Descriptor
	cfg      orchestrator.ProviderConfig
	client   *httpc.Client
	embedder orchestrator.Embedder
}

// NewWeaviateCloud reads an optional orchestrator.Embedder from extra "embedder".
func NewWeaviateCloud(cfg orchestrator.ProviderConfig) *WeaviateCloud {
	embedder, _ := cfg.Extra["embedder"].(orchestrator.Embedder)
	return &WeaviateCloud{
		Descriptor: orchestrator.NewDescriptor("weaviate-cloud", false, allOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		embedder:   embedder,
	}
}

var classPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func className(namespace string) (string, error) {
	if namespace == "" {
		return "Document", nil
	}
	// 类名会拼进 GraphQL 查询，必须是合法标识符
	if !classPattern.MatchString(namespace) {
		return "", fmt.Errorf("weaviate-cloud: invalid class name %q", namespace)
	}
	return strings.ToUpper(namespace[:1]) + namespace[1:], nil
}

func (w *WeaviateCloud) Embed(ctx context.Context, in orchestrator.EmbedIn) (*orchestrator.EmbedOut, error) {
	return embedVia(ctx, w.embedder, in)
}

func (w *WeaviateCloud) Upsert(ctx context.Context, in orchestrator.UpsertIn) (*orchestrator.UpsertOut, error) {
	base, err := kit.RequireBase(w.Name(), w.cfg)
	if err != nil {
		return nil, err
	}
	class, err := className(in.Namespace)
	if err != nil {
		return nil, err
	}
	objects := make([]map[string]any, len(in.IDs))
	for i, id := range in.IDs {
		properties := map[string]any{}
		if i < len(in.Metadata) && in.Metadata[i] != nil {
			properties = in.Metadata[i]
		}
		obj := map[string]any{"class": class, "properties": properties, "id": id}
		if i < len(in.Vectors) {
			obj["vector"] = in.Vectors[i]
		}
		objects[i] = obj
	}

	resp, err := w.client.Do(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     base + "/v1/batch/objects",
		Headers: kit.Bearer(w.cfg.APIKey),
		JSON:    map[string]any{"objects": objects},
	})
	if err != nil {
		return nil, err
	}
	var results []any
	if err := resp.Decode(&results); err != nil {
		return nil, fmt.Errorf("weaviate-cloud: decode batch reply: %w", err)
	}
	return &orchestrator.UpsertOut{Upserted: len(results), Meta: orchestrator.Meta{"results": results}}, nil
}

func (w *WeaviateCloud) Search(ctx context.Context, in orchestrator.SearchIn) (*orchestrator.SearchOut, error) {
	base, err := kit.RequireBase(w.Name(), w.cfg)
	if err != nil {
		return nil, err
	}
	if len(in.QueryVector) == 0 {
		return nil, errNoQuery
	}
	class, err := className(in.Namespace)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(in.QueryVector))
	for i, v := range in.QueryVector {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	query := fmt.Sprintf("{ Get { %s(nearVector: {vector: [%s]}, limit: %d) { _additional { id distance certainty } } } }",
		class, strings.Join(parts, ","), topK(in.TopK))

	j, err := w.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     base + "/v1/graphql",
		Headers: kit.Bearer(w.cfg.APIKey),
		JSON:    map[string]any{"query": query},
	})
	if err != nil {
		return nil, err
	}

	items, _ := httpc.Dig(j, "data", "Get", class).([]any)
	matches := make([]orchestrator.Match, 0, len(items))
	for _, item := range items {
		extra := httpc.Dig(item, "_additional")
		score, ok := httpc.Float(httpc.Dig(extra, "certainty"))
		if !ok {
			if d, ok := httpc.Float(httpc.Dig(extra, "distance")); ok {
				score = 1 - d
			}
		}
		matches = append(matches, orchestrator.Match{ID: httpc.String(httpc.Dig(extra, "id")), Score: score})
	}
	return &orchestrator.SearchOut{Matches: matches, Meta: j}, nil
}
