package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"beatrice-server-go/internal/domain/orchestrator"
)

type entry struct {
	vector   []float64
	metadata map[string]any
}

// namespace holds vectors of a single width, fixed by its first upsert.
type namespace struct {
	dim     int
	entries map[string]entry
}

// EmbeddedVectors 进程内向量库，按命名空间隔离，余弦相似度排序
type EmbeddedVectors struct {
	orchestrator.Descriptor
	mu     sync.RWMutex
	spaces map[string]*namespace
}

func NewEmbeddedVectors(orchestrator.ProviderConfig) *EmbeddedVectors {
	return &EmbeddedVectors{
		Descriptor: orchestrator.NewDescriptor("embedded-vectors", true,
			orchestrator.Ops(orchestrator.OpUpsert, orchestrator.OpSearch)),
		spaces: make(map[string]*namespace),
	}
}

// Upsert stores each vector; a missing id is generated. The whole batch is
// rejected when any vector is empty or differs from the namespace width.
func (e *EmbeddedVectors) Upsert(_ context.Context, in orchestrator.UpsertIn) (*orchestrator.UpsertOut, error) {
	if len(in.Vectors) == 0 {
		return nil, errors.New("vectors is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	dim := len(in.Vectors[0])
	space := e.spaces[in.Namespace]
	if space != nil {
		dim = space.dim
	}
	for i, v := range in.Vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("vectors[%d] is empty", i)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("vectors[%d]: %w", i, dimensionError(len(v), dim))
		}
	}
	if space == nil {
		space = &namespace{dim: dim, entries: make(map[string]entry)}
		e.spaces[in.Namespace] = space
	}

	ids := make([]string, len(in.Vectors))
	for i, v := range in.Vectors {
		id := ""
		if i < len(in.IDs) {
			id = in.IDs[i]
		}
		if id == "" {
			id = uuid.NewString()
		}
		var metadata map[string]any
		if i < len(in.Metadata) {
			metadata = in.Metadata[i]
		}
		space.entries[id] = entry{vector: append([]float64(nil), v...), metadata: metadata}
		ids[i] = id
	}
	return &orchestrator.UpsertOut{
		Upserted: len(ids),
		Meta:     orchestrator.Meta{"ids": ids, "namespace": in.Namespace, "size": len(space.entries)},
	}, nil
}

// Search ranks entries whose metadata equals every filter value.
func (e *EmbeddedVectors) Search(_ context.Context, in orchestrator.SearchIn) (*orchestrator.SearchOut, error) {
	if len(in.QueryVector) == 0 {
		return nil, errNoQuery
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	matches := make([]orchestrator.Match, 0)
	space := e.spaces[in.Namespace]
	if space == nil {
		return &orchestrator.SearchOut{Matches: matches, Meta: orchestrator.Meta{"namespace": in.Namespace}}, nil
	}
	if len(in.QueryVector) != space.dim {
		return nil, fmt.Errorf("query: %w", dimensionError(len(in.QueryVector), space.dim))
	}
	for id, ent := range space.entries {
		if !matchesFilter(ent.metadata, in.Filter) {
			continue
		}
		score := cosine(in.QueryVector, ent.vector)
		matches = append(matches, orchestrator.Match{ID: id, Score: score, Metadata: ent.metadata})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if k := topK(in.TopK); len(matches) > k {
		matches = matches[:k]
	}
	return &orchestrator.SearchOut{Matches: matches, Meta: orchestrator.Meta{"namespace": in.Namespace}}, nil
}

func matchesFilter(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func dimensionError(got, want int) error {
	return fmt.Errorf("dimension mismatch: %d vs %d", got, want)
}

// cosine expects equal lengths; zero vectors score 0.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
