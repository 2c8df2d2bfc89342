package rag

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
)

// OpenAIEmbeddings 通过 OpenAI 生成向量；只提供 embed
type OpenAIEmbeddings struct {
	orchestrator.Descriptor
	client *openai.Client
	model  string
}

func NewOpenAIEmbeddings(cfg orchestrator.ProviderConfig) *OpenAIEmbeddings {
	return &OpenAIEmbeddings{
		Descriptor: orchestrator.NewDescriptor("openai-embeddings", false, orchestrator.Ops(orchestrator.OpEmbed)),
		client:     kit.OpenAI(cfg),
		model:      cfg.String("model", string(openai.SmallEmbedding3)),
	}
}

func (o *OpenAIEmbeddings) Embed(ctx context.Context, in orchestrator.EmbedIn) (*orchestrator.EmbedOut, error) {
	if len(in.Texts) == 0 {
		return nil, errors.New("texts is required")
	}
	model := in.Model
	if model == "" {
		model = o.model
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: in.Texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(in.Texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		v := make([]float64, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float64(f)
		}
		vectors[d.Index] = v
	}
	dim := 0
	for _, v := range vectors {
		if v == nil {
			return nil, errors.New("openai-embeddings: reply is missing vectors")
		}
		dim = len(v)
	}
	return &orchestrator.EmbedOut{
		Vectors: vectors,
		Dim:     dim,
		Meta:    orchestrator.Meta{"provider": "openai-embeddings", "model": model, "totalTokens": resp.Usage.TotalTokens},
	}, nil
}
