package memory

import (
	"context"
	"errors"
	"net/http"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

// notionTextLimit keeps values under Notion's 2000-char rich_text limit.
const notionTextLimit = 1900

// NotionMemory 以 Notion 数据库作为长期记忆：Key 为标题列，Value 为富文本列
type NotionMemory struct {
	orchestrator.Descriptor
	cfg    orchestrator.ProviderConfig
	client *httpc.Client
	base   string
	dbID   string
}

func NewNotionMemory(cfg orchestrator.ProviderConfig) *NotionMemory {
	return &NotionMemory{
		Descriptor: orchestrator.NewDescriptor("notion-memory", false, memoryOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://api.notion.com"),
		dbID:       cfg.String("db", ""),
	}
}

func (n *NotionMemory) headers() map[string]string {
	return kit.Headers(kit.Bearer(n.cfg.APIKey), map[string]string{"Notion-Version": "2022-06-28"})
}

func (n *NotionMemory) Note(ctx context.Context, in orchestrator.MemoryNoteIn) (*orchestrator.MemoryNoteOut, error) {
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	if n.dbID == "" {
		return nil, errors.New("notion-memory: database id not configured")
	}
	value, err := encode(in.Value)
	if err != nil {
		return nil, err
	}
	if runes := []rune(value); len(runes) > notionTextLimit {
		value = string(runes[:notionTextLimit])
	}

	j, err := n.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     n.base + "/v1/pages",
		Headers: n.headers(),
		JSON: map[string]any{
			"parent": map[string]any{"database_id": n.dbID},
			"properties": map[string]any{
				"Key":   map[string]any{"title": []any{map[string]any{"text": map[string]any{"content": orchestrator.StoreKey(in.Scope, in.Key)}}}},
				"Value": map[string]any{"rich_text": []any{map[string]any{"text": map[string]any{"content": value}}}},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return &orchestrator.MemoryNoteOut{OK: httpc.String(j["id"]) != "", Meta: j}, nil
}

func (n *NotionMemory) Read(ctx context.Context, in orchestrator.MemoryReadIn) (*orchestrator.MemoryReadOut, error) {
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	if n.dbID == "" {
		return nil, errors.New("notion-memory: database id not configured")
	}
	j, err := n.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     n.base + "/v1/databases/" + n.dbID + "/query",
		Headers: n.headers(),
		JSON: map[string]any{
			"filter": map[string]any{
				"property": "Key",
				"title":    map[string]any{"equals": orchestrator.StoreKey(in.Scope, in.Key)},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	results, _ := j["results"].([]any)
	if len(results) == 0 {
		return &orchestrator.MemoryReadOut{Found: false, Meta: j}, nil
	}
	out := &orchestrator.MemoryReadOut{Found: true, Meta: j}
	richText, _ := httpc.Dig(results[0], "properties", "Value", "rich_text").([]any)
	if len(richText) > 0 {
		if raw := httpc.String(httpc.Dig(richText[0], "plain_text")); raw != "" {
			// 截断过的值不是合法 JSON，按原文返回
			if v, err := decode(raw); err == nil {
				out.Value = v
			} else {
				out.Value = raw
			}
		}
	}
	return out, nil
}
