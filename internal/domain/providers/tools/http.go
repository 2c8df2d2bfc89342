// Package tools contains the tools.call adapters.
package tools

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

var callOps = orchestrator.Ops(orchestrator.OpToolCall)

func argsOrEmpty(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

// HTTPTool 通用 HTTP 工具：按调用方给出的 endpoint 转发参数
type HTTPTool struct {
	orchestrator.Descriptor
	client *httpc.Client
}

func NewHTTPTool(cfg orchestrator.ProviderConfig) *HTTPTool {
	return &HTTPTool{
		Descriptor: orchestrator.NewDescriptor("http-tool", true, callOps),
		client:     kit.HTTP(cfg),
	}
}

func (h *HTTPTool) CallTool(ctx context.Context, in orchestrator.ToolCallIn) (*orchestrator.ToolCallOut, error) {
	if in.Endpoint == "" {
		return nil, errors.New("http-tool: endpoint is required")
	}
	req := httpc.Request{Method: http.MethodPost, URL: in.Endpoint}
	if in.AuthHeader != "" {
		req.Headers = map[string]string{"Authorization": in.AuthHeader}
	}
	if strings.EqualFold(in.Method, http.MethodGet) {
		req.Method = http.MethodGet
	} else {
		req.JSON = argsOrEmpty(in.Args)
	}
	j, err := h.client.JSON(ctx, req)
	if err != nil {
		return nil, err
	}
	return &orchestrator.ToolCallOut{Result: j, Raw: j}, nil
}

// ZapierNLA 调用 Zapier 暴露的动作
type ZapierNLA struct {
	orchestrator.Descriptor
	cfg    orchestrator.ProviderConfig
	client *httpc.Client
	base   string
}

func NewZapierNLA(cfg orchestrator.ProviderConfig) *ZapierNLA {
	return &ZapierNLA{
		Descriptor: orchestrator.NewDescriptor("zapier-nla", false, callOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://nla.zapier.com"),
	}
}

func (z *ZapierNLA) CallTool(ctx context.Context, in orchestrator.ToolCallIn) (*orchestrator.ToolCallOut, error) {
	if in.Name == "" {
		return nil, errors.New("zapier-nla: action name is required")
	}
	j, err := z.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     z.base + "/api/v1/exposed/" + url.PathEscape(in.Name) + "/execute/",
		Headers: map[string]string{"x-api-key": z.cfg.APIKey},
		JSON:    argsOrEmpty(in.Args),
	})
	if err != nil {
		return nil, err
	}
	return &orchestrator.ToolCallOut{Result: j, Raw: j}, nil
}
