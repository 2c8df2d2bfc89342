package tools

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
)

// OpenAIFunctions 把工具调用交给模型，由模型挑选函数并生成参数
type OpenAIFunctions struct {
	orchestrator.Descriptor
	client *openai.Client
	model  string
	tools  []openai.Tool
}

// NewOpenAIFunctions reads the declared tools from extra "tools" ([]openai.Tool).
func NewOpenAIFunctions(cfg orchestrator.ProviderConfig) *OpenAIFunctions {
	declared, _ := cfg.Extra["tools"].([]openai.Tool)
	return &OpenAIFunctions{
		Descriptor: orchestrator.NewDescriptor("openai-functions", false, callOps),
		client:     kit.OpenAI(cfg),
		model:      cfg.String("model", openai.GPT4oMini),
		tools:      declared,
	}
}

func (o *OpenAIFunctions) CallTool(ctx context.Context, in orchestrator.ToolCallIn) (*orchestrator.ToolCallOut, error) {
	prompt, err := sonic.MarshalString(in)
	if err != nil {
		return nil, fmt.Errorf("openai-functions: encode call: %w", err)
	}
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
	}
	if len(o.tools) > 0 {
		req.Tools = o.tools
		req.ToolChoice = "auto"
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai-functions: %w", orchestrator.ErrEmptyResult)
	}

	msg := resp.Choices[0].Message
	result := map[string]any{"content": msg.Content}
	if len(msg.ToolCalls) > 0 {
		calls := make([]map[string]any, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			call := map[string]any{"id": tc.ID, "name": tc.Function.Name}
			var args map[string]any
			if err := sonic.UnmarshalString(tc.Function.Arguments, &args); err == nil {
				call["arguments"] = args
			} else {
				call["arguments"] = tc.Function.Arguments
			}
			calls = append(calls, call)
		}
		result["toolCalls"] = calls
	}
	return &orchestrator.ToolCallOut{
		Result: result,
		Raw:    resp,
		Meta:   orchestrator.Meta{"model": resp.Model, "finishReason": string(resp.Choices[0].FinishReason)},
	}, nil
}
