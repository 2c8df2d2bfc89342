package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatrice-server-go/internal/domain/orchestrator"
)

type seen struct {
	method  string
	path    string
	rawPath string
	auth    string
	apiKey  string
	body    string
}

func echoServer(t *testing.T, reply string) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		*s = seen{r.Method, r.URL.Path, r.URL.EscapedPath(), r.Header.Get("Authorization"), r.Header.Get("x-api-key"), string(data)}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func TestHTTPTool(t *testing.T) {
	srv, last := echoServer(t, `{"temp":21}`)
	h := NewHTTPTool(orchestrator.ProviderConfig{})
	ctx := context.Background()

	out, err := h.CallTool(ctx, orchestrator.ToolCallIn{Name: "weather", Endpoint: srv.URL + "/w", Args: map[string]any{"city": "Oslo"}, AuthHeader: "Bearer t"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"temp": float64(21)}, out.Result)
	assert.Equal(t, http.MethodPost, last.method)
	assert.Equal(t, "Bearer t", last.auth)
	assert.JSONEq(t, `{"city":"Oslo"}`, last.body)

	_, err = h.CallTool(ctx, orchestrator.ToolCallIn{Name: "weather", Endpoint: srv.URL + "/w", Method: "get", Args: map[string]any{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, last.method)
	assert.Empty(t, last.body)
	assert.Empty(t, last.auth)

	_, err = h.CallTool(ctx, orchestrator.ToolCallIn{Name: "weather"})
	assert.ErrorContains(t, err, "endpoint is required")
}

func TestZapierNLA(t *testing.T) {
	srv, last := echoServer(t, `{"status":"success"}`)
	z := NewZapierNLA(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "zk"})
	out, err := z.CallTool(context.Background(), orchestrator.ToolCallIn{Name: "01ABC"})
	require.NoError(t, err)
	assert.Equal(t, "success", out.Result.(map[string]any)["status"])
	assert.Equal(t, "/api/v1/exposed/01ABC/execute/", last.path)
	assert.Equal(t, "zk", last.apiKey)
	assert.JSONEq(t, `{}`, last.body)

	_, err = z.CallTool(context.Background(), orchestrator.ToolCallIn{Name: "../admin x"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/exposed/..%2Fadmin%20x/execute/", last.rawPath)
}

func TestLocalFunctions(t *testing.T) {
	l := NewLocalFunctions(orchestrator.ProviderConfig{Extra: map[string]any{
		"functions": map[string]Func{
			"add": func(_ context.Context, args map[string]any) (any, error) {
				return args["a"].(float64) + args["b"].(float64), nil
			},
			"fail": func(context.Context, map[string]any) (any, error) { return nil, errors.New("boom") },
		},
	}})
	ctx := context.Background()

	out, err := l.CallTool(ctx, orchestrator.ToolCallIn{Name: "ping", Args: map[string]any{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true, "echo": map[string]any{"x": 1}}, out.Result)

	out, err = l.CallTool(ctx, orchestrator.ToolCallIn{Name: "add", Args: map[string]any{"a": 2.0, "b": 3.0}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, out.Result)

	out, err = l.CallTool(ctx, orchestrator.ToolCallIn{Name: "get_current_time", Args: map[string]any{"timezone": "UTC"}})
	require.NoError(t, err)
	assert.Equal(t, "UTC", out.Result.(map[string]any)["timezone"])

	_, err = l.CallTool(ctx, orchestrator.ToolCallIn{Name: "nope"})
	assert.EqualError(t, err, "No local function: nope")

	_, err = l.CallTool(ctx, orchestrator.ToolCallIn{Name: "fail"})
	assert.EqualError(t, err, "boom")
}

func TestOpenAIFunctions(t *testing.T) {
	srv, last := echoServer(t, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"save_memory","arguments":"{\"key\":\"fav_drink\"}"}}]}}]}`)
	declared := []openai.Tool{{
		Type:     openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{Name: "save_memory", Parameters: map[string]any{"type": "object"}},
	}}
	o := NewOpenAIFunctions(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "sk", Extra: map[string]any{"tools": declared}})

	out, err := o.CallTool(context.Background(), orchestrator.ToolCallIn{Name: "save_memory", Args: map[string]any{"value": "oat latte"}})
	require.NoError(t, err)
	assert.Equal(t, "/chat/completions", last.path)
	assert.Equal(t, "Bearer sk", last.auth)

	body := map[string]any{}
	require.NoError(t, sonic.UnmarshalString(last.body, &body))
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, "auto", body["tool_choice"])
	assert.Len(t, body["tools"], 1)

	calls := out.Result.(map[string]any)["toolCalls"].([]map[string]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "save_memory", calls[0]["name"])
	assert.Equal(t, map[string]any{"key": "fav_drink"}, calls[0]["arguments"])
	assert.Equal(t, "tool_calls", out.Meta["finishReason"])
}

func TestOpenAIFunctionsWithoutToolsOmitsChoice(t *testing.T) {
	srv, last := echoServer(t, `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`)
	o := NewOpenAIFunctions(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "sk"})
	out, err := o.CallTool(context.Background(), orchestrator.ToolCallIn{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Result.(map[string]any)["content"])
	assert.NotContains(t, last.body, "tool_choice")
}

type fakeSession struct {
	tools   []mcp.Tool
	result  *mcp.CallToolResult
	err     error
	called  mcp.CallToolRequest
	initErr error
	closed  bool
}

func (f *fakeSession) Initialize(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	res := &mcp.InitializeResult{}
	res.ServerInfo = mcp.Implementation{Name: "rag-server", Version: "0.1"}
	return res, nil
}

func (f *fakeSession) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeSession) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.called = req
	return f.result, f.err
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type nopLogger struct{}

func (nopLogger) InfoTag(string, string, ...any)  {}
func (nopLogger) ErrorTag(string, string, ...any) {}

func startedSession(t *testing.T, fake *fakeSession) *MCPSession {
	t.Helper()
	s := newSession(fake, nopLogger{})
	require.NoError(t, s.start(context.Background()))
	return s
}

func TestMCPClientCall(t *testing.T) {
	fake := &fakeSession{
		tools:  []mcp.Tool{{Name: "search", Description: "search docs", InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{"q": map[string]any{"type": "string"}}}}},
		result: &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "found 2 docs"}}},
	}
	session := startedSession(t, fake)
	assert.Equal(t, "rag-server", session.Name())
	assert.True(t, session.HasTool("mcp_search"))

	decls := session.Declarations()
	require.Len(t, decls, 1)
	assert.Equal(t, "mcp_search", decls[0].Function.Name)
	assert.Equal(t, []string{}, decls[0].Function.Parameters.(map[string]any)["required"])

	c := NewMCPClient(orchestrator.ProviderConfig{Client: session})
	out, err := c.CallTool(context.Background(), orchestrator.ToolCallIn{Name: "mcp_search", Args: map[string]any{"q": "oat"}})
	require.NoError(t, err)
	assert.Equal(t, "found 2 docs", out.Result)
	assert.Equal(t, "search", fake.called.Params.Name)
	assert.Equal(t, "rag-server", out.Meta["server"])

	_, err = c.CallTool(context.Background(), orchestrator.ToolCallIn{Name: "delete_all"})
	assert.ErrorContains(t, err, "tool delete_all not found")

	require.NoError(t, session.Close())
	assert.True(t, fake.closed)
}

func TestMCPClientErrors(t *testing.T) {
	fake := &fakeSession{
		tools:  []mcp.Tool{{Name: "search"}},
		result: &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "bad query"}}},
	}
	c := NewMCPClient(orchestrator.ProviderConfig{Client: startedSession(t, fake), Extra: map[string]any{"timeout": "1s"}})
	assert.Equal(t, time.Second, c.timeout)
	_, err := c.CallTool(context.Background(), orchestrator.ToolCallIn{Name: "search"})
	assert.ErrorContains(t, err, "bad query")

	fake.result, fake.err = nil, fmt.Errorf("pipe closed")
	_, err = c.CallTool(context.Background(), orchestrator.ToolCallIn{Name: "search"})
	assert.ErrorContains(t, err, "failed to call tool search")

	_, err = NewMCPClient(orchestrator.ProviderConfig{}).CallTool(context.Background(), orchestrator.ToolCallIn{Name: "search"})
	assert.ErrorContains(t, err, "no MCP session")

	broken := newSession(&fakeSession{initErr: errors.New("exit 1")}, nopLogger{})
	assert.ErrorContains(t, broken.start(context.Background()), "failed to initialize")
}
