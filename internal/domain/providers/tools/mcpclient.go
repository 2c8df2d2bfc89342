package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/config"
)

// toolPrefix marks MCP tools in model-facing declarations.
const toolPrefix = "mcp_"

// toolSession is the subset of the mcp-go client used here.
type toolSession interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Logger 外部 MCP 会话使用的日志接口
type Logger interface {
	InfoTag(tag string, format string, args ...any)
	ErrorTag(tag string, format string, args ...any)
}

// MCPSession 一个已初始化的外部 MCP 服务器连接
type MCPSession struct {
	session toolSession
	logger  Logger
	name    string
	mu      sync.RWMutex
	tools   []mcp.Tool
}

// DialMCP starts the configured stdio server, initializes it and fetches its tools.
func DialMCP(ctx context.Context, cfg config.MCPConfig, logger Logger) (*MCPSession, error) {
	if cfg.Command == "" {
		return nil, errors.New("mcp: command not configured")
	}
	client, err := mcpclient.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}
	s := newSession(client, logger)
	if err := s.start(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func newSession(session toolSession, logger Logger) *MCPSession {
	return &MCPSession{session: session, logger: logger}
}

func (s *MCPSession) start(ctx context.Context) error {
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{Name: "beatrice-server", Version: "1.0.0"}

	initCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	initResult, err := s.session.Initialize(initCtx, initRequest)
	if err != nil {
		return fmt.Errorf("failed to initialize stdio MCP client: %w", err)
	}
	s.name = initResult.ServerInfo.Name

	listed, err := s.session.ListTools(initCtx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	s.mu.Lock()
	s.tools = listed.Tools
	s.mu.Unlock()

	names := make([]string, len(listed.Tools))
	for i, t := range listed.Tools {
		names[i] = t.Name
	}
	s.logger.InfoTag("MCP", "已初始化服务器: %s %s, 可用工具: %s",
		initResult.ServerInfo.Name, initResult.ServerInfo.Version, strings.Join(names, ", "))
	return nil
}

// Name is the server name reported at initialization.
func (s *MCPSession) Name() string { return s.name }

// HasTool accepts names with or without the mcp_ prefix.
func (s *MCPSession) HasTool(name string) bool {
	name = strings.TrimPrefix(name, toolPrefix)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Declarations exposes the server's tools as function declarations.
func (s *MCPSession) Declarations() []openai.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]openai.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		required := t.InputSchema.Required
		if required == nil {
			required = []string{}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolPrefix + t.Name,
				Description: t.Description,
				Parameters: map[string]any{
					"type":       t.InputSchema.Type,
					"properties": t.InputSchema.Properties,
					"required":   required,
				},
			},
		})
	}
	return out
}

// Call invokes a tool and flattens text content.
func (s *MCPSession) Call(ctx context.Context, name string, args map[string]any, timeout time.Duration) (any, error) {
	name = strings.TrimPrefix(name, toolPrefix)
	if !s.HasTool(name) {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result, err := s.session.CallTool(callCtx, req)
	if err != nil {
		s.logger.ErrorTag("MCP", "调用外部工具失败: %s, 错误: %v", name, err)
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("tool %s returned an error: %v", name, flatten(result))
	}
	return flatten(result), nil
}

func flatten(result *mcp.CallToolResult) any {
	if result == nil || len(result.Content) == 0 {
		return nil
	}
	items := make([]any, 0, len(result.Content))
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			items = append(items, text.Text)
		} else {
			items = append(items, c)
		}
	}
	if len(items) == 1 {
		return items[0]
	}
	return items
}

// Close shuts the server process down.
func (s *MCPSession) Close() error {
	return s.session.Close()
}

// MCPClient 把 tools.call 转发给外部 MCP 服务器
type MCPClient struct {
	orchestrator.Descriptor
	session *MCPSession
	timeout time.Duration
}

// NewMCPClient takes the *MCPSession from cfg.Client; extra "timeout" bounds each call (default 30s).
func NewMCPClient(cfg orchestrator.ProviderConfig) *MCPClient {
	session, _ := cfg.Client.(*MCPSession)
	timeout, err := time.ParseDuration(cfg.String("timeout", "30s"))
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MCPClient{
		Descriptor: orchestrator.NewDescriptor("mcp-client", true, callOps),
		session:    session,
		timeout:    timeout,
	}
}

func (m *MCPClient) CallTool(ctx context.Context, in orchestrator.ToolCallIn) (*orchestrator.ToolCallOut, error) {
	if m.session == nil {
		return nil, errors.New("mcp-client: no MCP session")
	}
	result, err := m.session.Call(ctx, in.Name, argsOrEmpty(in.Args), m.timeout)
	if err != nil {
		return nil, err
	}
	return &orchestrator.ToolCallOut{Result: result, Meta: orchestrator.Meta{"server": m.session.Name()}}, nil
}
