// Package services hosts the session layer that turns model function calls
// into capability facade calls.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"beatrice-server-go/internal/domain/eventbus"
	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/config"
	"beatrice-server-go/internal/platform/logging"
)

const logTag = "会话"

// FunctionCall 模型发起的一次函数调用
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse 回送给模型的函数结果
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Publisher receives dispatch events.
type Publisher interface {
	Publish(topic string, args ...any)
}

// PreferenceSource returns the current preference lists; they change when
// settings are saved.
type PreferenceSource func() config.PreferencesConfig

type handler func(ctx context.Context, prefs config.PreferencesConfig, args map[string]any) (map[string]any, error)

// Dispatcher 会话工具调用分发器
type Dispatcher struct {
	orch     *orchestrator.Orchestrator
	prefs    PreferenceSource
	logger   logging.Interface
	events   Publisher
	now      func() time.Time
	handlers map[string]handler
}

// NewDispatcher wires the built-in session tools; logger and events may be nil.
func NewDispatcher(orch *orchestrator.Orchestrator, prefs PreferenceSource, logger logging.Interface, events Publisher) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	d := &Dispatcher{
		orch:   orch,
		prefs:  prefs,
		logger: logger,
		events: events,
		now:    time.Now,
	}
	d.handlers = map[string]handler{
		ToolCurrentTime:     d.currentTime,
		ToolSendMessage:     d.sendMessage,
		ToolSearchKnowledge: d.searchKnowledge,
		ToolSaveMemory:      d.saveMemory,
		ToolRecallMemory:    d.recallMemory,
	}
	return d
}

// Dispatch runs one function call. Failures are reported in the response,
// never as a Go error, so the model always gets an answer.
func (d *Dispatcher) Dispatch(ctx context.Context, call FunctionCall) FunctionResponse {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	resp := FunctionResponse{ID: call.ID, Name: call.Name}

	h, ok := d.handlers[call.Name]
	if !ok {
		resp.Response = failure(fmt.Sprintf("Unknown function call: %s", call.Name))
		d.finish(call, resp, nil)
		return resp
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	result, err := h(ctx, d.prefs(), args)
	switch {
	case err == nil:
		result["success"] = true
		resp.Response = result
	case errors.Is(err, orchestrator.ErrNoProviderSucceeded):
		resp.Response = failure("could not complete " + call.Name)
	default:
		resp.Response = failure(err.Error())
	}
	d.finish(call, resp, err)
	return resp
}

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func (d *Dispatcher) finish(call FunctionCall, resp FunctionResponse, err error) {
	success, _ := resp.Response["success"].(bool)
	event := eventbus.ToolDispatchedEvent{CallID: call.ID, Name: call.Name, Success: success}
	if success {
		d.logger.InfoTag(logTag, "工具调用完成: %s (%s)", call.Name, call.ID)
	} else {
		event.Error, _ = resp.Response["error"].(string)
		if err != nil {
			d.logger.WarnTag(logTag, "工具调用失败: %s (%s): %v", call.Name, call.ID, err)
		} else {
			d.logger.WarnTag(logTag, "工具调用失败: %s (%s): %s", call.Name, call.ID, event.Error)
		}
	}
	if d.events != nil {
		d.events.Publish(eventbus.TopicToolDispatched, event)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("missing argument %q", key)
	}
	return v, nil
}

func (d *Dispatcher) currentTime(_ context.Context, _ config.PreferencesConfig, args map[string]any) (map[string]any, error) {
	now := d.now()
	if tz, _ := args["timezone"].(string); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", tz)
		}
		now = now.In(loc)
	}
	return map[string]any{"time": now.Format("15:04:05"), "iso": now.Format(time.RFC3339)}, nil
}

func (d *Dispatcher) sendMessage(ctx context.Context, prefs config.PreferencesConfig, args map[string]any) (map[string]any, error) {
	target, err := stringArg(args, "target")
	if err != nil {
		return nil, err
	}
	body, err := stringArg(args, "body")
	if err != nil {
		return nil, err
	}
	out, err := d.orch.Messaging.Send(ctx, prefs.Messaging, orchestrator.MessageIn{Target: target, Body: body})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":      out.ID,
		"status":  string(out.Status),
		"message": fmt.Sprintf("Message to %s has been queued.", target),
	}, nil
}

// searchKnowledge embeds the query when an embed provider is available and
// falls back to a text query otherwise.
func (d *Dispatcher) searchKnowledge(ctx context.Context, prefs config.PreferencesConfig, args map[string]any) (map[string]any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	in := orchestrator.SearchIn{QueryText: query, TopK: 5}
	if ns, _ := args["namespace"].(string); ns != "" {
		in.Namespace = ns
	}
	if len(prefs.Embed) > 0 {
		emb, err := d.orch.RAG.Embed(ctx, prefs.Embed, orchestrator.EmbedIn{Texts: []string{query}})
		if err == nil && len(emb.Vectors) == 1 {
			in.QueryVector = emb.Vectors[0]
		} else if err != nil {
			d.logger.WarnTag(logTag, "查询向量化失败，改用文本检索: %v", err)
		}
	}
	out, err := d.orch.RAG.Search(ctx, prefs.RAG, in)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": out.Matches}, nil
}

func (d *Dispatcher) saveMemory(ctx context.Context, prefs config.PreferencesConfig, args map[string]any) (map[string]any, error) {
	key, err := stringArg(args, "key")
	if err != nil {
		return nil, err
	}
	value, ok := args["value"]
	if !ok {
		return nil, errors.New(`missing argument "value"`)
	}
	_, err = d.orch.Memory.Note(ctx, prefs.Memory, orchestrator.MemoryNoteIn{Scope: orchestrator.ScopeUser, Key: key, Value: value})
	if err != nil {
		return nil, err
	}
	return map[string]any{"message": "Information saved to memory."}, nil
}

func (d *Dispatcher) recallMemory(ctx context.Context, prefs config.PreferencesConfig, args map[string]any) (map[string]any, error) {
	key, err := stringArg(args, "key")
	if err != nil {
		return nil, err
	}
	out, err := d.orch.Memory.Read(ctx, prefs.Memory, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeUser, Key: key})
	if err != nil {
		return nil, err
	}
	return map[string]any{"found": out.Found, "value": out.Value}, nil
}

// Transcribe 转写上传的音频，并尽力把文本归档到对象存储
func (d *Dispatcher) Transcribe(ctx context.Context, sessionID string, in orchestrator.TranscribeIn) (*orchestrator.TranscribeOut, string, error) {
	prefs := d.prefs()
	out, err := d.orch.Voice.Transcribe(ctx, prefs.STT, in)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, "", errors.New("transcription failed: empty result")
	}
	if len(prefs.Storage) == 0 {
		return out, "", nil
	}

	if sessionID == "" {
		sessionID = "anonymous"
	}
	path := fmt.Sprintf("transcripts/%s/%s.txt", sessionID, d.now().UTC().Format("20060102T150405.000"))
	put, err := d.orch.Storage.Put(ctx, prefs.Storage, orchestrator.StoragePutIn{
		Path:        path,
		BytesBase64: encodeText(out.Text),
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		d.logger.WarnTag(logTag, "转写归档失败: %v", err)
		return out, "", nil
	}
	return out, put.Path, nil
}
