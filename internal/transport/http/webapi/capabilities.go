package webapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"beatrice-server-go/internal/domain/orchestrator"
	httptransport "beatrice-server-go/internal/transport/http"
)

// capabilityRequest 能力调用请求体；providers 为空时使用配置中的偏好顺序
type capabilityRequest struct {
	Providers []string        `json:"providers"`
	Request   json.RawMessage `json:"request"`
}

type capabilityCall func(ctx context.Context, preferred []string, raw []byte) (any, error)

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return "invalid request: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// bind adapts a facade method to the untyped HTTP payload.
func bind[In, Out any](fn func(context.Context, []string, In) (*Out, error)) capabilityCall {
	return func(ctx context.Context, preferred []string, raw []byte) (any, error) {
		var in In
		if len(raw) > 0 && string(raw) != "null" {
			if err := sonic.Unmarshal(raw, &in); err != nil {
				return nil, &badRequestError{err}
			}
		}
		out, err := fn(ctx, preferred, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func capabilityCalls(o *orchestrator.Orchestrator) map[orchestrator.Operation]capabilityCall {
	return map[orchestrator.Operation]capabilityCall{
		orchestrator.OpVoiceClone: bind(o.Voice.Clone),
		orchestrator.OpSpeak:      bind(o.Voice.Speak),
		orchestrator.OpTranscribe: bind(o.Voice.Transcribe),
		orchestrator.OpSend:       bind(o.Messaging.Send),
		orchestrator.OpDBExec:     bind(o.DB.Exec),
		orchestrator.OpStoragePut: bind(o.Storage.Put),
		orchestrator.OpStorageGet: bind(o.Storage.Get),
		orchestrator.OpEmbed:      bind(o.RAG.Embed),
		orchestrator.OpUpsert:     bind(o.RAG.Upsert),
		orchestrator.OpSearch:     bind(o.RAG.Search),
		orchestrator.OpMemoryNote: bind(o.Memory.Note),
		orchestrator.OpMemoryRead: bind(o.Memory.Read),
		orchestrator.OpToolCall:   bind(o.Tools.Call),
	}
}

// preferenceKey returns the preference list that serves op.
func preferenceKey(op orchestrator.Operation) string {
	for capability, ops := range orchestrator.CapabilityOperations {
		for _, candidate := range ops {
			if candidate == op {
				return capability
			}
		}
	}
	return ""
}

func (s *Service) handleCapability(op orchestrator.Operation) gin.HandlerFunc {
	call := s.calls[op]
	capability := preferenceKey(op)
	return func(c *gin.Context) {
		var req capabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
			return
		}
		preferred := req.Providers
		if len(preferred) == 0 {
			preferred = s.settings.Preferences().ByCapability()[capability]
		}

		out, err := call(c.Request.Context(), preferred, req.Request)
		if err != nil {
			respondFailure(c, err)
			return
		}
		httptransport.RespondSuccess(c, http.StatusOK, out, "")
	}
}

// respondFailure maps exhaustion to 502 with the attempts, bad payloads to 400.
func respondFailure(c *gin.Context, err error) {
	var bad *badRequestError
	if stderrors.As(err, &bad) {
		httptransport.RespondError(c, http.StatusBadRequest, bad.Error(), nil)
		return
	}
	if exhausted, ok := orchestrator.AsExhausted(err); ok {
		httptransport.RespondError(c, http.StatusBadGateway, exhausted.Error(), gin.H{
			"operation": exhausted.Operation,
			"attempts":  exhausted.Attempts,
		})
		return
	}
	httptransport.RespondError(c, http.StatusInternalServerError, err.Error(), nil)
}
