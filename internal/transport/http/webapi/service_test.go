package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatrice-server-go/internal/app/services"
	"beatrice-server-go/internal/domain/auth"
	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/memory"
	"beatrice-server-go/internal/platform/config"
	platformtesting "beatrice-server-go/internal/platform/testing"
	httptransport "beatrice-server-go/internal/transport/http"
)

type speaker struct {
	orchestrator.Descriptor
	err error
}

func newSpeaker(name string, err error) *speaker {
	return &speaker{Descriptor: orchestrator.NewDescriptor(name, true, orchestrator.Ops(orchestrator.OpSpeak)), err: err}
}

func (s *speaker) Speak(_ context.Context, in orchestrator.SpeakIn) (*orchestrator.SpeakOut, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &orchestrator.SpeakOut{AudioURL: "https://cdn/" + s.Name() + ".mp3"}, nil
}

// staticBuilder repopulates the registry with a fixed provider set.
type staticBuilder struct{ providers []orchestrator.Provider }

func (b staticBuilder) Rebuild(reg *orchestrator.Registry, cfg *config.Config, _ string) []orchestrator.Warning {
	reg.Replace(b.providers...)
	return orchestrator.ValidatePreferences(reg, cfg.Preferences.ByCapability())
}

type harness struct {
	engine   http.Handler
	settings *services.Settings
	issuer   *auth.TokenIssuer
}

func newHarness(t *testing.T, withAuth bool) *harness {
	t.Helper()
	mem := memory.NewInMemory(orchestrator.ProviderConfig{})
	t.Cleanup(func() { _ = mem.Close() })

	cfg := platformtesting.SetupTestConfig(t)
	cfg.Providers = map[string]config.ProviderSettings{"cartesia": {APIKey: "sk-cartesia-1234"}}
	cfg.Preferences = config.PreferencesConfig{
		TTS:    []string{"broken", "good"},
		Memory: []string{"in-memory"},
		RAG:    []string{"ghost"},
	}

	reg := orchestrator.NewRegistry()
	orch := orchestrator.New(reg)
	builder := staticBuilder{providers: []orchestrator.Provider{
		newSpeaker("broken", errors.New("upstream 500")),
		newSpeaker("good", nil),
		mem,
	}}
	logger := platformtesting.SetupTestLogger(t)
	settings := services.NewSettings(cfg, nil, builder, reg, logger)
	_, err := settings.Init(context.Background())
	require.NoError(t, err)
	dispatcher := services.NewDispatcher(orch, settings.Preferences, nil, nil)

	h := &harness{settings: settings, issuer: auth.NewTokenIssuer("s3cret", "beatrice-server")}
	opts := httptransport.Options{Config: cfg}
	if withAuth {
		opts.AuthMiddleware = httptransport.AuthMiddleware(h.issuer)
	}
	router, err := httptransport.Build(opts)
	require.NoError(t, err)

	svc, err := NewService(orch, settings, dispatcher, logger)
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), router))
	h.engine = router.Engine
	return h
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

func (h *harness) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestCapabilityFallsBackInOrder(t *testing.T) {
	h := newHarness(t, false)
	code, env := h.do(t, http.MethodPost, "/api/voice/speak", obj{"providers": []string{"broken", "good"}, "request": obj{"text": "hi"}}, "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var out orchestrator.SpeakOut
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "https://cdn/good.mp3", out.AudioURL)
}

func TestCapabilityUsesConfiguredPreferences(t *testing.T) {
	h := newHarness(t, false)
	code, _ := h.do(t, http.MethodPost, "/api/memory/note", obj{"request": obj{"scope": "user", "key": "city", "value": "Lisbon"}}, "")
	require.Equal(t, http.StatusOK, code)

	code, env := h.do(t, http.MethodPost, "/api/memory/read", obj{"request": obj{"scope": "user", "key": "city"}}, "")
	require.Equal(t, http.StatusOK, code)
	var out orchestrator.MemoryReadOut
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.True(t, out.Found)
	assert.Equal(t, "Lisbon", out.Value)
}

func TestCapabilityExhaustionReturnsAttempts(t *testing.T) {
	h := newHarness(t, false)
	code, env := h.do(t, http.MethodPost, "/api/voice/speak", obj{"providers": []string{"broken", "nobody", "in-memory"}, "request": obj{"text": "hi"}}, "")
	require.Equal(t, http.StatusBadGateway, code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "No TTS provider succeeded.")

	var data struct {
		Operation string `json:"operation"`
		Attempts  []struct {
			Provider string `json:"provider"`
			Outcome  string `json:"outcome"`
		} `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "voice.speak", data.Operation)
	require.Len(t, data.Attempts, 3)
	assert.Equal(t, "failed", data.Attempts[0].Outcome)
	assert.Equal(t, "not_found", data.Attempts[1].Outcome)
	assert.Equal(t, "unsupported", data.Attempts[2].Outcome)
}

func TestCapabilityRejectsMalformedPayload(t *testing.T) {
	h := newHarness(t, false)
	code, env := h.do(t, http.MethodPost, "/api/voice/speak", obj{"request": obj{"text": 42}}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "invalid request")
}

func TestProvidersListing(t *testing.T) {
	h := newHarness(t, false)
	code, env := h.do(t, http.MethodGet, "/api/providers?kind=tts", nil, "")
	require.Equal(t, http.StatusOK, code)
	var infos []struct {
		Name       string   `json:"name"`
		Kinds      []string `json:"kinds"`
		Operations []string `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "broken", infos[0].Name)
	assert.Equal(t, []string{"tts"}, infos[0].Kinds)

	code, _ = h.do(t, http.MethodGet, "/api/providers?kind=video", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSettingsRoundTripKeepsMaskedKeys(t *testing.T) {
	h := newHarness(t, false)
	code, env := h.do(t, http.MethodGet, "/api/config/providers", nil, "")
	require.Equal(t, http.StatusOK, code)
	var doc services.ProviderDocument
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	assert.Equal(t, "***1234", doc.Providers["cartesia"].APIKey)

	doc.Preferences.TTS = []string{"good"}
	code, env = h.do(t, http.MethodPut, "/api/config/providers", doc, "")
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "sk-cartesia-1234", h.settings.Config().Provider("cartesia").APIKey)
	assert.Equal(t, []string{"good"}, h.settings.Preferences().TTS)

	doc.Preferences.TTS = []string{""}
	code, _ = h.do(t, http.MethodPut, "/api/config/providers", doc, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPreferenceWarnings(t *testing.T) {
	h := newHarness(t, false)
	code, env := h.do(t, http.MethodGet, "/api/config/preferences/warnings", nil, "")
	require.Equal(t, http.StatusOK, code)
	var warnings []warningView
	require.NoError(t, json.Unmarshal(env.Data, &warnings))
	require.Len(t, warnings, 1)
	assert.Equal(t, "ghost", warnings[0].Provider)
	assert.Equal(t, `rag: provider "ghost" is not registered`, warnings[0].Message)
}

func TestSessionToolDispatch(t *testing.T) {
	h := newHarness(t, false)
	code, env := h.do(t, http.MethodPost, "/api/session/tool", services.FunctionCall{
		ID:   "call-1",
		Name: services.ToolSaveMemory,
		Args: map[string]any{"key": "color", "value": "green"},
	}, "")
	require.Equal(t, http.StatusOK, code)
	var resp services.FunctionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "call-1", resp.ID)
	assert.Equal(t, true, resp.Response["success"])

	code, env = h.do(t, http.MethodPost, "/api/session/tool", services.FunctionCall{Name: "launch_rocket"}, "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Unknown function call: launch_rocket", resp.Response["error"])
}

func TestAuthGuardsEverythingButHealth(t *testing.T) {
	h := newHarness(t, true)

	code, env := h.do(t, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"providers":3`)

	code, _ = h.do(t, http.MethodGet, "/api/providers", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = h.do(t, http.MethodGet, "/api/providers", nil, "forged")
	assert.Equal(t, http.StatusUnauthorized, code)

	token, err := h.issuer.Issue("admin")
	require.NoError(t, err)
	code, _ = h.do(t, http.MethodGet, "/api/providers", nil, token)
	assert.Equal(t, http.StatusOK, code)
}

type obj = map[string]any

func TestSettingsPutWithoutPreferencesKeepsThem(t *testing.T) {
	h := newHarness(t, false)
	code, env := h.do(t, http.MethodPut, "/api/config/providers", obj{
		"providers": obj{"cartesia": obj{"api_key": "***1234"}, "piper": obj{"base_url": "http://piper:5002"}},
	}, "")
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, []string{"broken", "good"}, h.settings.Preferences().TTS)
	assert.Equal(t, "sk-cartesia-1234", h.settings.Config().Provider("cartesia").APIKey)
}
