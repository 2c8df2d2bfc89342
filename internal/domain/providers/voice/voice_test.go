package voice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/httpc"
)

type captured struct {
	mu      sync.Mutex
	method  string
	path    string
	query   string
	headers http.Header
	body    []byte
}

func (c *captured) json(t *testing.T) map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]any{}
	require.NoError(t, sonic.Unmarshal(c.body, &out))
	return out
}

// backend answers every request with status and body and records the last request.
func backend(t *testing.T, status int, contentType, body string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.method, c.path, c.query, c.headers, c.body = r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Clone(), data
		c.mu.Unlock()
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestCartesiaSpeakAndClone(t *testing.T) {
	srv, req := backend(t, http.StatusOK, "audio/mpeg", "ABC")
	p := NewCartesia(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "ck"})

	out, err := p.Speak(context.Background(), orchestrator.SpeakIn{Text: "hello", VoiceID: "v1", Lang: "nl-BE"})
	require.NoError(t, err)
	assert.Equal(t, "QUJD", out.AudioBytesBase64)
	assert.Nil(t, out.DurationSec)
	assert.Equal(t, "/v1/tts", req.path)
	assert.Equal(t, "Bearer ck", req.headers.Get("Authorization"))
	body := req.json(t)
	assert.Equal(t, "audio/mpeg", body["format"])
	assert.Equal(t, "v1", body["voice_id"])

	srv2, req2 := backend(t, http.StatusOK, "application/json", `{"id":"voice-9"}`)
	p2 := NewCartesia(orchestrator.ProviderConfig{BaseURL: srv2.URL, APIKey: "ck"})
	clone, err := p2.CloneVoice(context.Background(), orchestrator.VoiceCloneIn{AudioURLs: []string{"https://x/a.mp3"}, AudioBase64s: []string{"QUJD"}, VoiceName: "BossJo"})
	require.NoError(t, err)
	assert.Equal(t, "voice-9", clone.VoiceID)
	assert.Equal(t, []any{"https://x/a.mp3", "QUJD"}, req2.json(t)["samples"])
}

func TestCartesiaErrorCarriesStatusAndBody(t *testing.T) {
	srv, _ := backend(t, http.StatusUnauthorized, "application/json", `{"error":"bad key"}`)
	p := NewCartesia(orchestrator.ProviderConfig{BaseURL: srv.URL})

	_, err := p.Speak(context.Background(), orchestrator.SpeakIn{Text: "x"})
	var se *httpc.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, err.Error(), "bad key")
}

func TestElevenLabs(t *testing.T) {
	srv, req := backend(t, http.StatusOK, "audio/mpeg", "ABC")
	p := NewElevenLabs(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "xi"})

	out, err := p.Speak(context.Background(), orchestrator.SpeakIn{Text: "hi", VoiceID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "QUJD", out.AudioBytesBase64)
	assert.Equal(t, "/v1/text-to-speech/abc", req.path)
	assert.Equal(t, "xi", req.headers.Get("xi-api-key"))
	assert.Equal(t, "eleven_multilingual_v2", req.json(t)["model_id"])
	assert.Equal(t, "eleven_multilingual_v2", out.Meta["model_id"])

	_, err = p.Speak(context.Background(), orchestrator.SpeakIn{Text: "hi"})
	assert.Error(t, err)

	cloneSrv, cloneReq := backend(t, http.StatusOK, "application/json", `{"voice_id":"el-1"}`)
	p = NewElevenLabs(orchestrator.ProviderConfig{BaseURL: cloneSrv.URL, APIKey: "xi"})
	clone, err := p.CloneVoice(context.Background(), orchestrator.VoiceCloneIn{AudioURLs: []string{"https://x/a.mp3"}})
	require.NoError(t, err)
	assert.Equal(t, "el-1", clone.VoiceID)
	assert.Equal(t, "/v1/voices/add", cloneReq.path)
	assert.True(t, strings.HasPrefix(cloneReq.headers.Get("Content-Type"), "multipart/form-data"))
	assert.Contains(t, string(cloneReq.body), "beatrice-")
}

func TestCoquiCloneIsLocalReference(t *testing.T) {
	srv, req := backend(t, http.StatusOK, "audio/wav", "ABC")
	p := NewCoquiXTTS(orchestrator.ProviderConfig{BaseURL: srv.URL})

	clone, err := p.CloneVoice(context.Background(), orchestrator.VoiceCloneIn{AudioURLs: []string{"a.wav", "b.wav"}})
	require.NoError(t, err)
	assert.Equal(t, "ref:a.wav,b.wav", clone.VoiceID)

	empty, err := p.CloneVoice(context.Background(), orchestrator.VoiceCloneIn{})
	require.NoError(t, err)
	assert.Equal(t, "ref:sample", empty.VoiceID)

	_, err = p.Speak(context.Background(), orchestrator.SpeakIn{Text: "hoi", VoiceID: clone.VoiceID})
	require.NoError(t, err)
	body := req.json(t)
	assert.Equal(t, "a.wav,b.wav", body["reference"])
	assert.Equal(t, "auto", body["lang"])
	assert.Equal(t, "/tts", req.path)
}

func TestPiperDefaults(t *testing.T) {
	srv, req := backend(t, http.StatusOK, "audio/wav", "ABC")
	p := NewPiper(orchestrator.ProviderConfig{BaseURL: srv.URL})

	_, err := p.Speak(context.Background(), orchestrator.SpeakIn{Text: "hi"})
	require.NoError(t, err)
	body := req.json(t)
	assert.Equal(t, "en_US-amy-low", body["voice"])
	assert.Equal(t, 1.0, body["length_scale"])
	assert.Equal(t, "/api/tts", req.path)
	assert.True(t, p.IsOpenSource())
}

func TestEdgeTTSUsesDialledVoice(t *testing.T) {
	p := NewEdgeTTS(orchestrator.ProviderConfig{})
	var dialled string
	p.dial = func(voice string) (synthesizeFunc, error) {
		dialled = voice
		return func(text string) ([]byte, error) { return []byte("ABC"), nil }, nil
	}

	out, err := p.Speak(context.Background(), orchestrator.SpeakIn{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "en-US-AriaNeural", dialled)
	assert.Equal(t, "QUJD", out.AudioBytesBase64)

	p.dial = func(string) (synthesizeFunc, error) { return nil, errors.New("offline") }
	_, err = p.Speak(context.Background(), orchestrator.SpeakIn{Text: "hello", VoiceName: "nl-BE-DenaNeural"})
	assert.ErrorContains(t, err, "offline")
}

func TestEdgeTTSDefaultDialer(t *testing.T) {
	p := NewEdgeTTS(orchestrator.ProviderConfig{})
	require.NotNil(t, p.dial)

	synthesize, err := dialEdge("en-US-AriaNeural")
	require.NoError(t, err)
	assert.NotNil(t, synthesize)

	_, err = dialEdge("")
	assert.Error(t, err)
}

func TestEdgeTTSHonoursContext(t *testing.T) {
	p := NewEdgeTTS(orchestrator.ProviderConfig{})
	release := make(chan struct{})
	defer close(release)
	p.dial = func(string) (synthesizeFunc, error) {
		return func(string) ([]byte, error) { <-release; return nil, nil }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Speak(ctx, orchestrator.SpeakIn{Text: "slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeepgram(t *testing.T) {
	srv, req := backend(t, http.StatusOK, "application/json",
		`{"results":{"channels":[{"alternatives":[{"transcript":"hallo daar","words":[{"word":"hallo","start":0.1,"end":0.4}]}]}]}}`)
	p := NewDeepgram(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "dg"})

	out, err := p.Transcribe(context.Background(), orchestrator.TranscribeIn{AudioURL: "https://x/a.wav", Diarize: true, Timestamps: true})
	require.NoError(t, err)
	assert.Equal(t, "hallo daar", out.Text)
	assert.Equal(t, []orchestrator.WordTiming{{Start: 0.1, End: 0.4, Word: "hallo"}}, out.Words)
	assert.Equal(t, "Token dg", req.headers.Get("Authorization"))
	body := req.json(t)
	assert.Equal(t, "nova-2-general", body["model"])
	assert.Equal(t, true, body["diarize"])

	_, err = p.Transcribe(context.Background(), orchestrator.TranscribeIn{AudioBytesBase64: "QUJD"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(req.body))
	assert.Contains(t, req.query, "model=nova-2-general")

	_, err = p.Transcribe(context.Background(), orchestrator.TranscribeIn{})
	assert.ErrorIs(t, err, errAudioURLRequired)
}

func TestAssemblyAIAndGateways(t *testing.T) {
	srv, req := backend(t, http.StatusOK, "application/json", `{"text":"ok"}`)
	ctx := context.Background()

	out, err := NewAssemblyAI(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "aa"}).
		Transcribe(ctx, orchestrator.TranscribeIn{AudioURL: "u", Diarize: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, "aa", req.headers.Get("Authorization"))
	assert.Equal(t, "/v2/transcript", req.path)
	assert.Equal(t, true, req.json(t)["speaker_labels"])

	_, err = NewVosk(orchestrator.ProviderConfig{BaseURL: srv.URL}).Transcribe(ctx, orchestrator.TranscribeIn{AudioURL: "u", Lang: "nl"})
	require.NoError(t, err)
	assert.Equal(t, "/stt", req.path)
	assert.Equal(t, "nl", req.json(t)["lang"])

	_, err = NewFasterWhisper(orchestrator.ProviderConfig{BaseURL: srv.URL}).Transcribe(ctx, orchestrator.TranscribeIn{AudioURL: "u", Lang: "nl"})
	require.NoError(t, err)
	assert.Equal(t, "/transcribe", req.path)
	assert.Equal(t, "nl", req.json(t)["language"])
}

func TestOpenAITTS(t *testing.T) {
	srv, req := backend(t, http.StatusOK, "audio/mpeg", "ABC")
	p := NewOpenAITTS(orchestrator.ProviderConfig{BaseURL: srv.URL + "/v1", APIKey: "sk"})

	out, err := p.Speak(context.Background(), orchestrator.SpeakIn{Text: "hello", Format: "wav"})
	require.NoError(t, err)
	assert.Equal(t, "QUJD", out.AudioBytesBase64)
	assert.Equal(t, "/v1/audio/speech", req.path)
	body := req.json(t)
	assert.Equal(t, "tts-1", body["model"])
	assert.Equal(t, "alloy", body["voice"])
	assert.Equal(t, "wav", body["response_format"])
}

func TestOpenAIWhisper(t *testing.T) {
	srv, req := backend(t, http.StatusOK, "application/json",
		`{"text":"hello world","language":"english","duration":1.5,"words":[{"word":"hello","start":0,"end":0.5}]}`)
	p := NewOpenAIWhisper(orchestrator.ProviderConfig{BaseURL: srv.URL + "/v1", APIKey: "sk"})

	out, err := p.Transcribe(context.Background(), orchestrator.TranscribeIn{AudioBytesBase64: "QUJD", Timestamps: true})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out.Text)
	assert.Equal(t, []orchestrator.WordTiming{{Start: 0, End: 0.5, Word: "hello"}}, out.Words)
	assert.Equal(t, "/v1/audio/transcriptions", req.path)

	_, err = p.Transcribe(context.Background(), orchestrator.TranscribeIn{})
	assert.Error(t, err)
}

func TestMP3DurationRejectsNonMP3(t *testing.T) {
	_, ok := mp3Duration([]byte("not an mp3 stream"))
	assert.False(t, ok)
	_, ok = mp3Duration(nil)
	assert.False(t, ok)
}

func TestDeclaredOperations(t *testing.T) {
	cases := []struct {
		p    orchestrator.Provider
		want []orchestrator.Operation
	}{
		{NewCartesia(orchestrator.ProviderConfig{}), []orchestrator.Operation{orchestrator.OpVoiceClone, orchestrator.OpSpeak}},
		{NewCoquiXTTS(orchestrator.ProviderConfig{}), []orchestrator.Operation{orchestrator.OpVoiceClone, orchestrator.OpSpeak}},
		{NewPiper(orchestrator.ProviderConfig{}), []orchestrator.Operation{orchestrator.OpSpeak}},
		{NewVosk(orchestrator.ProviderConfig{}), []orchestrator.Operation{orchestrator.OpTranscribe}},
		{NewOpenAIWhisper(orchestrator.ProviderConfig{}), []orchestrator.Operation{orchestrator.OpTranscribe}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.p.Operations().List(), tc.p.Name())
	}
	var _ orchestrator.Transcriber = NewVosk(orchestrator.ProviderConfig{})
	var _ orchestrator.VoiceCloner = NewElevenLabs(orchestrator.ProviderConfig{})
	var _ orchestrator.Speaker = NewEdgeTTS(orchestrator.ProviderConfig{})
}
