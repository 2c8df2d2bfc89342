package voice

import (
	"context"
	"net/http"
	"strings"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

const referencePrefix = "ref:"

// CoquiXTTS clones by reference: the "voice id" is the sample list itself and
// each Speak call passes it back to the server.
type CoquiXTTS struct {
	orchestrator.Descriptor
	client *httpc.Client
	base   string
}

func NewCoquiXTTS(cfg orchestrator.ProviderConfig) *CoquiXTTS {
	return &CoquiXTTS{
		Descriptor: orchestrator.NewDescriptor("coqui-xtts", true, orchestrator.Ops(orchestrator.OpSpeak, orchestrator.OpVoiceClone)),
		client:     kit.HTTP(cfg),
		base:       cfg.Base("http://localhost:8020"),
	}
}

func (c *CoquiXTTS) CloneVoice(_ context.Context, in orchestrator.VoiceCloneIn) (*orchestrator.VoiceCloneOut, error) {
	samples := in.AudioURLs
	if len(samples) == 0 {
		samples = in.AudioBase64s
	}
	if len(samples) == 0 {
		samples = []string{"sample"}
	}
	return &orchestrator.VoiceCloneOut{VoiceID: referencePrefix + strings.Join(samples, ",")}, nil
}

func (c *CoquiXTTS) Speak(ctx context.Context, in orchestrator.SpeakIn) (*orchestrator.SpeakOut, error) {
	lang := in.Lang
	if lang == "" {
		lang = "auto"
	}
	body := map[string]any{"text": in.Text, "lang": lang}
	if ref, ok := strings.CutPrefix(in.VoiceID, referencePrefix); ok {
		body["reference"] = ref
	}
	resp, err := c.client.Do(ctx, httpc.Request{Method: http.MethodPost, URL: c.base + "/tts", JSON: body})
	if err != nil {
		return nil, err
	}
	return audioOut(resp.Body, orchestrator.Meta{"provider": "coqui-xtts"}), nil
}

// Piper 离线 TTS 服务
type Piper struct {
	orchestrator.Descriptor
	client *httpc.Client
	base   string
	voice  string
}

func NewPiper(cfg orchestrator.ProviderConfig) *Piper {
	return &Piper{
		Descriptor: orchestrator.NewDescriptor("piper", true, orchestrator.Ops(orchestrator.OpSpeak)),
		client:     kit.HTTP(cfg),
		base:       cfg.Base("http://localhost:5002"),
		voice:      cfg.String("voice", "en_US-amy-low"),
	}
}

func (p *Piper) Speak(ctx context.Context, in orchestrator.SpeakIn) (*orchestrator.SpeakOut, error) {
	voice := in.VoiceName
	if voice == "" {
		voice = p.voice
	}
	scale := in.Speed
	if scale == 0 {
		scale = 1.0
	}
	resp, err := p.client.Do(ctx, httpc.Request{
		Method: http.MethodPost,
		URL:    p.base + "/api/tts",
		JSON:   map[string]any{"text": in.Text, "voice": voice, "length_scale": scale},
	})
	if err != nil {
		return nil, err
	}
	return audioOut(resp.Body, orchestrator.Meta{"provider": "piper"}), nil
}
