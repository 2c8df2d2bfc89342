// Package voice contains the voice-clone, TTS and STT adapters.
package voice

import (
	"context"
	"net/http"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

// Cartesia 付费语音克隆与合成
type Cartesia struct {
	orchestrator.Descriptor
	cfg    orchestrator.ProviderConfig
	client *httpc.Client
	base   string
}

func NewCartesia(cfg orchestrator.ProviderConfig) *Cartesia {
	return &Cartesia{
		Descriptor: orchestrator.NewDescriptor("cartesia", false, orchestrator.Ops(orchestrator.OpVoiceClone, orchestrator.OpSpeak)),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://api.cartesia.ai"),
	}
}

func (c *Cartesia) CloneVoice(ctx context.Context, in orchestrator.VoiceCloneIn) (*orchestrator.VoiceCloneOut, error) {
	samples := append(append([]string{}, in.AudioURLs...), in.AudioBase64s...)
	j, err := c.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     c.base + "/v1/voices",
		Headers: kit.Bearer(c.cfg.APIKey),
		JSON:    map[string]any{"samples": samples, "name": in.VoiceName},
	})
	if err != nil {
		return nil, err
	}
	return &orchestrator.VoiceCloneOut{VoiceID: httpc.FirstString(j["id"], j["voice_id"]), Meta: j}, nil
}

func (c *Cartesia) Speak(ctx context.Context, in orchestrator.SpeakIn) (*orchestrator.SpeakOut, error) {
	format := in.Format
	if format == "" {
		format = "audio/mpeg"
	}
	body := map[string]any{
		"text":     in.Text,
		"voice_id": in.VoiceID,
		"lang":     in.Lang,
		"format":   format,
	}
	if in.Speed != 0 {
		body["speed"] = in.Speed
	}
	resp, err := c.client.Do(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     c.base + "/v1/tts",
		Headers: kit.Bearer(c.cfg.APIKey),
		JSON:    body,
	})
	if err != nil {
		return nil, err
	}
	return audioOut(resp.Body, orchestrator.Meta{"provider": "cartesia"}), nil
}
