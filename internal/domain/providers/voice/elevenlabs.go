package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

// ElevenLabs 付费语音克隆与合成
type ElevenLabs struct {
	orchestrator.Descriptor
	cfg     orchestrator.ProviderConfig
	client  *httpc.Client
	base    string
	modelID string
}

func NewElevenLabs(cfg orchestrator.ProviderConfig) *ElevenLabs {
	return &ElevenLabs{
		Descriptor: orchestrator.NewDescriptor("elevenlabs", false, orchestrator.Ops(orchestrator.OpVoiceClone, orchestrator.OpSpeak)),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://api.elevenlabs.io"),
		modelID:    cfg.String("model_id", cfg.String("model", "eleven_multilingual_v2")),
	}
}

func (e *ElevenLabs) headers() map[string]string {
	return map[string]string{"xi-api-key": e.cfg.APIKey}
}

// CloneVoice uploads the samples as multipart files. URL samples are sent as
// their reference string, base64 samples as decoded audio.
func (e *ElevenLabs) CloneVoice(ctx context.Context, in orchestrator.VoiceCloneIn) (*orchestrator.VoiceCloneOut, error) {
	name := in.VoiceName
	if name == "" {
		name = fmt.Sprintf("beatrice-%d", time.Now().UnixMilli())
	}
	files := make([]httpc.File, 0, len(in.AudioURLs)+len(in.AudioBase64s))
	for i, u := range in.AudioURLs {
		files = append(files, httpc.File{Param: "files", FileName: fmt.Sprintf("sample-%d.txt", i), Data: []byte(u)})
	}
	for i, b := range in.AudioBase64s {
		data, err := kit.DecodeBase64(b)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		files = append(files, httpc.File{Param: "files", FileName: fmt.Sprintf("sample-%d.mp3", i), Data: data})
	}

	j, err := e.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     e.base + "/v1/voices/add",
		Headers: e.headers(),
		Form:    map[string]string{"name": name},
		Files:   files,
	})
	if err != nil {
		return nil, err
	}
	return &orchestrator.VoiceCloneOut{VoiceID: httpc.FirstString(j["voice_id"], j["id"]), Meta: j}, nil
}

func (e *ElevenLabs) Speak(ctx context.Context, in orchestrator.SpeakIn) (*orchestrator.SpeakOut, error) {
	voice := strings.TrimSpace(in.VoiceID)
	if voice == "" {
		return nil, errors.New("elevenlabs: voice_id is required")
	}
	resp, err := e.client.Do(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     e.base + "/v1/text-to-speech/" + url.PathEscape(voice),
		Headers: e.headers(),
		JSON:    map[string]any{"text": in.Text, "model_id": e.modelID},
	})
	if err != nil {
		return nil, err
	}
	return audioOut(resp.Body, orchestrator.Meta{"provider": "elevenlabs", "model_id": e.modelID}), nil
}
