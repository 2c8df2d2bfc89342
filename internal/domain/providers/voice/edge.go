package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"beatrice-server-go/internal/domain/orchestrator"
)

// synthesizeFunc renders text with one voice.
type synthesizeFunc func(text string) ([]byte, error)

// dialEdge binds a voice; each call opens its own read-aloud stream.
func dialEdge(voice string) (synthesizeFunc, error) {
	if voice == "" {
		return nil, errors.New("voice is required")
	}
	return func(text string) ([]byte, error) {
		communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(voice))
		if err != nil {
			return nil, err
		}
		return communicate.Stream()
	}, nil
}

// EdgeTTS 使用 Edge 朗读接口合成语音，无需密钥
type EdgeTTS struct {
	orchestrator.Descriptor
	voice string
	dial  func(voice string) (synthesizeFunc, error)
}

func NewEdgeTTS(cfg orchestrator.ProviderConfig) *EdgeTTS {
	return &EdgeTTS{
		Descriptor: orchestrator.NewDescriptor("edge-tts", true, orchestrator.Ops(orchestrator.OpSpeak)),
		voice:      cfg.String("voice", "en-US-AriaNeural"),
		dial:       dialEdge,
	}
}

func (e *EdgeTTS) Speak(ctx context.Context, in orchestrator.SpeakIn) (*orchestrator.SpeakOut, error) {
	voice := in.VoiceName
	if voice == "" {
		voice = e.voice
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	synthesize, err := e.dial(voice)
	if err != nil {
		return nil, fmt.Errorf("edge-tts: connect: %w", err)
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := synthesize(in.Text)
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("edge-tts: synthesis: %w", r.err)
		}
		if len(r.data) == 0 {
			return nil, errors.New("edge-tts: empty audio")
		}
		return audioOut(r.data, orchestrator.Meta{"provider": "edge-tts", "voice": voice}), nil
	}
}
