package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/sashabaranov/go-openai"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

// OpenAITTS 通过 OpenAI 语音接口合成
type OpenAITTS struct {
	orchestrator.Descriptor
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAITTS(cfg orchestrator.ProviderConfig) *OpenAITTS {
	return &OpenAITTS{
		Descriptor: orchestrator.NewDescriptor("openai-tts", false, orchestrator.Ops(orchestrator.OpSpeak)),
		client:     kit.OpenAI(cfg),
		model:      cfg.String("model", "tts-1"),
		voice:      cfg.String("voice", "alloy"),
	}
}

func (o *OpenAITTS) Speak(ctx context.Context, in orchestrator.SpeakIn) (*orchestrator.SpeakOut, error) {
	voice := in.VoiceName
	if voice == "" {
		voice = o.voice
	}
	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          in.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: speechFormat(in.Format),
	}
	if in.Speed != 0 {
		req.Speed = in.Speed
	}

	resp, err := o.client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai-tts: read audio: %w", err)
	}
	return audioOut(data, orchestrator.Meta{"provider": "openai-tts", "model": o.model, "voice": voice}), nil
}

func speechFormat(format string) openai.SpeechResponseFormat {
	switch format {
	case "wav", "audio/wav":
		return openai.SpeechResponseFormatWav
	case "ogg", "opus", "audio/ogg":
		return openai.SpeechResponseFormatOpus
	default:
		return openai.SpeechResponseFormatMp3
	}
}

// OpenAIWhisper 通过 OpenAI 转写接口识别语音
type OpenAIWhisper struct {
	orchestrator.Descriptor
	client *openai.Client
	http   *httpc.Client
	model  string
}

func NewOpenAIWhisper(cfg orchestrator.ProviderConfig) *OpenAIWhisper {
	return &OpenAIWhisper{
		Descriptor: orchestrator.NewDescriptor("openai-whisper", false, orchestrator.Ops(orchestrator.OpTranscribe)),
		client:     kit.OpenAI(cfg),
		http:       kit.HTTP(cfg),
		model:      cfg.String("model", openai.Whisper1),
	}
}

func (o *OpenAIWhisper) Transcribe(ctx context.Context, in orchestrator.TranscribeIn) (*orchestrator.TranscribeOut, error) {
	audio, name, err := loadAudio(ctx, o.http, in)
	if err != nil {
		return nil, err
	}

	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: name,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if in.Lang != "" && in.Lang != "auto" {
		req.Language = in.Lang
	}
	if in.Timestamps {
		req.TimestampGranularities = []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		}
	}

	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &orchestrator.TranscribeOut{
		Text: resp.Text,
		Meta: orchestrator.Meta{"provider": "openai-whisper", "language": resp.Language, "duration": resp.Duration},
	}
	for _, w := range resp.Words {
		out.Words = append(out.Words, orchestrator.WordTiming{Start: w.Start, End: w.End, Word: w.Word})
	}
	return out, nil
}

// loadAudio returns inline bytes, or fetches AudioURL.
func loadAudio(ctx context.Context, client *httpc.Client, in orchestrator.TranscribeIn) ([]byte, string, error) {
	if in.AudioBytesBase64 != "" {
		data, err := kit.DecodeBase64(in.AudioBytesBase64)
		if err != nil {
			return nil, "", fmt.Errorf("decode audio: %w", err)
		}
		return data, "audio.mp3", nil
	}
	if in.AudioURL == "" {
		return nil, "", errors.New("audioUrl or audioBytesBase64 is required")
	}
	resp, err := client.Do(ctx, httpc.Request{Method: http.MethodGet, URL: in.AudioURL})
	if err != nil {
		return nil, "", err
	}
	name := path.Base(in.AudioURL)
	if name == "" || name == "/" || name == "." {
		name = "audio.mp3"
	}
	return resp.Body, name, nil
}
