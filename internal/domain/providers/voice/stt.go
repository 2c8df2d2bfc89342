package voice

import (
	"context"
	"errors"
	"net/http"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

var errAudioURLRequired = errors.New("audioUrl is required")

// Deepgram 付费语音识别
type Deepgram struct {
	orchestrator.Descriptor
	cfg    orchestrator.ProviderConfig
	client *httpc.Client
	base   string
	model  string
}

func NewDeepgram(cfg orchestrator.ProviderConfig) *Deepgram {
	return &Deepgram{
		Descriptor: orchestrator.NewDescriptor("deepgram", false, orchestrator.Ops(orchestrator.OpTranscribe)),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://api.deepgram.com"),
		model:      cfg.String("model", "nova-2-general"),
	}
}

// Transcribe sends AudioURL as JSON, or inline audio as the raw request body.
func (d *Deepgram) Transcribe(ctx context.Context, in orchestrator.TranscribeIn) (*orchestrator.TranscribeOut, error) {
	headers := map[string]string{"Authorization": "Token " + d.cfg.APIKey}
	req := httpc.Request{Method: http.MethodPost, URL: d.base + "/v1/listen", Headers: headers}

	switch {
	case in.AudioURL != "":
		req.JSON = map[string]any{
			"url":          in.AudioURL,
			"model":        d.model,
			"smart_format": true,
			"diarize":      in.Diarize,
		}
	case in.AudioBytesBase64 != "":
		data, err := kit.DecodeBase64(in.AudioBytesBase64)
		if err != nil {
			return nil, err
		}
		headers["Content-Type"] = "audio/*"
		req.Query = map[string]string{"model": d.model, "smart_format": "true"}
		if in.Diarize {
			req.Query["diarize"] = "true"
		}
		req.Body = data
	default:
		return nil, errAudioURLRequired
	}

	j, err := d.client.JSON(ctx, req)
	if err != nil {
		return nil, err
	}
	alt := httpc.Dig(j, "results", "channels", 0, "alternatives", 0)
	out := &orchestrator.TranscribeOut{Text: httpc.String(httpc.Dig(alt, "transcript")), Meta: j}
	if in.Timestamps {
		words, _ := httpc.Dig(alt, "words").([]any)
		for _, w := range words {
			start, _ := httpc.Float(httpc.Dig(w, "start"))
			end, _ := httpc.Float(httpc.Dig(w, "end"))
			out.Words = append(out.Words, orchestrator.WordTiming{Start: start, End: end, Word: httpc.String(httpc.Dig(w, "word"))})
		}
	}
	return out, nil
}

// AssemblyAI 付费语音识别（提交转写任务）
type AssemblyAI struct {
	orchestrator.Descriptor
	cfg    orchestrator.ProviderConfig
	client *httpc.Client
	base   string
}

func NewAssemblyAI(cfg orchestrator.ProviderConfig) *AssemblyAI {
	return &AssemblyAI{
		Descriptor: orchestrator.NewDescriptor("assemblyai", false, orchestrator.Ops(orchestrator.OpTranscribe)),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://api.assemblyai.com"),
	}
}

func (a *AssemblyAI) Transcribe(ctx context.Context, in orchestrator.TranscribeIn) (*orchestrator.TranscribeOut, error) {
	if in.AudioURL == "" {
		return nil, errAudioURLRequired
	}
	j, err := a.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     a.base + "/v2/transcript",
		Headers: map[string]string{"Authorization": a.cfg.APIKey},
		JSON:    map[string]any{"audio_url": in.AudioURL, "speaker_labels": in.Diarize},
	})
	if err != nil {
		return nil, err
	}
	return &orchestrator.TranscribeOut{Text: httpc.String(j["text"]), Meta: j}, nil
}

// gatewaySTT covers the self-hosted recognisers that accept {audioUrl, <lang field>}.
type gatewaySTT struct {
	orchestrator.Descriptor
	client    *httpc.Client
	url       string
	langField string
}

func (g *gatewaySTT) Transcribe(ctx context.Context, in orchestrator.TranscribeIn) (*orchestrator.TranscribeOut, error) {
	if in.AudioURL == "" {
		return nil, errAudioURLRequired
	}
	body := map[string]any{"audioUrl": in.AudioURL}
	if in.Lang != "" {
		body[g.langField] = in.Lang
	}
	j, err := g.client.JSON(ctx, httpc.Request{Method: http.MethodPost, URL: g.url, JSON: body})
	if err != nil {
		return nil, err
	}
	return &orchestrator.TranscribeOut{Text: httpc.String(j["text"]), Meta: j}, nil
}

// Vosk 自建语音识别服务
type Vosk struct{ gatewaySTT }

func NewVosk(cfg orchestrator.ProviderConfig) *Vosk {
	return &Vosk{gatewaySTT{
		Descriptor: orchestrator.NewDescriptor("vosk", true, orchestrator.Ops(orchestrator.OpTranscribe)),
		client:     kit.HTTP(cfg),
		url:        cfg.Base("http://localhost:8009") + "/stt",
		langField:  "lang",
	}}
}

// FasterWhisper 自建 Whisper 服务
type FasterWhisper struct{ gatewaySTT }

func NewFasterWhisper(cfg orchestrator.ProviderConfig) *FasterWhisper {
	return &FasterWhisper{gatewaySTT{
		Descriptor: orchestrator.NewDescriptor("faster-whisper", true, orchestrator.Ops(orchestrator.OpTranscribe)),
		client:     kit.HTTP(cfg),
		url:        cfg.Base("http://localhost:8010") + "/transcribe",
		langField:  "language",
	}}
}
