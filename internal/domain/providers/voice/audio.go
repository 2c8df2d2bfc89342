package voice

import (
	"bytes"

	"github.com/hajimehoshi/go-mp3"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
)

// mp3Duration decodes the stream header and frame table. ok is false for
// anything that is not a decodable MP3.
func mp3Duration(data []byte) (seconds float64, ok bool) {
	if len(data) == 0 {
		return 0, false
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	rate := dec.SampleRate()
	length := dec.Length()
	if rate <= 0 || length <= 0 {
		return 0, false
	}
	// 解码输出为 16 位双声道，每个采样帧 4 字节
	return float64(length) / float64(4*rate), true
}

// audioOut wraps synthesized bytes; DurationSec is set when the audio is MP3.
func audioOut(data []byte, meta orchestrator.Meta) *orchestrator.SpeakOut {
	out := &orchestrator.SpeakOut{AudioBytesBase64: kit.Base64(data), Meta: meta}
	if d, ok := mp3Duration(data); ok {
		out.DurationSec = kit.Float64(d)
	}
	return out
}
