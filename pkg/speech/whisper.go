package speech

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/wav"
)

const whisperDefaultModel = "whisper-1"

// WhisperClient transcribes speech through an OpenAI-compatible
// transcription endpoint (a local faster-whisper server, or the real
// OpenAI API). PCM is uploaded WAV-wrapped.
//
// The plain JSON transcription format carries no per-segment confidence,
// so Confidence is reported as 1.0; callers that need a calibrated score
// must threshold on text emptiness instead.
type WhisperClient struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisper creates an STT client for the given base URL
// (e.g. "http://127.0.0.1:8000/v1").
func NewWhisper(baseURL string, opts ...EngineOption) *WhisperClient {
	cfg := engineConfig{
		model:      whisperDefaultModel,
		apiKey:     "not-needed",
		language:   "en",
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	client := openai.NewClient(cfg.clientOptions(baseURL)...)
	return &WhisperClient{client: &client, model: cfg.model, language: cfg.language}
}

// Transcribe implements [Transcriber].
func (c *WhisperClient) Transcribe(ctx context.Context, samples []int16, sampleRate int) (*Transcription, error) {
	if len(samples) == 0 {
		return &Transcription{Language: c.language}, nil
	}

	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(c.model),
		File:  openai.File(bytes.NewReader(wav.EncodeBytes(samples, sampleRate)), "audio.wav", "audio/wav"),
	}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}

	start := time.Now()
	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("speech: transcribe: %w", err)
	}

	return &Transcription{
		Text:            strings.TrimSpace(resp.Text),
		Confidence:      1.0,
		TranscriptionMs: float64(time.Since(start).Microseconds()) / 1000,
		Language:        c.language,
	}, nil
}

var _ Transcriber = (*WhisperClient)(nil)
