package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/wav"
	"github.com/shshalom/voicesmith-mcp/pkg/voice"
)

const (
	kokoroDefaultModel = "kokoro"
	// DefaultSpeed is the synthesis speed multiplier when none is given.
	DefaultSpeed = 1.0
)

// KokoroClient synthesizes speech through an OpenAI-compatible speech
// endpoint (a local Kokoro-FastAPI server, or the real OpenAI API). Audio
// is requested as WAV so the server's sample rate travels with the data.
type KokoroClient struct {
	client *openai.Client
	model  string
}

// NewKokoro creates a TTS client for the given base URL
// (e.g. "http://127.0.0.1:8880/v1").
func NewKokoro(baseURL string, opts ...EngineOption) *KokoroClient {
	cfg := engineConfig{
		model:      kokoroDefaultModel,
		apiKey:     "not-needed", // local servers ignore it
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	client := openai.NewClient(cfg.clientOptions(baseURL)...)
	return &KokoroClient{client: &client, model: cfg.model}
}

// Synthesize implements [Synthesizer].
func (c *KokoroClient) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*Synthesis, error) {
	if !voice.ValidID(voiceID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVoice, voiceID)
	}
	if speed <= 0 {
		speed = DefaultSpeed
	}

	start := time.Now()
	res, err := c.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voiceID),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
		Speed:          openai.Float(speed),
	})
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	defer res.Body.Close()

	samples, rate, err := wav.Decode(res.Body)
	if err != nil {
		io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("speech: decode synthesis: %w", err)
	}
	return &Synthesis{
		Samples:     samples,
		SampleRate:  rate,
		SynthesisMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

// EngineOption configures the TTS and STT clients.
type EngineOption func(*engineConfig)

// engineConfig is shared by the TTS and STT client constructors.
type engineConfig struct {
	model      string
	apiKey     string
	language   string
	httpClient *http.Client
}

func (c engineConfig) clientOptions(baseURL string) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithHTTPClient(c.httpClient),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return opts
}

// WithModel overrides the model name sent to the endpoint.
func WithModel(model string) EngineOption {
	return func(c *engineConfig) { c.model = model }
}

// WithAPIKey sets the bearer token for hosted endpoints.
func WithAPIKey(key string) EngineOption {
	return func(c *engineConfig) { c.apiKey = key }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) EngineOption {
	return func(c *engineConfig) { c.httpClient = hc }
}

// WithLanguage pins the transcription language (STT only).
func WithLanguage(lang string) EngineOption {
	return func(c *engineConfig) { c.language = lang }
}

var _ Synthesizer = (*KokoroClient)(nil)
