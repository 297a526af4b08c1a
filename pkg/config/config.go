// Package config loads and persists the daemon's configuration file.
//
// Lookup order: $VOICESMITH_CONFIG, then
// ~/.config/voicesmith/config.yaml, then built-in defaults. Individual
// environment variables override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Environment variables recognized by Load.
const (
	EnvConfig   = "VOICESMITH_CONFIG"
	EnvTTSURL   = "VOICESMITH_TTS_URL"
	EnvSTTURL   = "VOICESMITH_STT_URL"
	EnvPlayer   = "VOICESMITH_PLAYER"
	EnvVoice    = "VOICESMITH_VOICE"
	EnvHTTPPort = "VOICESMITH_HTTP_PORT"
	EnvName     = "VOICESMITH_NAME"
)

// TTS configures the synthesis engine and playback.
type TTS struct {
	// BaseURL of the Kokoro-compatible speech endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
	// Model name sent with synthesis requests.
	Model string `yaml:"model,omitempty"`
	// APIKey, if the endpoint wants one.
	APIKey string `yaml:"api_key,omitempty"`
	// DefaultVoice for the daemon's own announcements.
	DefaultVoice string `yaml:"default_voice,omitempty"`
	// DefaultSpeed multiplier for synthesis.
	DefaultSpeed float64 `yaml:"default_speed,omitempty"`
	// Player overrides audio player binary autodetection.
	Player string `yaml:"player,omitempty"`
}

// STT configures transcription and the capture loop.
type STT struct {
	// BaseURL of the Whisper-compatible transcription endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
	// Model name sent with transcription requests.
	Model string `yaml:"model,omitempty"`
	// APIKey, if the endpoint wants one.
	APIKey   string `yaml:"api_key,omitempty"`
	Language string `yaml:"language,omitempty"`
	// SilenceThreshold is the post-speech silence, in seconds, that ends
	// a recording.
	SilenceThreshold float64 `yaml:"silence_threshold,omitempty"`
	// ListenTimeout caps a foreground listen, in seconds.
	ListenTimeout float64 `yaml:"max_listen_timeout,omitempty"`
	// Device is the capture device index; unset means system default.
	Device *int `yaml:"device,omitempty"`
	// VADParam/VADBin point at the silero-vad ncnn graph. Empty falls
	// back to the energy gate.
	VADParam string `yaml:"vad_param,omitempty"`
	VADBin   string `yaml:"vad_bin,omitempty"`
}

// Wake configures the wake-word loop.
type Wake struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// ModelParam/ModelBin point at the wake-word ncnn graph.
	ModelParam string  `yaml:"model_param,omitempty"`
	ModelBin   string  `yaml:"model_bin,omitempty"`
	Threshold  float64 `yaml:"threshold,omitempty"`
	// RecordingTimeout caps a post-detection recording, in seconds.
	RecordingTimeout float64 `yaml:"recording_timeout,omitempty"`
	// NoSpeechTimeout gives up on a detection nobody followed, in seconds.
	NoSpeechTimeout float64 `yaml:"no_speech_timeout,omitempty"`
}

// Config is the daemon configuration.
type Config struct {
	// Name is the preferred agent name to register under.
	Name string `yaml:"name,omitempty"`
	// HTTPPort is the base port for the liveness bridge; the registry
	// assigns the lowest free port at or above it.
	HTTPPort int    `yaml:"http_port,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
	// LogFile also writes logs to a file under the state directory.
	LogFile bool `yaml:"log_file,omitempty"`
	TTS     TTS  `yaml:"tts,omitempty"`
	STT     STT  `yaml:"stt,omitempty"`
	Wake    Wake `yaml:"wake,omitempty"`
	// Voices maps agent names to assigned voice IDs. The daemon persists
	// auto-assignments back here so they survive restarts.
	Voices map[string]string `yaml:"voices,omitempty"`

	path string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Name:     "Eric",
		HTTPPort: 7865,
		LogLevel: "info",
		TTS: TTS{
			BaseURL:      "http://127.0.0.1:8880/v1",
			Model:        "kokoro",
			DefaultVoice: "am_eric",
			DefaultSpeed: 1.0,
		},
		STT: STT{
			BaseURL:          "http://127.0.0.1:8870/v1",
			Model:            "whisper-1",
			Language:         "en",
			SilenceThreshold: 1.5,
			ListenTimeout:    15,
		},
		Wake: Wake{
			ModelParam:       filepath.Join(DefaultModelDir(), "wake.param"),
			ModelBin:         filepath.Join(DefaultModelDir(), "wake.bin"),
			Threshold:        0.5,
			RecordingTimeout: 10,
			NoSpeechTimeout:  5,
		},
		Voices: map[string]string{},
		path:   DefaultPath(),
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "voicesmith", "config.yaml")
}

// DefaultModelDir returns where model files are looked up by default.
func DefaultModelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "voicesmith-mcp", "models")
}

// Load reads the config from $VOICESMITH_CONFIG or the default path. A
// missing file is not an error: defaults are returned. Environment
// variable overrides are applied last.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		path = DefaultPath()
	}
	return LoadPath(path)
}

// LoadPath reads the config from an explicit path, merging file values
// over the defaults.
func LoadPath(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: defaults only.
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if cfg.Voices == nil {
		cfg.Voices = map[string]string{}
	}

	cfg.applyEnv()
	cfg.expandPaths()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvTTSURL); v != "" {
		c.TTS.BaseURL = v
	}
	if v := os.Getenv(EnvSTTURL); v != "" {
		c.STT.BaseURL = v
	}
	if v := os.Getenv(EnvPlayer); v != "" {
		c.TTS.Player = v
	}
	if v := os.Getenv(EnvVoice); v != "" {
		c.TTS.DefaultVoice = v
	}
	if v := os.Getenv(EnvName); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvHTTPPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
}

func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Wake.ModelParam, &c.Wake.ModelBin,
		&c.STT.VADParam, &c.STT.VADBin,
	} {
		*p = expandHome(*p)
	}
}

// Save writes the config back to the path it was loaded from, creating
// the directory if needed.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultPath()
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", c.path, err)
	}
	return nil
}

// Path returns the file this config was loaded from.
func (c *Config) Path() string { return c.path }

// DeviceIndex returns the configured capture device, or -1 for the
// system default.
func (s STT) DeviceIndex() int {
	if s.Device == nil {
		return -1
	}
	return *s.Device
}

// Silence returns the post-speech silence cutoff as a duration.
func (s STT) Silence() time.Duration { return secs(s.SilenceThreshold) }

// Timeout returns the foreground listen cap as a duration.
func (s STT) Timeout() time.Duration { return secs(s.ListenTimeout) }

// RecTimeout returns the post-detection recording cap as a duration.
func (w Wake) RecTimeout() time.Duration { return secs(w.RecordingTimeout) }

// NoSpeech returns the abandon-detection window as a duration.
func (w Wake) NoSpeech() time.Duration { return secs(w.NoSpeechTimeout) }

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[1:])
	}
	return p
}
