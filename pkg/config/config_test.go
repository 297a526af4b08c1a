package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Name != "Eric" {
		t.Errorf("Name = %q, want Eric", cfg.Name)
	}
	if cfg.HTTPPort != 7865 {
		t.Errorf("HTTPPort = %d, want 7865", cfg.HTTPPort)
	}
	if cfg.TTS.DefaultVoice != "am_eric" || cfg.TTS.DefaultSpeed != 1.0 {
		t.Errorf("TTS defaults = %+v", cfg.TTS)
	}
	if cfg.STT.SilenceThreshold != 1.5 || cfg.STT.ListenTimeout != 15 {
		t.Errorf("STT defaults = %+v", cfg.STT)
	}
	if cfg.Wake.Threshold != 0.5 || cfg.Wake.RecordingTimeout != 10 || cfg.Wake.NoSpeechTimeout != 5 {
		t.Errorf("Wake defaults = %+v", cfg.Wake)
	}
	if cfg.STT.DeviceIndex() != -1 {
		t.Errorf("DeviceIndex = %d, want -1 for unset", cfg.STT.DeviceIndex())
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if cfg.HTTPPort != 7865 {
		t.Errorf("missing file did not fall back to defaults: %+v", cfg)
	}
}

func TestLoadMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http_port: 9000
tts:
  base_url: http://tts.local/v1
stt:
  device: 2
voices:
  Eric: am_eric
  Nova: af_nova
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000", cfg.HTTPPort)
	}
	if cfg.TTS.BaseURL != "http://tts.local/v1" {
		t.Errorf("TTS.BaseURL = %q", cfg.TTS.BaseURL)
	}
	// Unset fields keep their defaults.
	if cfg.TTS.DefaultVoice != "am_eric" {
		t.Errorf("TTS.DefaultVoice = %q, want default", cfg.TTS.DefaultVoice)
	}
	if cfg.STT.SilenceThreshold != 1.5 {
		t.Errorf("STT.SilenceThreshold = %v, want default 1.5", cfg.STT.SilenceThreshold)
	}
	if cfg.STT.DeviceIndex() != 2 {
		t.Errorf("DeviceIndex = %d, want 2", cfg.STT.DeviceIndex())
	}
	if cfg.Voices["Nova"] != "af_nova" {
		t.Errorf("Voices = %v", cfg.Voices)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPath(path); err == nil {
		t.Fatal("LoadPath on corrupt file returned nil error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvTTSURL, "http://override:1234/v1")
	t.Setenv(EnvHTTPPort, "7900")
	t.Setenv(EnvName, "Nova")
	t.Setenv(EnvPlayer, "ffplay")

	cfg, err := LoadPath(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if cfg.TTS.BaseURL != "http://override:1234/v1" {
		t.Errorf("TTS.BaseURL = %q", cfg.TTS.BaseURL)
	}
	if cfg.HTTPPort != 7900 {
		t.Errorf("HTTPPort = %d, want 7900", cfg.HTTPPort)
	}
	if cfg.Name != "Nova" {
		t.Errorf("Name = %q, want Nova", cfg.Name)
	}
	if cfg.TTS.Player != "ffplay" {
		t.Errorf("TTS.Player = %q, want ffplay", cfg.TTS.Player)
	}
}

func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, err := LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	cfg.Voices["Echo"] = "am_echo"
	cfg.Wake.Enabled = true
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadPath(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Voices["Echo"] != "am_echo" {
		t.Errorf("Voices after roundtrip = %v", loaded.Voices)
	}
	if !loaded.Wake.Enabled {
		t.Error("Wake.Enabled lost in roundtrip")
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "stt:\n  vad_param: ~/models/vad.param\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	want := filepath.Join(home, "models", "vad.param")
	if cfg.STT.VADParam != want {
		t.Errorf("VADParam = %q, want %q", cfg.STT.VADParam, want)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	if got := cfg.STT.Silence(); got != 1500*time.Millisecond {
		t.Errorf("Silence() = %v, want 1.5s", got)
	}
	if got := cfg.STT.Timeout(); got != 15*time.Second {
		t.Errorf("Timeout() = %v, want 15s", got)
	}
	if got := cfg.Wake.RecTimeout(); got != 10*time.Second {
		t.Errorf("RecTimeout() = %v, want 10s", got)
	}
	if got := cfg.Wake.NoSpeech(); got != 5*time.Second {
		t.Errorf("NoSpeech() = %v, want 5s", got)
	}
}
