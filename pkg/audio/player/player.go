// Package player plays synthesized PCM through an external player
// process, falling back to direct PortAudio output when no player binary
// is installed.
//
// Playback is interruptible: Stop kills the running player mid-clip.
// Interruption is reported as [ErrStopped] so callers can tell a stopped
// clip from a failed one.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/pcm"
	"github.com/shshalom/voicesmith-mcp/pkg/audio/portaudio"
	"github.com/shshalom/voicesmith-mcp/pkg/audio/resampler"
	"github.com/shshalom/voicesmith-mcp/pkg/audio/wav"
)

// ErrStopped reports that playback was interrupted by Stop or by context
// cancellation rather than failing.
var ErrStopped = errors.New("player: playback stopped")

// candidates are probed in order when no binary is configured.
var candidates = []string{"mpv", "ffplay", "afplay", "aplay"}

// BackendPortAudio is reported by Backend when no external player binary
// was found and clips play through PortAudio directly.
const BackendPortAudio = "portaudio"

// Player serializes playback of PCM clips. One clip plays at a time;
// concurrent Play calls queue on an internal mutex.
type Player struct {
	playMu sync.Mutex // held for the duration of one clip

	mu      sync.Mutex // guards the fields below
	proc    *exec.Cmd
	out     *portaudio.OutputStream
	stopped bool

	binary string
	log    *slog.Logger
}

// Option configures a Player.
type Option func(*Player)

// WithBinary forces a specific player binary instead of autodetection.
func WithBinary(path string) Option {
	return func(p *Player) { p.binary = path }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(log *slog.Logger) Option {
	return func(p *Player) { p.log = log }
}

// New resolves the playback backend. A missing external player is not an
// error; clips then play through PortAudio.
func New(opts ...Option) *Player {
	p := &Player{log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.binary == "" {
		for _, name := range candidates {
			if path, err := exec.LookPath(name); err == nil {
				p.binary = path
				break
			}
		}
	}
	if p.binary == "" {
		p.log.Warn("no audio player binary found, using portaudio output",
			"tried", candidates)
	}
	return p
}

// Backend returns the resolved player binary path, or [BackendPortAudio].
func (p *Player) Backend() string {
	if p.binary == "" {
		return BackendPortAudio
	}
	return p.binary
}

// Play blocks until the clip finishes, is stopped, or fails. samples are
// mono 16-bit PCM at sampleRate. Returns ErrStopped on interruption.
func (p *Player) Play(ctx context.Context, samples []int16, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.mu.Lock()
	p.stopped = false
	p.mu.Unlock()

	if p.binary == "" {
		return p.playDirect(ctx, samples, sampleRate)
	}
	return p.playExec(ctx, samples, sampleRate)
}

// PlayTone plays a short sine cue, e.g. the ready chime before recording.
func (p *Player) PlayTone(ctx context.Context, freq float64, d time.Duration) error {
	const rate = 24000
	return p.Play(ctx, Tone(rate, freq, d), rate)
}

// Stop interrupts the current clip and reports whether one was playing.
func (p *Player) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	playing := false
	if p.proc != nil && p.proc.Process != nil {
		p.stopped = true
		playing = true
		if err := p.proc.Process.Kill(); err != nil {
			p.log.Debug("kill player process", "err", err)
		}
	}
	if p.out != nil {
		p.stopped = true
		playing = true
		p.out.Close()
	}
	return playing
}

func (p *Player) playExec(ctx context.Context, samples []int16, sampleRate int) error {
	f, err := os.CreateTemp("", "voicesmith-*.wav")
	if err != nil {
		return fmt.Errorf("player: temp wav: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := wav.Encode(f, samples, sampleRate); err != nil {
		f.Close()
		return fmt.Errorf("player: encode wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("player: temp wav: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.binary, playerArgs(p.binary, path)...)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.proc = cmd
	p.mu.Unlock()

	err = cmd.Run()

	p.mu.Lock()
	p.proc = nil
	stopped := p.stopped
	p.mu.Unlock()

	switch {
	case stopped || ctx.Err() != nil:
		return ErrStopped
	case err != nil:
		return fmt.Errorf("player: %s: %w", p.binary, err)
	}
	return nil
}

// playDirect streams the clip to the default output device in ~100ms
// chunks so Stop takes effect between writes.
func (p *Player) playDirect(ctx context.Context, samples []int16, sampleRate int) error {
	var (
		out *portaudio.OutputStream
		err error
	)
	format, ok := pcm.FormatFor(sampleRate)
	if ok {
		out, err = portaudio.NewOutputStream(format, 100*time.Millisecond)
	}
	if !ok || err != nil {
		// Device refused the clip rate; resample to 48 kHz.
		rs, rerr := resampler.New(sampleRate, pcm.L16Mono48K.SampleRate())
		if rerr != nil {
			return fmt.Errorf("player: %w", rerr)
		}
		if samples, rerr = rs.Process(samples); rerr != nil {
			return fmt.Errorf("player: %w", rerr)
		}
		format = pcm.L16Mono48K
		if out, err = portaudio.NewOutputStream(format, 100*time.Millisecond); err != nil {
			return fmt.Errorf("player: open output: %w", err)
		}
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		out.Close()
		return ErrStopped
	}
	p.out = out
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.out = nil
		p.mu.Unlock()
		out.Close()
	}()

	chunk := out.FrameSamples()
	for off := 0; off < len(samples); off += chunk {
		if ctx.Err() != nil {
			return ErrStopped
		}
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			return ErrStopped
		}

		end := off + chunk
		if end > len(samples) {
			end = len(samples)
		}
		if _, err := out.Write(samples[off:end]); err != nil {
			p.mu.Lock()
			stopped = p.stopped
			p.mu.Unlock()
			if stopped {
				return ErrStopped
			}
			return fmt.Errorf("player: write output: %w", err)
		}
	}
	return nil
}

// playerArgs builds the argument list for a known player binary. Unknown
// binaries get just the file path.
func playerArgs(binary, path string) []string {
	switch base(binary) {
	case "mpv":
		return []string{"--no-terminal", "--no-video", path}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", path}
	case "aplay":
		return []string{"-q", path}
	default:
		return []string{path}
	}
}

func base(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// Tone synthesizes a sine cue with a short fade-out to avoid a click.
func Tone(sampleRate int, freq float64, d time.Duration) []int16 {
	n := int(float64(sampleRate) * d.Seconds())
	fade := sampleRate / 100 // 10ms
	out := make([]int16, n)
	for i := range out {
		v := 0.35 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		if left := n - i; left < fade {
			v *= float64(left) / float64(fade)
		}
		out[i] = int16(v * 32767)
	}
	return out
}
