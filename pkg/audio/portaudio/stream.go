package portaudio

import (
	"io"
	"sync"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/pcm"
)

// InputStream captures mono PCM from a capture device in fixed-size
// frames. Read blocks for one frame duration, which makes it a natural
// pacing source for detection loops.
type InputStream struct {
	s      *stream
	format pcm.Format
	frames int
	mu     sync.Mutex
	closed bool
}

// InputOption configures an input stream.
type InputOption func(*streamParams)

// WithDevice captures from an explicit device index instead of the system
// default.
func WithDevice(index int) InputOption {
	return func(p *streamParams) { p.device = index }
}

// NewInputStream opens and starts a capture stream. frame is the duration
// delivered by each Read (e.g. 80ms for wake scoring, 32ms for VAD).
func NewInputStream(format pcm.Format, frame time.Duration, opts ...InputOption) (*InputStream, error) {
	p := streamParams{
		inputChannels: format.Channels(),
		device:        DefaultDevice,
		sampleRate:    float64(format.SampleRate()),
		frames:        format.SamplesIn(frame),
	}
	for _, opt := range opts {
		opt(&p)
	}

	s, err := openStream(p)
	if err != nil {
		return nil, err
	}
	if err := s.start(); err != nil {
		s.close()
		return nil, err
	}
	return &InputStream{s: s, format: format, frames: p.frames}, nil
}

// FrameSamples returns the number of samples delivered per Read.
func (is *InputStream) FrameSamples() int { return is.frames }

// Format returns the stream's PCM format.
func (is *InputStream) Format() pcm.Format { return is.format }

// Read blocks until one frame has been captured and returns it as a fresh
// slice. Returns io.EOF after Close.
func (is *InputStream) Read() ([]int16, error) {
	buf := make([]int16, is.frames)
	if err := is.ReadInto(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto captures one frame into buf, which must hold FrameSamples
// samples.
func (is *InputStream) ReadInto(buf []int16) error {
	is.mu.Lock()
	defer is.mu.Unlock()
	if is.closed {
		return io.EOF
	}
	return is.s.read(buf, is.frames)
}

// Close stops the stream. A Read blocked in PortAudio returns with an
// error once the underlying stream is torn down.
func (is *InputStream) Close() error {
	is.mu.Lock()
	if is.closed {
		is.mu.Unlock()
		return nil
	}
	is.closed = true
	is.mu.Unlock()
	return is.s.close()
}

// OutputStream plays mono PCM on the default playback device. It is the
// fallback used when no external player binary is installed.
type OutputStream struct {
	s      *stream
	format pcm.Format
	frames int
	buf    []int16
	mu     sync.Mutex
	closed bool
}

// NewOutputStream opens and starts a playback stream writing in chunks of
// the given frame duration.
func NewOutputStream(format pcm.Format, frame time.Duration) (*OutputStream, error) {
	p := streamParams{
		outputChannels: format.Channels(),
		device:         DefaultDevice,
		sampleRate:     float64(format.SampleRate()),
		frames:         format.SamplesIn(frame),
	}
	s, err := openStream(p)
	if err != nil {
		return nil, err
	}
	if err := s.start(); err != nil {
		s.close()
		return nil, err
	}
	return &OutputStream{
		s:      s,
		format: format,
		frames: p.frames,
		buf:    make([]int16, p.frames*format.Channels()),
	}, nil
}

// FrameSamples returns the chunk size Write consumes per device write.
func (os *OutputStream) FrameSamples() int { return os.frames }

// Format returns the stream's PCM format.
func (os *OutputStream) Format() pcm.Format { return os.format }

// Write plays all samples, blocking until the device has accepted them.
// A short final chunk is zero-padded to a full frame.
func (os *OutputStream) Write(samples []int16) (int, error) {
	os.mu.Lock()
	defer os.mu.Unlock()
	if os.closed {
		return 0, ErrClosed
	}

	written := 0
	for written < len(samples) {
		n := copy(os.buf, samples[written:])
		for i := n; i < len(os.buf); i++ {
			os.buf[i] = 0
		}
		if err := os.s.write(os.buf); err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// Close stops playback.
func (os *OutputStream) Close() error {
	os.mu.Lock()
	if os.closed {
		os.mu.Unlock()
		return nil
	}
	os.closed = true
	os.mu.Unlock()
	return os.s.close()
}
