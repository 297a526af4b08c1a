// Package pcm defines the linear PCM formats carried through the voicesmith
// audio path and the sample/byte/duration arithmetic on them.
//
// Everything downstream of the microphone and upstream of the player moves
// 16-bit signed little-endian mono samples. Capture and detection run at
// 16 kHz, synthesis output defaults to 24 kHz, and 48 kHz exists for devices
// that refuse to open at the lower rates.
package pcm

import "time"

// Format identifies a linear PCM configuration.
type Format int

const (
	// L16Mono16K is audio/L16; rate=16000; channels=1 — capture, VAD, wake
	// scoring and transcription all run at this rate.
	L16Mono16K Format = iota
	// L16Mono24K is audio/L16; rate=24000; channels=1 — the default
	// synthesis output rate.
	L16Mono24K
	// L16Mono48K is audio/L16; rate=48000; channels=1 — native rate of many
	// input devices; resampled down before detection.
	L16Mono48K
)

// SampleRate returns the sample rate in Hz.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid format")
}

// Channels returns the channel count. All supported formats are mono.
func (f Format) Channels() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 1
	}
	panic("pcm: invalid format")
}

// Depth returns the bit depth.
func (f Format) Depth() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 16
	}
	panic("pcm: invalid format")
}

// BytesPerSample returns the byte width of one sample across all channels.
func (f Format) BytesPerSample() int {
	return f.Channels() * f.Depth() / 8
}

// SamplesIn returns the number of samples in the given duration.
func (f Format) SamplesIn(d time.Duration) int {
	return int(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesIn returns the number of bytes in the given duration.
func (f Format) BytesIn(d time.Duration) int {
	return f.SamplesIn(d) * f.BytesPerSample()
}

// Duration returns the playing time of the given number of samples.
func (f Format) Duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate())
}

func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	panic("pcm: invalid format")
}

// FormatFor returns the Format matching a sample rate reported by an engine
// or device, and whether one exists.
func FormatFor(sampleRate int) (Format, bool) {
	switch sampleRate {
	case 16000:
		return L16Mono16K, true
	case 24000:
		return L16Mono24K, true
	case 48000:
		return L16Mono48K, true
	}
	return 0, false
}

// Bytes encodes samples as little-endian int16 bytes.
func Bytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// Samples decodes little-endian int16 bytes. A trailing odd byte is dropped.
func Samples(b []byte) []int16 {
	s := make([]int16, len(b)/2)
	for i := range s {
		s[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return s
}
