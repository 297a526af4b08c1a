// Package portaudio is a minimal CGO binding to the PortAudio library,
// covering what a voice session needs: enumerate devices, capture 16-bit
// mono audio from a microphone, and play 16-bit audio back.
//
// Building requires the PortAudio headers and library to be discoverable
// via pkg-config (e.g. `brew install portaudio` or `apt install
// portaudio19-dev`).
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

// void* wrappers sidestep CGO's treatment of the opaque PaStream type.
static PaError pa_open_stream(void **stream,
                              const PaStreamParameters *inputParams,
                              const PaStreamParameters *outputParams,
                              double sampleRate,
                              unsigned long framesPerBuffer,
                              PaStreamFlags streamFlags) {
    return Pa_OpenStream((PaStream**)stream, inputParams, outputParams, sampleRate,
                         framesPerBuffer, streamFlags, NULL, NULL);
}

static PaError pa_start_stream(void *stream)  { return Pa_StartStream((PaStream*)stream); }
static PaError pa_stop_stream(void *stream)   { return Pa_StopStream((PaStream*)stream); }
static PaError pa_close_stream(void *stream)  { return Pa_CloseStream((PaStream*)stream); }

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}

static PaError pa_write_stream(void *stream, const void *buffer, unsigned long frames) {
    return Pa_WriteStream((PaStream*)stream, buffer, frames);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// ErrClosed is returned by operations on a closed stream.
var ErrClosed = errors.New("portaudio: stream closed")

// DefaultDevice selects the system default device when passed as a device
// index.
const DefaultDevice = -1

var (
	initOnce sync.Once
	initErr  error
)

func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return fmt.Errorf("portaudio: %s", C.GoString(C.Pa_GetErrorText(code)))
}

// Initialize initializes the PortAudio library. Safe to call repeatedly;
// only the first call does work.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// Terminate shuts the library down. Call once at process exit, after all
// streams are closed.
func Terminate() error {
	return paError(C.Pa_Terminate())
}

// DeviceInfo describes one audio device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// Devices lists all audio devices known to the host.
func Devices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}

	defaultInput := int(C.Pa_GetDefaultInputDevice())
	defaultOutput := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defaultInput,
			IsDefaultOutput:   i == defaultOutput,
		})
	}
	return devices, nil
}

// DefaultInputDevice returns the system default capture device.
func DefaultInputDevice() (*DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	idx := C.Pa_GetDefaultInputDevice()
	if idx == C.paNoDevice {
		return nil, errors.New("portaudio: no default input device")
	}
	info := C.Pa_GetDeviceInfo(idx)
	if info == nil {
		return nil, errors.New("portaudio: device info unavailable")
	}
	return &DeviceInfo{
		Index:             int(idx),
		Name:              C.GoString(info.name),
		MaxInputChannels:  int(info.maxInputChannels),
		DefaultSampleRate: float64(info.defaultSampleRate),
		IsDefaultInput:    true,
	}, nil
}

// DefaultOutputDevice returns the system default playback device.
func DefaultOutputDevice() (*DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	idx := C.Pa_GetDefaultOutputDevice()
	if idx == C.paNoDevice {
		return nil, errors.New("portaudio: no default output device")
	}
	info := C.Pa_GetDeviceInfo(idx)
	if info == nil {
		return nil, errors.New("portaudio: device info unavailable")
	}
	return &DeviceInfo{
		Index:             int(idx),
		Name:              C.GoString(info.name),
		MaxOutputChannels: int(info.maxOutputChannels),
		DefaultSampleRate: float64(info.defaultSampleRate),
		IsDefaultOutput:   true,
	}, nil
}

// stream wraps a running PaStream together with a C-side transfer buffer
// sized for one frame.
type stream struct {
	ptr    unsafe.Pointer
	buf    unsafe.Pointer
	bufLen int // in int16 samples
	mu     sync.Mutex
	closed bool
}

type streamParams struct {
	inputChannels  int
	outputChannels int
	device         int // DefaultDevice or an explicit index
	sampleRate     float64
	frames         int
}

func openStream(p streamParams) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	var inputParams, outputParams *C.PaStreamParameters

	if p.inputChannels > 0 {
		dev := C.PaDeviceIndex(p.device)
		if p.device == DefaultDevice {
			dev = C.Pa_GetDefaultInputDevice()
		}
		if dev == C.paNoDevice {
			return nil, errors.New("portaudio: no input device")
		}
		info := C.Pa_GetDeviceInfo(dev)
		if info == nil {
			return nil, fmt.Errorf("portaudio: no such device %d", p.device)
		}
		inputParams = &C.PaStreamParameters{
			device:           dev,
			channelCount:     C.int(p.inputChannels),
			sampleFormat:     C.paInt16,
			suggestedLatency: info.defaultLowInputLatency,
		}
	}

	if p.outputChannels > 0 {
		dev := C.PaDeviceIndex(p.device)
		if p.device == DefaultDevice || p.inputChannels > 0 {
			dev = C.Pa_GetDefaultOutputDevice()
		}
		if dev == C.paNoDevice {
			return nil, errors.New("portaudio: no output device")
		}
		info := C.Pa_GetDeviceInfo(dev)
		if info == nil {
			return nil, fmt.Errorf("portaudio: no such device %d", p.device)
		}
		outputParams = &C.PaStreamParameters{
			device:           dev,
			channelCount:     C.int(p.outputChannels),
			sampleFormat:     C.paInt16,
			suggestedLatency: info.defaultLowOutputLatency,
		}
	}

	var ps unsafe.Pointer
	if err := paError(C.pa_open_stream(
		&ps,
		inputParams,
		outputParams,
		C.double(p.sampleRate),
		C.ulong(p.frames),
		C.paClipOff,
	)); err != nil {
		return nil, err
	}

	channels := p.inputChannels
	if p.outputChannels > channels {
		channels = p.outputChannels
	}
	bufLen := p.frames * channels

	return &stream{
		ptr:    ps,
		buf:    C.malloc(C.size_t(bufLen * 2)),
		bufLen: bufLen,
	}, nil
}

func (s *stream) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return paError(C.pa_start_stream(s.ptr))
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	C.pa_stop_stream(s.ptr)
	err := paError(C.pa_close_stream(s.ptr))
	C.free(s.buf)
	return err
}

// read blocks until one full buffer of frames is captured, then copies it
// into dst. dst must hold at least frames samples.
func (s *stream) read(dst []int16, frames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if frames > s.bufLen {
		return fmt.Errorf("portaudio: read of %d frames exceeds buffer %d", frames, s.bufLen)
	}
	if err := paError(C.pa_read_stream(s.ptr, s.buf, C.ulong(frames))); err != nil {
		return err
	}
	C.memcpy(unsafe.Pointer(&dst[0]), s.buf, C.size_t(frames*2))
	return nil
}

// write blocks until the samples are handed to the device.
func (s *stream) write(src []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(src) == 0 {
		return nil
	}
	if len(src) > s.bufLen {
		return fmt.Errorf("portaudio: write of %d samples exceeds buffer %d", len(src), s.bufLen)
	}
	C.memcpy(s.buf, unsafe.Pointer(&src[0]), C.size_t(len(src)*2))
	return paError(C.pa_write_stream(s.ptr, s.buf, C.ulong(len(src))))
}
