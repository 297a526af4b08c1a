// Package wav reads and writes the minimal RIFF/WAVE framing the voicesmith
// audio path needs: PCM16 payloads for the external player, transcription
// uploads, and synthesis responses.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotWAV is returned when the input does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("wav: not a RIFF/WAVE stream")
	// ErrUnsupported is returned for encodings other than 16-bit integer PCM.
	ErrUnsupported = errors.New("wav: unsupported encoding")
)

const headerSize = 44

// Encode writes samples as a PCM16 mono WAVE stream.
func Encode(w io.Writer, samples []int16, sampleRate int) error {
	dataLen := len(samples) * 2

	var hdr [headerSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataLen))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(hdr[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(hdr[34:36], 16)                   // bits per sample
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataLen))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}

	buf := make([]byte, dataLen)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wav: write data: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into a fresh byte slice.
func EncodeBytes(samples []int16, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(samples)*2)
	// Writes to bytes.Buffer cannot fail.
	_ = Encode(&buf, samples, sampleRate)
	return buf.Bytes()
}

// Decode parses a PCM16 WAVE stream and returns mono samples and the sample
// rate. Stereo input is downmixed by averaging the channels. Chunks other
// than fmt and data are skipped.
func Decode(r io.Reader) ([]int16, int, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, 0, fmt.Errorf("wav: read header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	var (
		sampleRate int
		channels   int
		haveFmt    bool
	)

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, 0, fmt.Errorf("wav: no data chunk: %w", ErrNotWAV)
			}
			return nil, 0, fmt.Errorf("wav: read chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := int(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, ErrNotWAV
			}
			fmtBuf := make([]byte, size)
			if _, err := io.ReadFull(r, fmtBuf); err != nil {
				return nil, 0, fmt.Errorf("wav: read fmt: %w", err)
			}
			codec := binary.LittleEndian.Uint16(fmtBuf[0:2])
			bits := binary.LittleEndian.Uint16(fmtBuf[14:16])
			if codec != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("wav: codec=%d bits=%d: %w", codec, bits, ErrUnsupported)
			}
			channels = int(binary.LittleEndian.Uint16(fmtBuf[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtBuf[4:8]))
			if channels < 1 || channels > 2 || sampleRate <= 0 {
				return nil, 0, fmt.Errorf("wav: channels=%d rate=%d: %w", channels, sampleRate, ErrUnsupported)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("wav: data before fmt: %w", ErrNotWAV)
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, 0, fmt.Errorf("wav: read data: %w", err)
			}
			return decodeSamples(data, channels), sampleRate, nil

		default:
			// Chunk sizes are even-padded per RIFF.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, 0, fmt.Errorf("wav: skip %q: %w", id, err)
			}
		}
	}
}

func decodeSamples(data []byte, channels int) []int16 {
	frames := len(data) / (2 * channels)
	out := make([]int16, frames)
	if channels == 1 {
		for i := range out {
			out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
		}
		return out
	}
	for i := range out {
		j := i * 4
		l := int16(data[j]) | int16(data[j+1])<<8
		r := int16(data[j+2]) | int16(data[j+3])<<8
		out[i] = int16((int32(l) + int32(r)) / 2)
	}
	return out
}
