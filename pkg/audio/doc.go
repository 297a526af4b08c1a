// Package audio is an umbrella for the audio sub-packages:
//
//   - pcm: PCM sample formats and conversions
//   - wav: WAV file encoding and decoding
//   - player: blocking playback queue over PortAudio
//   - portaudio: cgo bindings for the PortAudio host API
//   - fbank: log-mel filterbank features for the wake-word scorer
//   - resampler: sample-rate conversion between capture and model rates
package audio
