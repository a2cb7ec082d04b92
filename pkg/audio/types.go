// Package audio decodes and normalises the speech recordings fed to the
// speech-to-phoneme providers.
//
// Audio is held as 16-bit signed little-endian interleaved PCM in a [Clip].
// Transcription models expect 16 kHz mono; [Convert] and [Load] produce that
// from any PCM WAV input.
package audio

import "time"

// STTFormat is the format every speech-to-phoneme provider consumes.
var STTFormat = Format{SampleRate: 16000, Channels: 1}

// Clip is a decoded recording.
type Clip struct {
	// Data is 16-bit signed little-endian PCM, channels interleaved.
	Data []byte

	// SampleRate in Hz (e.g., 44100 for a typical WAV, 16000 for STT).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// Format returns the clip's sample rate and channel count.
func (c *Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Frames returns the number of sample frames (samples per channel).
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Data) / (2 * c.Channels)
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Samples returns the clip as mono float32 samples in [-1, 1], averaging
// channels when there is more than one.
func (c *Clip) Samples() []float32 {
	return PCMToFloat32Mono(c.Data, c.Channels)
}
