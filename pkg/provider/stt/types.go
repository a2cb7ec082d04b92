package stt

import (
	"time"

	"github.com/MrWong99/phonoscope/pkg/audio"
)

// Audio is a mono recording handed to a [Provider].
type Audio struct {
	// Samples are mono float32 samples in [-1.0, 1.0].
	Samples []float32

	// SampleRate in Hz. Most models expect 16000.
	SampleRate int

	// Path identifies the source file for reporting. May be empty.
	Path string
}

// FromClip converts a decoded clip into Audio, downmixing to mono.
func FromClip(clip *audio.Clip, path string) Audio {
	return Audio{Samples: clip.Samples(), SampleRate: clip.SampleRate, Path: path}
}

// Duration returns the playing time of the audio.
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(a.Samples)) * time.Second / time.Duration(a.SampleRate)
}

// Clip converts the samples back to 16-bit PCM, e.g. for WAV upload.
func (a Audio) Clip() *audio.Clip {
	return &audio.Clip{Data: audio.Float32ToPCM(a.Samples), SampleRate: a.SampleRate, Channels: 1}
}
