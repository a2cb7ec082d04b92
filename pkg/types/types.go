// Package types defines the shared types used across all phonoscope packages.
//
// These types are what the G2P and STT providers hand to the assessment core.
// Each package defines its own domain types; only cross-cutting data
// structures live here to avoid circular imports.
package types

// WordPhonemes is one reference word as produced by a G2P backend: the word
// text plus its ordered phoneme symbols. An empty Phonemes slice is legal and
// means the backend could not (or did not need to) produce a pronunciation.
type WordPhonemes struct {
	// Word is the reference word as it appeared in the script.
	Word string `json:"word"`

	// Phonemes is the ordered list of phonetic symbols for Word.
	Phonemes []string `json:"phonemes"`
}

// TimedSymbol is one phonetic symbol emitted by a transcription model.
// Start and End are offsets in seconds from the beginning of the audio and
// are nil when the model did not report timestamps.
type TimedSymbol struct {
	Symbol string   `json:"symbol"`
	Start  *float64 `json:"start"`
	End    *float64 `json:"end"`
}

// TimeSpan is a closed time interval in seconds.
type TimeSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Mid returns the midpoint of the span.
func (s TimeSpan) Mid() float64 {
	return (s.Start + s.End) / 2
}

// Union returns the smallest span covering both s and o.
func (s TimeSpan) Union(o TimeSpan) TimeSpan {
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// IPAWord is one chunk of IPA text returned by a transcription model,
// typically a word, with optional timestamps.
type IPAWord struct {
	// IPA is the normalised IPA text of the chunk.
	IPA string `json:"ipa"`

	// Start and End are chunk boundaries in seconds, nil when unknown.
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`

	// Raw is the unmodified chunk text as returned by the model.
	Raw string `json:"raw,omitempty"`
}

// Transcription is the output of a speech-to-phoneme provider.
type Transcription struct {
	// AudioPath identifies the transcribed audio. May be empty for in-memory audio.
	AudioPath string `json:"audio_path"`

	// Model names the acoustic model that produced the transcription.
	Model string `json:"model"`

	// IPAText is the full-utterance IPA text.
	IPAText string `json:"ipa_text"`

	// Words holds per-chunk output when the provider reports it. May be nil.
	Words []IPAWord `json:"ipa_words"`
}

// Float64 returns a pointer to v. It is a convenience for building
// [TimedSymbol] and [IPAWord] values with timestamps.
func Float64(v float64) *float64 {
	return &v
}
