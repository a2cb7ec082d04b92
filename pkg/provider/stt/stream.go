package stt

import (
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// Tokenizer splits an IPA string into phone symbols.
type Tokenizer func(ipa string) []string

// ToStream flattens a transcription into timed symbols. Each chunk in
// tr.Words is tokenized and every resulting symbol inherits the chunk's
// Start and End. When the transcription carries no chunks, tr.IPAText is
// tokenized and all timestamps are nil. A nil tokenize defaults to
// [phoneme.Tokenize].
func ToStream(tr *types.Transcription, tokenize Tokenizer) []types.TimedSymbol {
	if tokenize == nil {
		tokenize = phoneme.Tokenize
	}
	out := []types.TimedSymbol{}
	if tr == nil {
		return out
	}
	if len(tr.Words) == 0 {
		for _, s := range tokenize(tr.IPAText) {
			out = append(out, types.TimedSymbol{Symbol: s})
		}
		return out
	}
	for _, w := range tr.Words {
		for _, s := range tokenize(w.IPA) {
			out = append(out, types.TimedSymbol{Symbol: s, Start: w.Start, End: w.End})
		}
	}
	return out
}

// StripStress wraps tokenize so that stress marks are dropped.
func StripStress(tokenize Tokenizer) Tokenizer {
	if tokenize == nil {
		tokenize = phoneme.Tokenize
	}
	return func(ipa string) []string {
		return phoneme.StripStress(tokenize(ipa))
	}
}
