package phoneme_test

import (
	"reflect"
	"testing"

	"github.com/MrWong99/phonoscope/pkg/phoneme"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"t͡ʃ", []string{"t͡ʃ"}},
		{"aɪ", []string{"aɪ"}},
		{"ˈziː", []string{"ˈ", "z", "iː"}},
		{"zuː", []string{"z", "uː"}},
		{"tʃɪp", []string{"tʃ", "ɪ", "p"}},
		{"ðə  kæt", []string{"ð", "ə", "k", "æ", "t"}},
		{"k͡p", []string{"k͡p"}},
		{"", nil},
	}

	for _, tt := range tests {
		if got := phoneme.Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripStress(t *testing.T) {
	t.Parallel()
	got := phoneme.StripStress([]string{"ˈ", "z", "ˌ", "iː"})
	want := []string{"z", "iː"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StripStress = %q, want %q", got, want)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	// "e" + combining acute composes to U+00E9 under NFC.
	if got := phoneme.Normalize("  é   bə \n"); got != "é bə" {
		t.Errorf("Normalize = %q, want %q", got, "é bə")
	}
}

func TestSplitWords(t *testing.T) {
	t.Parallel()
	got := phoneme.SplitWords("The zebra's well-fed, isn't it?")
	want := []string{"The", "zebra's", "well-fed", "isn't", "it"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitWords = %q, want %q", got, want)
	}
}
