package lexicon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/MrWong99/phonoscope/pkg/provider/g2p/lexicon"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p/mock"
)

func TestDecode_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format lexicon.Format
		src    string
	}{
		{lexicon.YAML, "GIF: dʒɪf\n"},
		{lexicon.JSON, `{"GIF": "dʒɪf"}`},
		{lexicon.TOML, `GIF = "dʒɪf"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()
			lex, err := lexicon.Decode(strings.NewReader(tt.src), tt.format)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			got, ok := lex.Lookup("gif")
			if !ok {
				t.Fatal("Lookup(gif): not found")
			}
			if want := []string{"dʒ", "ɪ", "f"}; !reflect.DeepEqual(got, want) {
				t.Errorf("Lookup(gif) = %v, want %v", got, want)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	if _, err := lexicon.Decode(strings.NewReader("- a\n- b\n"), lexicon.YAML); err == nil {
		t.Error("Decode(list): expected error")
	}
	if _, err := lexicon.Decode(strings.NewReader("{}"), lexicon.Format("xml")); err == nil {
		t.Error("Decode(xml): expected error")
	}
	lex, err := lexicon.Decode(strings.NewReader(""), lexicon.YAML)
	if err != nil || len(lex) != 0 {
		t.Errorf("Decode(empty yaml) = %v, %v; want empty lexicon", lex, err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "lex.yml")
	if err := os.WriteFile(path, []byte("Phonoscope: ˈfoʊnəskoʊp\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	lex, err := lexicon.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"ˈ", "f", "oʊ", "n", "ə", "s", "k", "oʊ", "p"}
	if got, _ := lex.Lookup("PHONOSCOPE"); !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup = %v, want %v", got, want)
	}

	if _, err := lexicon.Load(filepath.Join(dir, "lex.csv")); err == nil {
		t.Error("Load(.csv): expected error")
	}
	if _, err := lexicon.Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want ErrNotExist", err)
	}
}

func TestOverride(t *testing.T) {
	t.Parallel()

	base := &mock.Provider{Entries: map[string][]string{
		"the": {"ð", "ə"},
		"gif": {"ɡ", "ɪ", "f"},
	}}
	p := lexicon.Override(base, lexicon.New(map[string]string{"GIF": "dʒɪf"}))

	got, err := p.Phonemize(context.Background(), []string{"The", "gif", "unknown"})
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}
	want := [][]string{{"ð", "ə"}, {"dʒ", "ɪ", "f"}, {}}
	for i, w := range got {
		if !reflect.DeepEqual(w.Phonemes, want[i]) {
			t.Errorf("word %d (%s) = %v, want %v", i, w.Word, w.Phonemes, want[i])
		}
	}
	if len(base.Calls) != 1 || !reflect.DeepEqual(base.Calls[0].Words, []string{"The", "unknown"}) {
		t.Errorf("base calls = %+v, want one call without the overridden word", base.Calls)
	}
	if p.Name() != "mock" {
		t.Errorf("Name() = %q, want base name", p.Name())
	}
}

func TestOverride_EmptyLexiconReturnsBase(t *testing.T) {
	t.Parallel()

	base := &mock.Provider{}
	if p := lexicon.Override(base, nil); p != base {
		t.Error("Override with empty lexicon should return base unchanged")
	}
}

func TestOverride_PropagatesBaseError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := lexicon.Override(&mock.Provider{Err: boom}, lexicon.New(map[string]string{"a": "ə"}))
	if _, err := p.Phonemize(context.Background(), []string{"a", "b"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
