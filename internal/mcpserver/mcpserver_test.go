package mcpserver_test

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/config"
	"github.com/MrWong99/phonoscope/internal/mcpserver"
	"github.com/MrWong99/phonoscope/internal/report"
	g2pmock "github.com/MrWong99/phonoscope/pkg/provider/g2p/mock"
	"github.com/MrWong99/phonoscope/pkg/types"
)

func connect(t *testing.T) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	a, err := app.New(ctx, config.Default(), &app.Providers{
		G2P: &g2pmock.Provider{Entries: map[string][]string{
			"think": {"θ", "ɪ", "ŋ", "k"},
			"zebra": {"z", "i", "b", "r", "ə"},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close(ctx) })

	clientT, serverT := mcpsdk.NewInMemoryTransports()
	ss, err := mcpserver.New(a, "test").Connect(ctx, serverT)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call[T any](t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) (T, *mcpsdk.CallToolResult) {
	t.Helper()
	var out T
	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		return out, res
	}
	if len(res.Content) != 1 {
		t.Fatalf("CallTool(%s): got %d content blocks, want 1", name, len(res.Content))
	}
	tc, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): content is %T, want *TextContent", name, res.Content[0])
	}
	if err := json.Unmarshal([]byte(tc.Text), &out); err != nil {
		t.Fatalf("CallTool(%s): decode %q: %v", name, tc.Text, err)
	}
	return out, res
}

func TestListTools(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	want := []string{"align_phonemes", "assess_phonemes", "list_mistake_rules", "phonemize"}
	if !slices.Equal(names, want) {
		t.Errorf("tools = %v, want %v", names, want)
	}
}

func TestAssessPhonemes(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	doc, _ := call[report.Document](t, cs, "assess_phonemes", map[string]any{
		"reference": "think",
		"ipa":       "sɪŋk",
	})
	if doc.Metrics.Substitutions != 1 || doc.Metrics.RefPhonemes != 4 {
		t.Errorf("metrics = %+v, want 1 substitution of 4", doc.Metrics)
	}
	if len(doc.Mistakes) != 1 || doc.Mistakes[0].Rule != "TH_FRONTING_OR_STOPPING" {
		t.Errorf("mistakes = %+v, want TH_FRONTING_OR_STOPPING", doc.Mistakes)
	}
}

func TestAssessPhonemes_EmptyReferenceIsToolError(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	_, res := call[report.Document](t, cs, "assess_phonemes", map[string]any{
		"reference": "",
		"ipa":       "sɪŋk",
	})
	if !res.IsError {
		t.Error("expected a tool error for an empty reference")
	}
}

func TestAlignPhonemes(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	got, _ := call[mcpserver.AlignResult](t, cs, "align_phonemes", map[string]any{
		"reference_ipa":  "zibrə",
		"hypothesis_ipa": "zibə",
	})
	if got.Deletions != 1 || got.Substitutions != 0 || got.Insertions != 0 {
		t.Errorf("counts = %+v, want one deletion", got)
	}
	if len(got.Ops) != 5 {
		t.Fatalf("got %d ops, want 5", len(got.Ops))
	}
	del := got.Ops[3]
	if del.Op != report.OpDel || del.Expected == nil || *del.Expected != "r" || del.Predicted != nil {
		t.Errorf("op[3] = %+v, want deletion of r", del)
	}
}

func TestPhonemize(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	words, _ := call[[]types.WordPhonemes](t, cs, "phonemize", map[string]any{"text": "Zebra, think!"})
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	if words[0].Word != "Zebra" || !slices.Equal(words[1].Phonemes, []string{"θ", "ɪ", "ŋ", "k"}) {
		t.Errorf("words = %+v", words)
	}
}

func TestListMistakeRules(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	rules, _ := call[[]mcpserver.RuleInfo](t, cs, "list_mistake_rules", map[string]any{})
	if len(rules) == 0 {
		t.Fatal("no rules listed")
	}
	found := false
	for _, r := range rules {
		if r.Name == "VOICING_ERROR_FRICATIVE" && slices.ContainsFunc(r.Pairs, func(p []string) bool {
			return slices.Equal(p, []string{"z", "s"})
		}) {
			found = true
		}
	}
	if !found {
		t.Errorf("rules = %+v, want VOICING_ERROR_FRICATIVE with z→s", rules)
	}
}
