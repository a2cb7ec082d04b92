// Package mcpserver exposes the assessment pipeline as MCP tools, so that
// LLM agents can phonemize text and score learner transcriptions.
//
// Tools:
//   - "assess_phonemes": reference text + IPA transcription → full report.
//   - "align_phonemes": two IPA strings → edit operations and counts.
//   - "phonemize": text → per-word phonemes from the configured G2P backend.
//   - "list_mistake_rules": the named substitution patterns in use.
//
// Every tool returns its result as a single JSON text block.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/observe"
	"github.com/MrWong99/phonoscope/internal/report"
	"github.com/MrWong99/phonoscope/pkg/types"
)

// Server is an MCP server backed by one [app.App].
type Server struct {
	app *app.App
	srv *mcpsdk.Server
}

// New creates a Server with all tools registered.
func New(a *app.App, version string) *Server {
	s := &Server{
		app: a,
		srv: mcpsdk.NewServer(&mcpsdk.Implementation{Name: "phonoscope", Version: version}, nil),
	}
	m := a.Metrics()

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "assess_phonemes",
		Description: "Assess a learner's pronunciation. Phonemizes the reference text with the configured G2P backend, aligns it against the IPA transcription of what was said and returns per-word mistakes, the phoneme error rate and named mistake patterns.",
	}, instrument(m, "assess_phonemes", s.assess))

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "align_phonemes",
		Description: "Align two IPA strings with minimum edit cost and return the edit operations (match, sub, ins, del) plus substitution, insertion and deletion counts.",
	}, instrument(m, "align_phonemes", s.align))

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "phonemize",
		Description: "Convert text to per-word IPA phonemes using the configured G2P backend and pronunciation lexicons.",
	}, instrument(m, "phonemize", s.phonemize))

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "list_mistake_rules",
		Description: "List the named substitution patterns (for example TH_FRONTING_OR_STOPPING) that assessments report.",
	}, instrument(m, "list_mistake_rules", s.listRules))

	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves MCP on t and returns the session. Used with in-memory
// transports in tests.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}

// instrument adapts fn to an MCP tool handler that returns fn's result as a
// JSON text block and records the call.
func instrument[In any](m *observe.Metrics, name string, fn func(context.Context, In) (any, error)) mcpsdk.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, any, error) {
		start := time.Now()
		out, err := fn(ctx, in)
		m.RecordToolLatency(ctx, name, time.Since(start).Seconds())
		if err != nil {
			m.RecordToolCall(ctx, name, "error")
			observe.Logger(ctx).Warn("mcp tool failed", "tool", name, "err", err)
			return nil, nil, err
		}
		b, err := json.Marshal(out)
		if err != nil {
			m.RecordToolCall(ctx, name, "error")
			return nil, nil, fmt.Errorf("%s: encode result: %w", name, err)
		}
		m.RecordToolCall(ctx, name, "ok")
		observe.Logger(ctx).Debug("mcp tool done", "tool", name, "elapsed", time.Since(start))
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(b)}},
		}, nil, nil
	}
}

// AssessArgs are the arguments of assess_phonemes.
type AssessArgs struct {
	Reference string `json:"reference" jsonschema:"the text the learner was asked to read"`
	IPA       string `json:"ipa" jsonschema:"IPA transcription of what the learner said"`
}

func (s *Server) assess(ctx context.Context, in AssessArgs) (any, error) {
	if in.Reference == "" {
		return nil, fmt.Errorf("assess_phonemes: reference must not be empty")
	}
	res, err := s.app.AssessText(ctx, in.Reference, in.IPA)
	if err != nil {
		return nil, fmt.Errorf("assess_phonemes: %w", err)
	}
	return res.Report, nil
}

// AlignArgs are the arguments of align_phonemes.
type AlignArgs struct {
	Reference  string `json:"reference_ipa" jsonschema:"expected pronunciation in IPA"`
	Hypothesis string `json:"hypothesis_ipa" jsonschema:"produced pronunciation in IPA"`
}

// AlignResult is the result of align_phonemes.
type AlignResult struct {
	Ops           []report.Op `json:"ops"`
	Substitutions int         `json:"substitutions"`
	Insertions    int         `json:"insertions"`
	Deletions     int         `json:"deletions"`
	ErrorRate     float64     `json:"phoneme_error_rate"`
	Cost          float64     `json:"alignment_cost"`
}

func (s *Server) align(ctx context.Context, in AlignArgs) (any, error) {
	sum, err := s.app.AlignIPA(ctx, in.Reference, in.Hypothesis)
	if err != nil {
		return nil, fmt.Errorf("align_phonemes: %w", err)
	}
	return AlignResult{
		Ops:           report.Ops(sum),
		Substitutions: sum.Substitutions,
		Insertions:    sum.Insertions,
		Deletions:     sum.Deletions,
		ErrorRate:     sum.ErrorRate,
		Cost:          sum.Cost,
	}, nil
}

// PhonemizeArgs are the arguments of phonemize.
type PhonemizeArgs struct {
	Text string `json:"text" jsonschema:"text to convert to phonemes"`
}

func (s *Server) phonemize(ctx context.Context, in PhonemizeArgs) (any, error) {
	words, err := s.app.Phonemize(ctx, in.Text)
	if err != nil {
		return nil, fmt.Errorf("phonemize: %w", err)
	}
	if words == nil {
		words = []types.WordPhonemes{}
	}
	return words, nil
}

// RuleInfo describes one mistake rule.
type RuleInfo struct {
	Name  string     `json:"name"`
	Pairs [][]string `json:"pairs"`
}

func (s *Server) listRules(_ context.Context, _ struct{}) (any, error) {
	rules := s.app.Rules()
	out := make([]RuleInfo, len(rules))
	for i, r := range rules {
		out[i] = RuleInfo{Name: r.Name, Pairs: make([][]string, len(r.Pairs))}
		for j, p := range r.Pairs {
			out[i].Pairs[j] = []string{p.Expected, p.Predicted}
		}
	}
	return out, nil
}
