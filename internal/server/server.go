// Package server exposes the assessment pipeline over HTTP.
//
//	POST /v1/assess                              phoneme or text assessment (JSON)
//	POST /v1/assess/audio                        WAV body, reference in the query
//	GET  /v1/assessments/{id}                    stored record (JSON or ?format=html)
//	GET  /v1/assessments/{id}/similar            nearest error profiles (?k=)
//	GET  /v1/speakers/{speaker}/assessments      speaker history (?limit=)
//	GET  /healthz, /readyz, /metrics
//
// Every route is wrapped in [observe.Middleware].
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/phonoscope/internal/align"
	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/health"
	"github.com/MrWong99/phonoscope/internal/observe"
	"github.com/MrWong99/phonoscope/internal/report"
	"github.com/MrWong99/phonoscope/internal/store"
	"github.com/MrWong99/phonoscope/pkg/audio"
	"github.com/MrWong99/phonoscope/pkg/phoneme"
	"github.com/MrWong99/phonoscope/pkg/types"
)

const (
	defaultMaxBody  = 1 << 20
	defaultMaxAudio = 32 << 20
	defaultSimilarK = 5
)

// Option configures a [Server].
type Option func(*Server)

// WithMaxBodyBytes limits JSON request bodies. Default: 1 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithMaxAudioBytes limits uploaded WAV bodies. Default: 32 MiB.
func WithMaxAudioBytes(n int64) Option {
	return func(s *Server) { s.maxAudio = n }
}

// WithMetricsHandler replaces the /metrics handler. Default:
// [promhttp.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// Server serves the HTTP API for one [app.App].
type Server struct {
	app            *app.App
	maxBody        int64
	maxAudio       int64
	metricsHandler http.Handler
}

// New creates a Server backed by a.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{
		app:      a,
		maxBody:  defaultMaxBody,
		maxAudio: defaultMaxAudio,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/assess", s.handleAssess)
	mux.HandleFunc("POST /v1/assess/audio", s.handleAssessAudio)
	mux.HandleFunc("GET /v1/assessments/{id}", s.handleGet)
	mux.HandleFunc("GET /v1/assessments/{id}/similar", s.handleSimilar)
	mux.HandleFunc("GET /v1/speakers/{speaker}/assessments", s.handleList)
	health.New(s.app.Checkers()...).Register(mux)
	mux.Handle("GET /metrics", s.metricsHandler)
	return observe.Middleware(s.app.Metrics())(mux)
}

// assessRequest is the JSON body of POST /v1/assess. Either ReferenceWords
// and Hypothesis, or Reference and IPA, must be set.
type assessRequest struct {
	ReferenceWords []types.WordPhonemes `json:"reference_words"`
	Hypothesis     []types.TimedSymbol  `json:"hypothesis"`

	Reference string `json:"reference"`
	IPA       string `json:"ipa"`

	Speaker string `json:"speaker"`
	Save    bool   `json:"save"`
}

// assessResponse wraps a report with the stored record ID, if any.
type assessResponse struct {
	ID     *uuid.UUID       `json:"id,omitempty"`
	Report *report.Document `json:"report"`
}

// handleAssess handles POST /v1/assess.
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var (
		res *app.Result
		err error
	)
	switch {
	case req.ReferenceWords != nil || req.Hypothesis != nil:
		if req.Reference != "" || req.IPA != "" {
			http.Error(w, "reference_words/hypothesis and reference/ipa are mutually exclusive", http.StatusBadRequest)
			return
		}
		res, err = s.assessPhonemes(r, req)
	default:
		res, err = s.app.AssessText(r.Context(), req.Reference, req.IPA)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Save {
		ref := req.Reference
		if ref == "" {
			ref = res.Report.Reference
		}
		id, err := s.app.Save(r.Context(), app.AudioRequest{Reference: ref, Speaker: req.Speaker}, res)
		if err != nil {
			writeError(w, r, err)
			return
		}
		res.ID = id
	}
	s.writeResult(w, r, res)
}

func (s *Server) assessPhonemes(r *http.Request, req assessRequest) (*app.Result, error) {
	hyp := req.Hypothesis
	if hyp == nil {
		hyp = []types.TimedSymbol{}
	}
	sum, err := s.app.AssessPhonemes(r.Context(), req.ReferenceWords, hyp)
	if err != nil {
		return nil, err
	}
	words := make([]string, len(req.ReferenceWords))
	for i, w := range req.ReferenceWords {
		words[i] = w.Word
	}
	doc := report.Build(report.Meta{Reference: strings.Join(words, " ")}, sum)
	return &app.Result{Summary: sum, Report: doc}, nil
}

// handleAssessAudio handles POST /v1/assess/audio. The body is a WAV file;
// reference, speaker and save come from the query string.
func (s *Server) handleAssessAudio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := q.Get("reference")
	if strings.TrimSpace(ref) == "" {
		http.Error(w, "reference is required", http.StatusBadRequest)
		return
	}
	save, _ := strconv.ParseBool(q.Get("save"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxAudio))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	clip, err := audio.ReadWAV(bytes.NewReader(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	res, err := s.app.AssessClip(r.Context(), clip, app.AudioRequest{
		Path:      q.Get("name"),
		Reference: ref,
		Speaker:   q.Get("speaker"),
		Save:      save,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeResult(w, r, res)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *app.Result) {
	if res.ID != uuid.Nil {
		w.Header().Set("Location", "/v1/assessments/"+res.ID.String())
	}
	if r.URL.Query().Get("format") == "html" {
		writeHTML(w, res.Report)
		return
	}
	resp := assessResponse{Report: res.Report}
	if res.ID != uuid.Nil {
		resp.ID = &res.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGet handles GET /v1/assessments/{id}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid assessment id", http.StatusBadRequest)
		return
	}
	rec, err := st.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		var doc report.Document
		if err := json.Unmarshal(rec.Report, &doc); err != nil {
			http.Error(w, "stored report is not readable", http.StatusInternalServerError)
			return
		}
		writeHTML(w, &doc)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSimilar handles GET /v1/assessments/{id}/similar. The record itself
// is excluded from the result.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid assessment id", http.StatusBadRequest)
		return
	}
	k, ok := queryInt(w, r, "k", defaultSimilarK)
	if !ok {
		return
	}
	rec, err := st.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := st.Similar(r.Context(), rec.Profile, k+1)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]store.Match, 0, len(matches))
	for _, m := range matches {
		if m.Record.ID == id {
			continue
		}
		out = append(out, m)
	}
	if len(out) > k {
		out = out[:k]
	}
	writeJSON(w, http.StatusOK, out)
}

// handleList handles GET /v1/speakers/{speaker}/assessments.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	recs, err := st.ListBySpeaker(r.Context(), r.PathValue("speaker"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) requireStore(w http.ResponseWriter) (store.Store, bool) {
	st := s.app.Store()
	if st == nil {
		http.Error(w, app.ErrNoStore.Error(), http.StatusNotImplemented)
		return nil, false
	}
	return st, true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		http.Error(w, key+" must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, phoneme.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, align.ErrTooLong):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNoStore):
		return http.StatusNotImplemented
	case errors.Is(err, app.ErrNoSTT):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "err", err)
	}
}

func writeHTML(w http.ResponseWriter, doc *report.Document) {
	var buf bytes.Buffer
	if err := report.HTML(&buf, doc); err != nil {
		http.Error(w, "render report: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
