package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/config"
	"github.com/MrWong99/phonoscope/internal/report"
	"github.com/MrWong99/phonoscope/internal/server"
	"github.com/MrWong99/phonoscope/internal/store"
	"github.com/MrWong99/phonoscope/internal/store/memstore"
	"github.com/MrWong99/phonoscope/pkg/audio"
	g2pmock "github.com/MrWong99/phonoscope/pkg/provider/g2p/mock"
	sttmock "github.com/MrWong99/phonoscope/pkg/provider/stt/mock"
	"github.com/MrWong99/phonoscope/pkg/types"
)

type assessBody struct {
	ID     *uuid.UUID      `json:"id"`
	Report report.Document `json:"report"`
}

func newServer(t *testing.T, withStore bool) *httptest.Server {
	t.Helper()
	p := &app.Providers{
		G2P: &g2pmock.Provider{Entries: map[string][]string{
			"the": {"ð", "ə"},
			"cat": {"k", "æ", "t"},
		}},
		STT: &sttmock.Provider{Result: &types.Transcription{Model: "mock-ipa", IPAText: "ðə kɑt"}},
	}
	var opts []app.Option
	if withStore {
		opts = append(opts, app.WithStore(memstore.New()))
	}
	a, err := app.New(context.Background(), config.Default(), p, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	srv := httptest.NewServer(server.New(a, server.WithMetricsHandler(metrics)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAssess_Phonemes(t *testing.T) {
	t.Parallel()
	srv := newServer(t, false)

	body := `{
		"reference_words": [{"word": "zebra", "phonemes": ["z", "i", "b", "r", "ə"]}],
		"hypothesis": [
			{"symbol": "z", "start": 0.0, "end": 0.1},
			{"symbol": "i", "start": 0.1, "end": 0.2},
			{"symbol": "b", "start": 0.2, "end": 0.3},
			{"symbol": "ə", "start": 0.3, "end": 0.4}
		]
	}`
	resp := post(t, srv.URL+"/v1/assess", "application/json", []byte(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[assessBody](t, resp)
	if got.ID != nil {
		t.Errorf("unsaved assessment has id %v", got.ID)
	}
	m := got.Report.Metrics
	if m.Deletions != 1 || m.Substitutions != 0 || m.Insertions != 0 {
		t.Errorf("metrics = %+v, want one deletion", m)
	}
	if got.Report.Reference != "zebra" {
		t.Errorf("reference = %q, want zebra", got.Report.Reference)
	}
	if len(got.Report.Words) != 1 || got.Report.Words[0].Correct {
		t.Errorf("words = %+v, want one incorrect word", got.Report.Words)
	}
}

func TestAssess_Text(t *testing.T) {
	t.Parallel()
	srv := newServer(t, false)

	resp := post(t, srv.URL+"/v1/assess", "application/json", []byte(`{"reference": "the cat", "ipa": "ðə kæt"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[assessBody](t, resp)
	if got.Report.Metrics.PhonemeErrorRate != 0 {
		t.Errorf("error rate = %v, want 0", got.Report.Metrics.PhonemeErrorRate)
	}
	if got.Report.G2PBackend != "mock" {
		t.Errorf("g2p backend = %q, want mock", got.Report.G2PBackend)
	}
}

func TestAssess_HTML(t *testing.T) {
	t.Parallel()
	srv := newServer(t, false)

	resp := post(t, srv.URL+"/v1/assess?format=html", "application/json", []byte(`{"reference": "the cat", "ipa": "ðə kɑt"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "cat") {
		t.Error("html report does not mention the reference word")
	}
}

func TestAssess_BadRequests(t *testing.T) {
	t.Parallel()
	srv := newServer(t, false)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: `{`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"referense": "cat"}`, want: http.StatusBadRequest},
		{
			name: "mixed forms",
			body: `{"reference": "cat", "hypothesis": [{"symbol": "k"}]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "empty symbol",
			body: `{"reference_words": [{"word": "cat", "phonemes": ["k", ""]}], "hypothesis": []}`,
			want: http.StatusBadRequest,
		},
		{name: "save without store", body: `{"reference": "cat", "ipa": "kæt", "save": true}`, want: http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := post(t, srv.URL+"/v1/assess", "application/json", []byte(tt.body))
			if resp.StatusCode != tt.want {
				b, _ := io.ReadAll(resp.Body)
				t.Errorf("status = %d, want %d (body %q)", resp.StatusCode, tt.want, b)
			}
		})
	}
}

func TestAssessAudio_SaveAndFetch(t *testing.T) {
	t.Parallel()
	srv := newServer(t, true)

	wav := audio.EncodeWAV(&audio.Clip{Data: make([]byte, 8820), SampleRate: 44100, Channels: 1})
	resp := post(t, srv.URL+"/v1/assess/audio?reference=the+cat&speaker=ana&save=true&name=take1.wav", "audio/wav", wav)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200 (body %q)", resp.StatusCode, b)
	}
	got := decode[assessBody](t, resp)
	if got.ID == nil {
		t.Fatal("saved assessment has no id")
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/assessments/"+got.ID.String() {
		t.Errorf("Location = %q", loc)
	}
	if got.Report.Model != "mock-ipa" || got.Report.AudioPath != "take1.wav" {
		t.Errorf("report meta = %q %q", got.Report.Model, got.Report.AudioPath)
	}
	if got.Report.Metrics.Substitutions != 1 {
		t.Errorf("substitutions = %d, want 1", got.Report.Metrics.Substitutions)
	}

	rec := decode[store.Record](t, get(t, srv.URL+"/v1/assessments/"+got.ID.String()))
	if rec.ID != *got.ID || rec.Speaker != "ana" || rec.Reference != "the cat" {
		t.Errorf("record = %+v", rec)
	}
	if rec.ErrorRate != 0.2 {
		t.Errorf("error rate = %v, want 0.2", rec.ErrorRate)
	}

	html := get(t, srv.URL+"/v1/assessments/"+got.ID.String()+"?format=html")
	if ct := html.Header.Get("Content-Type"); html.StatusCode != http.StatusOK || !strings.HasPrefix(ct, "text/html") {
		t.Errorf("html fetch = %d %q", html.StatusCode, ct)
	}

	list := decode[[]store.Record](t, get(t, srv.URL+"/v1/speakers/ana/assessments?limit=10"))
	if len(list) != 1 || list[0].ID != *got.ID {
		t.Errorf("speaker list = %+v", list)
	}
}

func TestAssessAudio_BadInput(t *testing.T) {
	t.Parallel()
	srv := newServer(t, true)

	tests := []struct {
		name  string
		query string
		body  []byte
		want  int
	}{
		{name: "missing reference", query: "", body: []byte("RIFF"), want: http.StatusBadRequest},
		{name: "not a wav", query: "?reference=cat", body: []byte("hello world, not audio"), want: http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := post(t, srv.URL+"/v1/assess/audio"+tt.query, "audio/wav", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSimilar_ExcludesSelf(t *testing.T) {
	t.Parallel()
	srv := newServer(t, true)

	var ids []uuid.UUID
	for _, ipa := range []string{"ðə kɑt", "ðə kɑt", "ðə kæt"} {
		body := `{"reference": "the cat", "ipa": "` + ipa + `", "speaker": "ana", "save": true}`
		got := decode[assessBody](t, post(t, srv.URL+"/v1/assess", "application/json", []byte(body)))
		if got.ID == nil {
			t.Fatal("saved assessment has no id")
		}
		ids = append(ids, *got.ID)
	}

	matches := decode[[]store.Match](t, get(t, srv.URL+"/v1/assessments/"+ids[0].String()+"/similar?k=1"))
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Record.ID != ids[1] {
		t.Errorf("nearest = %v, want %v", matches[0].Record.ID, ids[1])
	}
	if matches[0].Distance > 1e-6 {
		t.Errorf("distance = %v, want 0", matches[0].Distance)
	}
}

func TestHistoryRoutes_Errors(t *testing.T) {
	t.Parallel()
	withStore := newServer(t, true)
	noStore := newServer(t, false)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{name: "unknown id", url: withStore.URL + "/v1/assessments/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "bad id", url: withStore.URL + "/v1/assessments/not-a-uuid", want: http.StatusBadRequest},
		{name: "bad limit", url: withStore.URL + "/v1/speakers/ana/assessments?limit=-1", want: http.StatusBadRequest},
		{name: "bad k", url: withStore.URL + "/v1/assessments/" + uuid.NewString() + "/similar?k=x", want: http.StatusBadRequest},
		{name: "no store", url: noStore.URL + "/v1/assessments/" + uuid.NewString(), want: http.StatusNotImplemented},
		{name: "empty speaker", url: withStore.URL + "/v1/speakers/nobody/assessments", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := get(t, tt.url)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestOperationalRoutes(t *testing.T) {
	t.Parallel()
	srv := newServer(t, true)

	tests := []struct {
		path string
		want int
	}{
		{path: "/healthz", want: http.StatusOK},
		{path: "/readyz", want: http.StatusOK},
		{path: "/metrics", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			resp := get(t, srv.URL+tt.path)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
