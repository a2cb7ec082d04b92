package resilience

import (
	"context"
	"errors"
	"testing"

	g2pmock "github.com/MrWong99/phonoscope/pkg/provider/g2p/mock"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
	sttmock "github.com/MrWong99/phonoscope/pkg/provider/stt/mock"
	"github.com/MrWong99/phonoscope/pkg/types"
)

func TestSTT_Failover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		primaryErr    error
		secondaryErr  error
		wantModel     string
		wantErr       error
		wantSecondary int
	}{
		{name: "primary answers", wantModel: "primary-model"},
		{name: "fails over", primaryErr: errBackend, wantModel: "secondary-model", wantSecondary: 1},
		{name: "all fail", primaryErr: errBackend, secondaryErr: errBackend, wantErr: ErrAllFailed, wantSecondary: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			primary := &sttmock.Provider{BackendName: "whisper", Err: tt.primaryErr, Result: &types.Transcription{Model: "primary-model"}}
			secondary := &sttmock.Provider{BackendName: "whisper-native", Err: tt.secondaryErr, Result: &types.Transcription{Model: "secondary-model"}}
			s := NewSTT(BreakerConfig{MaxFailures: 3}, primary, secondary)

			tr, err := s.Transcribe(context.Background(), stt.Audio{Path: "take.wav"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("Transcribe: %v", err)
				}
				if tr.Model != tt.wantModel {
					t.Errorf("Model = %q, want %q", tr.Model, tt.wantModel)
				}
			}
			if len(secondary.Calls) != tt.wantSecondary {
				t.Errorf("secondary calls = %d, want %d", len(secondary.Calls), tt.wantSecondary)
			}
			if s.Name() != "whisper" {
				t.Errorf("Name() = %q, want primary name", s.Name())
			}
		})
	}
}

func TestSTT_OpenCircuitSkipsPrimary(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{BackendName: "whisper", Err: errBackend}
	secondary := &sttmock.Provider{BackendName: "whisper"}
	s := NewSTT(BreakerConfig{MaxFailures: 1}, primary, secondary)

	for range 3 {
		if _, err := s.Transcribe(context.Background(), stt.Audio{}); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
	}
	if len(primary.Calls) != 1 {
		t.Errorf("primary calls = %d, want 1 before the circuit opened", len(primary.Calls))
	}
	states := s.States()
	if states["whisper"] != StateOpen || states["whisper#2"] != StateClosed {
		t.Errorf("States() = %v, want whisper open and whisper#2 closed", states)
	}
}

func TestSTT_CancelledContextStopsChain(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{}
	secondary := &sttmock.Provider{}
	s := NewSTT(BreakerConfig{}, primary, secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Transcribe(ctx, stt.Audio{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(secondary.Calls) != 0 {
		t.Errorf("secondary was tried after cancellation")
	}
}

type closingSTT struct {
	sttmock.Provider
	closed bool
}

func (c *closingSTT) Close() error { c.closed = true; return nil }

func TestSTT_Close(t *testing.T) {
	t.Parallel()
	native := &closingSTT{}
	s := NewSTT(BreakerConfig{}, &sttmock.Provider{}, native)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !native.closed {
		t.Error("closable backend was not closed")
	}
}

func TestG2P_Failover(t *testing.T) {
	t.Parallel()
	espeak := &g2pmock.Provider{BackendName: "espeak", Err: errBackend}
	dict := &g2pmock.Provider{BackendName: "cmudict", Entries: map[string][]string{"zoo": {"z", "u"}}}
	p := NewG2P(BreakerConfig{}, espeak, dict)

	got, err := p.Phonemize(context.Background(), []string{"zoo"})
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}
	if len(got) != 1 || len(got[0].Phonemes) != 2 {
		t.Errorf("Phonemize = %+v, want z u from the dictionary", got)
	}
	if p.Name() != "espeak" {
		t.Errorf("Name() = %q, want espeak", p.Name())
	}
	if st := p.States()["cmudict"]; st != StateClosed {
		t.Errorf("cmudict state = %v, want closed", st)
	}
}
