package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/phonoscope/internal/config"
	"github.com/MrWong99/phonoscope/internal/health"
	"github.com/MrWong99/phonoscope/pkg/provider/g2p/espeak"
)

// probeWord is phonemized to check that the G2P backend answers.
const probeWord = "hello"

type doctorCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func newDoctorCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured backends are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			w := cmd.OutOrStdout()
			printStartupSummary(w, c.cfg)
			fmt.Fprintln(w)

			checks := []doctorCheck{
				{"stt endpoint", func(ctx context.Context) (string, error) { return checkSTTEntry(ctx, c.cfg.Providers.STT) }},
			}
			if c.cfg.Providers.G2P.Name == "espeak" {
				checks = append(checks, doctorCheck{"espeak binary", func(context.Context) (string, error) {
					bin := config.OptString(c.cfg.Providers.G2P.Options, "binary")
					if bin == "" {
						return espeak.New().Check()
					}
					return espeak.New(espeak.WithBinary(bin)).Check()
				}})
			}

			failed := runChecks(ctx, w, checks)

			a, err := c.newApp(ctx, true)
			if err != nil {
				printStatus(w, false, "application", err.Error())
				return fmt.Errorf("%d checks failed", failed+1)
			}
			defer a.Close(context.Background())
			printStatus(w, true, "application", "providers built, store opened")

			appChecks := []doctorCheck{
				{"g2p " + c.cfg.Providers.G2P.Name, func(ctx context.Context) (string, error) {
					words, err := a.Phonemize(ctx, probeWord)
					if err != nil {
						return "", err
					}
					if len(words) == 0 || len(words[0].Phonemes) == 0 {
						return "", fmt.Errorf("no phonemes for %q", probeWord)
					}
					return fmt.Sprintf("%s → %v", probeWord, words[0].Phonemes), nil
				}},
			}
			failed += runChecks(ctx, w, appChecks)

			rep := health.New(a.Checkers()...).Run(ctx)
			for _, name := range slices.Sorted(maps.Keys(rep.Checks)) {
				res := rep.Checks[name]
				if name == "stt" && c.cfg.Providers.STT.Name == "" {
					continue
				}
				if res.Status != health.StatusOK {
					failed++
					printStatus(w, false, name, res.Error)
					continue
				}
				printStatus(w, true, name, fmt.Sprintf("ok (%.1f ms)", res.LatencyMS))
			}

			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			fmt.Fprintln(w, "\nall checks passed")
			return nil
		},
	}
}

func runChecks(ctx context.Context, w io.Writer, checks []doctorCheck) int {
	failed := 0
	for _, ch := range checks {
		msg, err := ch.run(ctx)
		if err != nil {
			failed++
			printStatus(w, false, ch.name, err.Error())
			continue
		}
		printStatus(w, true, ch.name, msg)
	}
	return failed
}

func printStatus(w io.Writer, ok bool, name, msg string) {
	mark := "[+]"
	if !ok {
		mark = "[-]"
	}
	fmt.Fprintf(w, "%s %-16s %s\n", mark, name, msg)
}

// checkSTTEntry verifies that the configured STT backend can be reached
// without loading it: the server answers for "whisper", the model file
// exists for "whisper-native".
func checkSTTEntry(ctx context.Context, e config.ProviderEntry) (string, error) {
	switch e.Name {
	case "":
		return "not configured, audio assessment disabled", nil
	case "whisper":
		if e.BaseURL == "" {
			return "", fmt.Errorf("base_url is required")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL, nil)
		if err != nil {
			return "", err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		resp.Body.Close()
		return fmt.Sprintf("%s answered %d", e.BaseURL, resp.StatusCode), nil
	case "whisper-native":
		path := e.Model
		if path == "" {
			path = config.OptString(e.Options, "model_path")
		}
		fi, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (%d MiB)", path, fi.Size()>>20), nil
	default:
		return "", fmt.Errorf("unknown provider %q; valid: %v", e.Name, config.ValidProviderNames["stt"])
	}
}
