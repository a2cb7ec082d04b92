package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MrWong99/phonoscope/internal/config"
)

// newLogger writes text logs to stderr so that stdout stays free for
// reports and the MCP stdio transport.
func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║       phonoscope — startup summary    ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "G2P", providerLabel(cfg.Providers.G2P))
	printRow(w, "STT", providerLabel(cfg.Providers.STT))
	printRow(w, "Cost model", string(cfg.Assessment.CostModel))
	policy := cfg.Assessment.Policy
	if policy == "" {
		policy = "preceding_word"
	}
	printRow(w, "Policy", policy)
	printRow(w, "Store", string(cfg.Store.Backend))
	printRow(w, "Lexicons", fmt.Sprint(len(cfg.Assessment.Lexicons)))
	if cfg.Server.ListenAddr != "" {
		printRow(w, "Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	default:
		return e.Name
	}
}

func printRow(w io.Writer, key, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", key, value)
}
