// Command phonoscope assesses pronunciation: it aligns what a speaker said
// against what they were asked to say, phoneme by phoneme, and reports each
// substitution, insertion and deletion.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/config"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "phonoscope: %v\n", err)
		return 1
	}
	return 0
}

// cli holds state shared by all subcommands. It is filled in by the root
// command's PersistentPreRunE.
type cli struct {
	configPath string
	logLevel   string

	cfg   *config.Config
	level *slog.LevelVar
}

func newRootCmd() *cobra.Command {
	c := &cli{level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:   "phonoscope",
		Short: "Phoneme-level pronunciation assessment",
		Long: `phonoscope aligns a speaker's phonetic transcription against the expected
pronunciation of a reference text and classifies every mistake.

Pipeline:
  audio  → STT (whisper.cpp IPA model)  → timed phone symbols
  text   → G2P (espeak-ng, CMUdict)     → per-word phonemes
  both   → weighted edit-distance alignment → per-word mistake report`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the YAML configuration file (default: built-in defaults)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")

	root.AddCommand(
		newAssessCmd(c),
		newAlignCmd(c),
		newTranscribeCmd(c),
		newBatchCmd(c),
		newServeCmd(c),
		newMCPCmd(c),
		newDoctorCmd(c),
		newVersionCmd(),
	)
	return root
}

// init loads the configuration and installs the default logger.
func (c *cli) init() error {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		cfg, err = config.Load(c.configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", c.configPath)
			}
			return err
		}
	}
	if c.logLevel != "" {
		lvl := config.LogLevel(c.logLevel)
		if !lvl.IsValid() {
			return fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", c.logLevel)
		}
		cfg.Server.LogLevel = lvl
	}
	c.cfg = cfg

	c.level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(c.level))
	return nil
}

// newApp builds providers and the application. With lazySTT set, a
// misconfigured STT backend only disables audio features.
func (c *cli) newApp(ctx context.Context, lazySTT bool, opts ...app.Option) (*app.App, error) {
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)

	providers, err := app.BuildProviders(c.cfg, reg, lazySTT)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, c.cfg, providers, opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "phonoscope", version)
		},
	}
}
