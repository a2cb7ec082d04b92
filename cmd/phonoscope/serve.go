package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/config"
	"github.com/MrWong99/phonoscope/internal/mcpserver"
	"github.com/MrWong99/phonoscope/internal/observe"
	"github.com/MrWong99/phonoscope/internal/server"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr        string
		noWatch     bool
		interval    time.Duration
		sampleRatio float64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API with /v1/assess, assessment history, health probes and
Prometheus metrics.

When started with --config the file is watched: log level and assessment
settings are applied live, other changes are logged and need a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Server.ListenAddr = addr
			}
			ctx := cmd.Context()

			tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
				ServiceVersion: version,
				SampleRatio:    sampleRatio,
			})
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}

			a, err := c.newApp(ctx, true, app.WithMetrics(tel.Metrics))
			if err != nil {
				return err
			}
			printStartupSummary(cmd.OutOrStdout(), c.cfg)

			watchCtx, stopWatch := context.WithCancel(ctx)
			defer stopWatch()
			if c.configPath != "" && !noWatch {
				w, err := config.NewWatcher(c.configPath, config.WithInterval(interval))
				if err != nil {
					slog.Warn("config watcher disabled", "err", err)
				} else {
					go w.Run(watchCtx, func(ch config.Change) { c.applyConfig(a, ch) })
				}
			}

			srv := &http.Server{
				Addr:              c.cfg.Server.ListenAddr,
				Handler:           server.New(a, server.WithMetricsHandler(tel.Handler)).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				slog.Info("listening", "addr", srv.Addr, "tls", c.cfg.Server.TLS != nil)
				if tls := c.cfg.Server.TLS; tls != nil {
					errCh <- srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
					return
				}
				errCh <- srv.ListenAndServe()
			}()

			var runErr error
			select {
			case <-ctx.Done():
				slog.Info("shutdown signal received, stopping…")
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					runErr = err
				}
			}

			// ── Graceful shutdown ─────────────────────────────────────────────
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
			if err := a.Close(shutdownCtx); err != nil {
				slog.Warn("app close error", "err", err)
			}
			if err := tel.Shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
			slog.Info("goodbye")
			return runErr
		},
	}
	cmd.Flags().StringVarP(&addr, "listen", "l", "", "override server.listen_addr")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch the config file for changes")
	cmd.Flags().DurationVar(&interval, "watch-interval", 5*time.Second, "config file polling interval")
	cmd.Flags().Float64Var(&sampleRatio, "trace-sample-ratio", 0, "fraction of new traces to sample (0 samples all)")
	return cmd
}

// applyConfig hot-applies the parts of a changed config that can change at
// runtime.
func (c *cli) applyConfig(a *app.App, ch config.Change) {
	d := ch.Diff
	if d.LogLevelChanged {
		c.level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AssessmentChanged {
		if err := a.Reload(ch.New.Assessment); err != nil {
			slog.Error("assessment settings not applied", "err", err)
		} else {
			slog.Info("assessment settings reloaded")
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assessment tools over MCP (stdio)",
		Long: `Serve assess_phonemes, align_phonemes, phonemize and list_mistake_rules
as MCP tools on stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			slog.Info("mcp server ready on stdio")
			if err := mcpserver.New(a, version).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
