package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/batch"
	"github.com/MrWong99/phonoscope/internal/report"
)

func newBatchCmd(c *cli) *cobra.Command {
	var (
		workers int
		outDir  string
		format  string
		save    bool
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:   "batch MANIFEST.csv",
		Short: "Assess every recording listed in a CSV manifest",
		Long: `Assess every recording listed in a CSV manifest with columns
file,reference[,speaker]. A header row and '#' comments are allowed, and
relative file paths are resolved against the manifest's directory.

A failed item is reported and does not stop the batch. The command exits
non-zero when any item failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "html" {
				return fmt.Errorf("--format %q is invalid; valid values: json, html", format)
			}
			jobs, err := batch.ReadManifestFile(args[0])
			if err != nil {
				return err
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}

			ctx := cmd.Context()
			a, err := c.newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			opts := []batch.Option{batch.WithMetrics(a.Metrics())}
			if !quiet {
				stderr := cmd.ErrOrStderr()
				opts = append(opts, batch.WithProgress(func(done, total int) {
					fmt.Fprintf(stderr, "\r%d/%d", done, total)
					if done == total {
						fmt.Fprintln(stderr)
					}
				}))
			}

			results, err := batch.Run(ctx, jobs, workers, func(ctx context.Context, job batch.Job) (*app.Result, error) {
				res, err := a.AssessAudio(ctx, app.AudioRequest{
					Path:      job.File,
					Reference: job.Reference,
					Speaker:   job.Speaker,
					Save:      save,
				})
				if err != nil {
					return nil, err
				}
				if outDir != "" {
					if err := writeReportFile(outDir, job, format, res.Report); err != nil {
						return nil, err
					}
				}
				return res, nil
			}, opts...)
			if err != nil {
				return err
			}

			printBatchSummary(cmd.OutOrStdout(), results)
			if failed := batch.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d items failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent assessments (default: number of CPUs)")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "write one report per item into this directory")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "report file format: json or html")
	cmd.Flags().BoolVar(&save, "save", false, "store every result in the configured history store")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

// writeReportFile writes the report of job as <line>-<file stem>.<format>.
func writeReportFile(dir string, job batch.Job, format string, doc *report.Document) (err error) {
	stem := strings.TrimSuffix(filepath.Base(job.File), filepath.Ext(job.File))
	path := filepath.Join(dir, fmt.Sprintf("%04d-%s.%s", job.Line, stem, format))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if format == "html" {
		return report.HTML(f, doc)
	}
	return report.JSON(f, doc)
}

func printBatchSummary(w io.Writer, results []batch.Result[*app.Result]) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tFILE\tSPEAKER\tPER\tS/I/D\tSTATUS")
	var (
		sum float64
		n   int
	)
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\t-\t-\t%v\n", r.Job.Line, r.Job.File, r.Job.Speaker, r.Err)
			continue
		}
		s := r.Value.Summary
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%d/%d/%d\tok\n",
			r.Job.Line, r.Job.File, r.Job.Speaker, s.ErrorRate, s.Substitutions, s.Insertions, s.Deletions)
		sum += s.ErrorRate
		n++
	}
	_ = tw.Flush()
	if n > 0 {
		fmt.Fprintf(w, "\nmean PER %.3f over %d of %d items\n", sum/float64(n), n, len(results))
	}
}
