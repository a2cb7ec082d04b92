package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MrWong99/phonoscope/internal/app"
	"github.com/MrWong99/phonoscope/internal/report"
	"github.com/MrWong99/phonoscope/pkg/audio"
	"github.com/MrWong99/phonoscope/pkg/provider/stt"
)

// outputFlags are shared by commands that emit a report.
type outputFlags struct {
	format string
	out    string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "text", "output format: text, json or html")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the report to this file instead of stdout")
}

func (o *outputFlags) validate() error {
	switch o.format {
	case "text", "json", "html":
		return nil
	}
	return fmt.Errorf("--format %q is invalid; valid values: text, json, html", o.format)
}

// write renders doc to the configured destination.
func (o *outputFlags) write(stdout io.Writer, doc *report.Document) (err error) {
	w := stdout
	if o.out != "" {
		f, cerr := os.Create(o.out)
		if cerr != nil {
			return fmt.Errorf("create %s: %w", o.out, cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	switch o.format {
	case "json":
		return report.JSON(w, doc)
	case "html":
		return report.HTML(w, doc)
	default:
		return writeText(w, doc)
	}
}

func newAssessCmd(c *cli) *cobra.Command {
	var (
		out       outputFlags
		audioPath string
		reference string
		ipa       string
		speaker   string
		save      bool
	)
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess a recording (or an IPA transcription) against a reference text",
		Example: `  phonoscope assess --audio take1.wav --reference "the quick brown fox"
  phonoscope assess --reference "think" --ipa "sɪŋk" --format json
  phonoscope assess -c config.yaml --audio take1.wav --reference "zebra" --speaker ana --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			if reference == "" {
				return errors.New("--reference is required")
			}
			if (audioPath == "") == (ipa == "") {
				return errors.New("exactly one of --audio and --ipa is required")
			}

			ctx := cmd.Context()
			a, err := c.newApp(ctx, audioPath == "")
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			var res *app.Result
			if audioPath != "" {
				res, err = a.AssessAudio(ctx, app.AudioRequest{
					Path:      audioPath,
					Reference: reference,
					Speaker:   speaker,
					Save:      save,
				})
			} else {
				res, err = a.AssessText(ctx, reference, ipa)
				if err == nil && save {
					res.ID, err = a.Save(ctx, app.AudioRequest{Reference: reference, Speaker: speaker}, res)
				}
			}
			if err != nil {
				return err
			}
			if res.ID != uuid.Nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "saved assessment", res.ID)
			}
			return out.write(cmd.OutOrStdout(), res.Report)
		},
	}
	out.register(cmd)
	cmd.Flags().StringVarP(&audioPath, "audio", "a", "", "WAV recording to transcribe")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "text the speaker was asked to read")
	cmd.Flags().StringVar(&ipa, "ipa", "", "IPA transcription to assess instead of audio")
	cmd.Flags().StringVar(&speaker, "speaker", "", "speaker tag for the saved record")
	cmd.Flags().BoolVar(&save, "save", false, "store the result in the configured history store")
	return cmd
}

func newAlignCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "align REFERENCE_IPA HYPOTHESIS_IPA",
		Short: "Align two IPA strings and print the edit operations",
		Example: `  phonoscope align "zibrə" "zibə"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			sum, err := a.AlignIPA(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			ops := report.Ops(sum)
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(ops)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OP\tEXPECTED\tPRODUCED")
			for _, op := range ops {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", op.Op, deref(op.Expected), deref(op.Predicted))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(w, "\nS=%d I=%d D=%d  PER=%.3f  cost=%.2f\n",
				sum.Substitutions, sum.Insertions, sum.Deletions, sum.ErrorRate, sum.Cost)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the operations as JSON")
	return cmd
}

func newTranscribeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe FILE.wav",
		Short: "Transcribe a recording to IPA with the configured STT backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			clip, err := audio.Load(args[0])
			if err != nil {
				return err
			}
			tr, err := a.Transcribe(ctx, stt.FromClip(clip, args[0]))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tr)
		},
	}
}

// writeText prints a compact human-readable report.
func writeText(w io.Writer, doc *report.Document) error {
	m := doc.Metrics
	fmt.Fprintf(w, "Reference: %s\n", doc.Reference)
	if doc.Transcription != nil {
		fmt.Fprintf(w, "Heard:     %s\n", doc.Transcription.IPAText)
	}
	fmt.Fprintf(w, "PER %.1f%%  (S=%d I=%d D=%d over %d phonemes)\n\n",
		100*m.PhonemeErrorRate, m.Substitutions, m.Insertions, m.Deletions, m.RefPhonemes)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORD\tEXPECTED\tPRODUCED\tMISTAKES")
	for _, word := range doc.Words {
		status := "ok"
		if !word.Correct {
			status = describeOps(word.Ops)
		}
		fmt.Fprintf(tw, "%s\t/%s/\t/%s/\t%s\n", word.Word, word.ExpectedIPA, word.PredictedIPA, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(doc.Leading) > 0 {
		fmt.Fprintf(w, "\nBefore the first word: %s\n", describeOps(doc.Leading))
	}
	if len(doc.Mistakes) > 0 {
		fmt.Fprintln(w, "\nPatterns:")
		for _, h := range doc.Mistakes {
			fmt.Fprintf(w, "  %-28s %s→%s ×%d\n", h.Rule, h.Expected, h.Predicted, h.Count)
		}
	}
	return nil
}

func describeOps(ops []report.Op) string {
	var parts []string
	for _, op := range ops {
		switch op.Op {
		case report.OpSub:
			parts = append(parts, deref(op.Expected)+"→"+deref(op.Predicted))
		case report.OpIns:
			parts = append(parts, "+"+deref(op.Predicted))
		case report.OpDel:
			parts = append(parts, "-"+deref(op.Expected))
		}
	}
	return strings.Join(parts, " ")
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
