package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/moodscale/internal/domain/instrument"
	"github.com/okian/moodscale/internal/domain/scoring"
	"github.com/okian/moodscale/internal/domain/types"
)

// Exit codes.
const (
	exitFailure  = 1
	exitRejected = 2
)

const (
	formatText = "text"
	formatJSON = "json"
)

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// rejected maps caller errors to exit code 2 and everything else to 1.
func rejected(err error) error {
	switch {
	case errors.Is(err, instrument.ErrUnknownInstrument),
		errors.Is(err, scoring.ErrIncompleteResponses),
		errors.Is(err, scoring.ErrUnknownItem),
		errors.Is(err, scoring.ErrValueOutOfRange),
		errors.Is(err, scoring.ErrScoreOutOfRange):
		return exitError(exitRejected, "rejected: %v", err)
	default:
		return exitError(exitFailure, "error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "moodscale-cli",
		Short:         "Score clinical self-report questionnaires",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newInstrumentsCmd(), newScoreCmd(), newInterpretCmd())
	return root
}

func newInstrumentsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "instruments",
		Short: "List the built-in instruments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := instrument.Default().All()
			out := make([]types.InstrumentSummary, len(all))
			for i, in := range all {
				out[i] = types.SummaryOf(in)
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tITEMS\tRANGE\tNAME")
			for _, s := range out {
				fmt.Fprintf(tw, "%s\t%d\t%d-%d\t%s\n", s.Code, s.Items, s.MinPossible, s.MaxPossible, s.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")
	return cmd
}

type scoreFlags struct {
	answers []string
	file    string
	locale  string
	format  string
}

func newScoreCmd() *cobra.Command {
	f := &scoreFlags{}
	cmd := &cobra.Command{
		Use:   "score <instrument>",
		Short: "Score a response set and print its band",
		Long: "Answers are given as --answer id=value (repeatable) and/or a YAML or JSON\n" +
			"file mapping item ids to values. Flags override the file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), cmd.OutOrStdout(), args[0], f)
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVar(&f.answers, "answer", nil, "Answer as id=value (may be repeated)")
	flags.StringVar(&f.file, "file", "", "YAML or JSON file of answers")
	flags.StringVar(&f.locale, "locale", "", "Label locale (default: instrument locale)")
	flags.StringVar(&f.format, "format", formatText, "Output format: text or json")
	return cmd
}

func runScore(ctx context.Context, w io.Writer, code string, f *scoreFlags) error {
	responses := map[string]int{}
	if f.file != "" {
		if err := loadAnswers(f.file, responses); err != nil {
			return exitError(exitFailure, "failed to load answers: %v", err)
		}
	}
	for _, a := range f.answers {
		id, v, err := parseAnswer(a)
		if err != nil {
			return exitError(exitRejected, "rejected: %v", err)
		}
		responses[id] = v
	}

	res, err := scoring.NewRegistryScorer().Score(ctx, scoring.Input{
		Instrument: code,
		Responses:  responses,
		Locale:     f.locale,
	})
	if err != nil {
		return rejected(err)
	}
	if f.format == formatJSON {
		return writeJSON(w, res)
	}
	_, err = fmt.Fprintf(w, "%s total %d (%d-%d): %s [%s]\n",
		res.Instrument, res.Total, res.MinPossible, res.MaxPossible, res.Label, res.BandKey)
	return err
}

func newInterpretCmd() *cobra.Command {
	var locale, format string
	cmd := &cobra.Command{
		Use:   "interpret <instrument> <score>",
		Short: "Print the band a total score falls into",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.Atoi(args[1])
			if err != nil {
				return exitError(exitRejected, "rejected: score %q is not an integer", args[1])
			}
			it, err := scoring.NewRegistryScorer().Interpret(cmd.Context(), args[0], score, locale)
			if err != nil {
				return rejected(err)
			}
			in, _ := instrument.Default().Lookup(args[0])
			view := types.InterpretationOf(in.Code, it)
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %s [%s, %d-%d]\n",
				view.Instrument, view.Score, view.Label, view.Band, view.Low, view.High)
			return err
		},
	}
	cmd.Flags().StringVar(&locale, "locale", "", "Label locale (default: instrument locale)")
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")
	return cmd
}

func loadAnswers(path string, into map[string]int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]*int
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	// A blank or null answer stays missing and is rejected by the scorer.
	for k, v := range raw {
		if v != nil {
			into[k] = *v
		}
	}
	return nil
}

func parseAnswer(s string) (string, int, error) {
	id, val, ok := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", 0, fmt.Errorf("answer %q must be id=value", s)
	}
	v, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return "", 0, fmt.Errorf("answer %q: value is not an integer", s)
	}
	return id, v, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
