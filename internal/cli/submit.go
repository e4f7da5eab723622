package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
	"github.com/juliansprt/VeriFactu/internal/store"
	"github.com/juliansprt/VeriFactu/internal/submission"
)

// SubmitSummary reports the outcome of one submitted record.
type SubmitSummary struct {
	File         string                  `json:"file"`
	Invoice      string                  `json:"invoice"`
	AttemptID    string                  `json:"attempt_id,omitempty"`
	State        lifecycle.State         `json:"state"`
	Outcome      string                  `json:"outcome,omitempty"`
	Reference    string                  `json:"reference,omitempty"`
	Attempts     int                     `json:"attempts"`
	FromFallback bool                    `json:"from_fallback,omitempty"`
	Verification string                  `json:"verification,omitempty"`
	Errors       []invoice.ResponseError `json:"errors,omitempty"`
	Failure      string                  `json:"failure,omitempty"`
	Kind         submission.Kind         `json:"kind,omitempty"`
	Compensated  bool                    `json:"compensated,omitempty"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <file|dir>...",
		Short: "Submit invoice documents to the authority",
		Long: `Submit invoice documents to the authority, one record at a time.

Records already accepted or rejected are refused by the stage guard.
Failed records are submitted again. A record left in flight resumes on the
chain entry it already owns; the authority is asked first whether it holds
the record, and it is sent again only if it does not.

Example:
  verifactu submit --config verifactu.yaml FA-2024-0001.yaml
  verifactu submit --format json invoices/`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runSubmit(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, loadErrs := LoadRecords(paths, LoadModeFailFast)
	if len(loadErrs) > 0 {
		return loadFailure(formatter, loadErrs)
	}

	a, err := openApp(opts, cmd.ErrOrStderr())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context(), a.logger)
	defer stop()

	var (
		summaries []SubmitSummary
		failed    int
	)
	for _, l := range loaded {
		if ctx.Err() != nil {
			break
		}
		summary, err := submitOne(ctx, a, l)
		if err != nil {
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				_ = formatter.Error(ErrCodeStore, err.Error(), nil)
				return err
			}
			failed++
		}
		summaries = append(summaries, summary)
	}

	if formatter.Format == "json" {
		if err := outputSubmitJSON(formatter, summaries); err != nil {
			return err
		}
	} else {
		for _, s := range summaries {
			writeSummary(formatter, s)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d invoice(s) not accepted", failed, len(loaded)))
	}
	if ctx.Err() != nil {
		return WrapExitError(ExitFailure, "interrupted", ctx.Err())
	}
	return nil
}

// outputSubmitJSON writes the summaries. When any invoice was not
// accepted the envelope carries the first failure.
func outputSubmitJSON(formatter *OutputFormatter, summaries []SubmitSummary) error {
	for _, s := range summaries {
		if s.Failure == "" {
			continue
		}
		return json.NewEncoder(formatter.Writer).Encode(CLIResponse{
			Status: "error",
			Data:   summaries,
			Error: &CLIError{
				Code:    submissionErrorCode(s.Kind),
				Message: fmt.Sprintf("%s: %s", s.Invoice, s.Failure),
			},
		})
	}
	return formatter.Success(summaries)
}

func submissionErrorCode(kind submission.Kind) string {
	switch kind {
	case submission.KindValidation:
		return ErrCodeValidation
	case submission.KindRejection:
		return ErrCodeRejected
	case submission.KindTransport:
		return ErrCodeTransport
	default:
		return ErrCodeSubmission
	}
}

// submitOne resumes the record from its persisted state and submits it.
// A store failure is returned as an ExitError; a submission failure is
// reported in the summary and returned as is.
func submitOne(ctx context.Context, a *app, l LoadedRecord) (SubmitSummary, error) {
	rec := l.Record
	summary := SubmitSummary{File: l.File, Invoice: rec.InvoiceID, State: rec.State}

	prior, err := a.store.State(ctx, rec.Key())
	switch {
	case err == nil:
		rec.State = prior.State
	case !errors.Is(err, store.ErrNotFound):
		return summary, WrapExitError(ExitCommandError, "failed to read record state", err)
	}

	res, err := a.submitter.Submit(ctx, rec)
	if res != nil {
		summary.AttemptID = res.AttemptID
		summary.State = res.State
		summary.Attempts = res.Attempts
		summary.FromFallback = res.FromFallback
		summary.Verification = res.Verification
		summary.Errors = res.Errors
		if res.Outcome != nil {
			summary.Outcome = res.Outcome.Kind.String()
			summary.Reference = res.Outcome.Reference
		}
	}
	if err != nil {
		summary.Failure = err.Error()
		summary.Kind = submission.KindOf(err)
		var se *submission.Error
		if errors.As(err, &se) {
			summary.Compensated = se.Compensated
		}
	}
	return summary, err
}

func writeSummary(f *OutputFormatter, s SubmitSummary) {
	mark := "✓"
	if s.Failure != "" {
		mark = "✗"
	}

	line := []string{mark, s.Invoice, s.State.String()}
	if s.Reference != "" {
		line = append(line, "reference="+s.Reference)
	}
	line = append(line, fmt.Sprintf("attempts=%d", s.Attempts))
	if s.FromFallback {
		line = append(line, "fallback")
	}
	if s.Compensated {
		line = append(line, "chain-compensated")
	}
	fmt.Fprintln(f.Writer, strings.Join(line, " "))

	for _, e := range s.Errors {
		if e.Code != "" {
			fmt.Fprintf(f.Writer, "  [%s] %s\n", e.Code, e.Description)
		} else {
			fmt.Fprintf(f.Writer, "  %s\n", e.Description)
		}
	}
	if s.Verification != "" {
		fmt.Fprintf(f.Writer, "  verify: %s\n", s.Verification)
	}
	if s.Failure != "" && f.Verbose {
		fmt.Fprintf(f.Writer, "  %s\n", s.Failure)
	}
}
