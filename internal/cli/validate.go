package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juliansprt/VeriFactu/internal/validate"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool               `json:"valid"`
	Records []RecordViolations `json:"records"`
}

// RecordViolations lists the business-rule violations of one record.
type RecordViolations struct {
	File    string   `json:"file"`
	Index   int      `json:"index"`
	Invoice string   `json:"invoice"`
	Errors  []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Check invoice documents against the business rules",
		Long: `Check invoice documents against the business rules without chaining
or sending them. Nothing is written to the database.

Example:
  verifactu validate invoices/
  verifactu validate --format json FA-2024-0001.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, loadErrs := LoadRecords(paths, LoadModeCollectAll)
	if len(loadErrs) > 0 {
		return loadFailure(formatter, loadErrs)
	}
	formatter.VerboseLog("Loaded %d invoice document(s)", len(loaded))

	validator := validate.New()
	result := ValidationResult{Valid: true}
	for _, l := range loaded {
		formatter.VerboseLog("Validating %s", l.Record.Key())
		violations := validator.GetErrors(l.Record)
		if len(violations) > 0 {
			result.Valid = false
		}
		result.Records = append(result.Records, RecordViolations{
			File:    l.File,
			Index:   l.Index,
			Invoice: l.Record.InvoiceID,
			Errors:  violations,
		})
	}

	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d invoice(s) valid\n", len(result.Records))
	return nil
}

// outputValidationErrors outputs the violations of every invalid record.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	invalid := 0
	var first string
	for _, r := range result.Records {
		if len(r.Errors) > 0 {
			invalid++
			if first == "" {
				first = r.Errors[0]
			}
		}
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeValidation,
				Message: first,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d invoice(s)", invalid))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, r := range result.Records {
		if len(r.Errors) == 0 {
			continue
		}
		fmt.Fprintf(formatter.Writer, "%s [%d] %s\n", r.File, r.Index, r.Invoice)
		for _, e := range r.Errors {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", ErrCodeValidation, e)
		}
		fmt.Fprintln(formatter.Writer)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d invoice(s)", invalid))
}
