package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
	"github.com/juliansprt/VeriFactu/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Seller  string
	Company int
}

// StatusResult is the persisted state of one record.
type StatusResult struct {
	*store.StateRecord
	Verification string `json:"verification,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <invoice-id>",
		Short: "Show the persisted state of an invoice",
		Long: `Show the persisted state of an invoice, its attached errors and, for
accepted records, the verification URL.

Example:
  verifactu status --seller B12345678 --company 1 FA-2024-0001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seller, "seller", "", "seller tax id (required)")
	cmd.Flags().IntVar(&opts.Company, "company", 0, "company id (required)")
	_ = cmd.MarkFlagRequired("seller")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}

func runStatus(opts *StatusOptions, invoiceID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	a, err := openApp(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	key := invoice.Key{SellerID: opts.Seller, CompanyID: opts.Company, InvoiceID: invoiceID}

	rec, err := a.store.State(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no state recorded for %s", key), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read state", err)
	}

	result := StatusResult{StateRecord: rec}
	if rec.State == lifecycle.Valid {
		payload, err := a.store.Verification(ctx, key.CompanyID, key.InvoiceID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read verification", err)
		}
		result.Verification = payload
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s: %s\n", key, rec.State)
	if rec.Message != "" {
		fmt.Fprintf(formatter.Writer, "  message: %s\n", rec.Message)
	}
	fmt.Fprintf(formatter.Writer, "  updated: %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	for _, e := range rec.Errors {
		fmt.Fprintf(formatter.Writer, "  [%s] %s\n", e.Code, e.Description)
	}
	if result.Verification != "" {
		fmt.Fprintf(formatter.Writer, "  verify: %s\n", result.Verification)
	}
	return nil
}
