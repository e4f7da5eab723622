package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/juliansprt/VeriFactu/internal/aeat"
	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/resilience"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Seller     string
	SellerName string
	Company    int
	Date       string
}

// QueryResult is the classified reply of a status query.
type QueryResult struct {
	Invoice string                  `json:"invoice"`
	Outcome string                  `json:"outcome"`
	Status  string                  `json:"status,omitempty"`
	Errors  []invoice.ResponseError `json:"errors,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <invoice-id>",
		Short: "Ask the authority for the status of an invoice",
		Long: `Ask the authority for the registration status of an invoice. This is
the same query the submission fallback runs. Local state is not changed.

Example:
  verifactu query --seller B12345678 --name "ACME SL" --company 1 --date 2024-11-15 FA-2024-0001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seller, "seller", "", "seller tax id (required)")
	cmd.Flags().StringVar(&opts.SellerName, "name", "", "seller name (required)")
	cmd.Flags().IntVar(&opts.Company, "company", 0, "company id whose certificate signs the query (required)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "issue date, yyyy-mm-dd (required)")
	for _, name := range []string{"seller", "name", "company", "date"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runQuery(opts *QueryOptions, invoiceID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	issued, err := time.Parse("2006-01-02", opts.Date)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, "invalid --date", err)
	}

	a, err := openApp(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer a.Close()

	key := resilience.QueryKey{
		SellerID:   opts.Seller,
		CompanyID:  opts.Company,
		SellerName: opts.SellerName,
		InvoiceID:  invoiceID,
		IssueDate:  issued,
	}
	formatter.VerboseLog("Querying %s for %s/%s", a.cfg.Endpoint, key.SellerID, key.InvoiceID)

	body, err := a.querier.QueryInvoice(cmd.Context(), key)
	if err != nil {
		code := ErrCodeTransport
		var fault *aeat.FaultError
		if errors.As(err, &fault) {
			code = ErrCodeRejected
		}
		return formatter.Fail(ExitFailure, code, "status query failed", err)
	}

	outcome := a.classifier.Classify(body)
	result := QueryResult{
		Invoice: invoiceID,
		Outcome: outcome.Kind.String(),
		Status:  outcome.Status,
		Errors:  outcome.Errors,
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s: %s", invoiceID, result.Outcome)
	if result.Status != "" {
		fmt.Fprintf(formatter.Writer, " (%s)", result.Status)
	}
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  [%s] %s\n", e.Code, e.Description)
	}
	return nil
}
