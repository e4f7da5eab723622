package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/juliansprt/VeriFactu/internal/chain"
	"github.com/juliansprt/VeriFactu/internal/store"
)

// ChainVerifyResult reports a chain verification.
type ChainVerifyResult struct {
	Seller  string `json:"seller"`
	Entries int    `json:"entries"`
	Intact  bool   `json:"intact"`
}

// NewChainCommand creates the chain command group.
func NewChainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Inspect per-seller fingerprint chains",
	}

	cmd.AddCommand(newChainVerifyCommand(rootOpts))
	cmd.AddCommand(newChainListCommand(rootOpts))

	return cmd
}

func newChainVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <seller-id>",
		Short: "Recompute every fingerprint of a seller's chain",
		Long: `Recompute every fingerprint of a seller's chain and check positions and
back-links. Exits with code 1 if the chain is broken.

Example:
  verifactu chain verify B12345678`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainVerify(rootOpts, args[0], cmd)
		},
	}
}

func newChainListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <seller-id>",
		Short:         "List the entries of a seller's chain",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainList(rootOpts, args[0], cmd)
		},
	}
}

func runChainVerify(opts *RootOptions, sellerID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	a, err := openApp(opts, cmd.ErrOrStderr())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer a.Close()

	n, err := a.ledger.Verify(cmd.Context(), sellerID)
	var broken *chain.BrokenChainError
	if errors.As(err, &broken) {
		_ = formatter.Error(ErrCodeChain, broken.Error(), map[string]any{
			"seller":   broken.SellerID,
			"position": broken.Position,
		})
		return WrapExitError(ExitFailure, "chain verification failed", broken)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read chain", err)
	}

	result := ChainVerifyResult{Seller: sellerID, Entries: n, Intact: true}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ chain %s intact (%d entries)\n", sellerID, n)
	return nil
}

func runChainList(opts *RootOptions, sellerID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	a, err := openApp(opts, cmd.ErrOrStderr())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer a.Close()

	entries, err := a.store.ChainEntries(cmd.Context(), sellerID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read chain", err)
	}
	if entries == nil {
		entries = []store.ChainEntry{}
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintf(formatter.Writer, "chain %s is empty\n", sellerID)
		return nil
	}
	for _, e := range entries {
		confirmed := " "
		if e.Confirmed {
			confirmed = "✓"
		}
		fmt.Fprintf(formatter.Writer, "%s %4d %-20s %s %s\n", confirmed, e.ID, e.InvoiceID, e.GeneratedAt.Format(time.RFC3339), e.Fingerprint)
	}
	return nil
}
