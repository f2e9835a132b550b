// Package cli implements savemorectl, the operator command line for the
// star ledger HTTP API.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LedgerURL string
	UserID    string
	Role      string
	Token     string
	Format    string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for savemorectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "savemorectl",
		Short: "Operate the SaveMore star ledger",
		Long:  "Inspect balances, top up stars, publish content and drive headless viewing sessions against the star ledger API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LedgerURL, "ledger-url", envOr("LEDGER_BASE_URL", "http://localhost:8080"), "star ledger base URL")
	cmd.PersistentFlags().StringVarP(&opts.UserID, "user", "u", os.Getenv("SAVEMORE_USER"), "acting user id (sent as X-User-Id when no token is set)")
	cmd.PersistentFlags().StringVar(&opts.Role, "role", "", "acting role for header authentication")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("SAVEMORE_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewCreditCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewEntriesCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))

	return cmd
}

func envOr(name string, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
