package cli

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	ledgerhttp "savemore/contexts/finance-core/star-ledger/transport/http"
)

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "balance [user-id]",
		Short:         "Show star and wallet balances",
		Long:          "Show a user's star and wallet balances. Defaults to the acting user.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := rootOpts.UserID
			if len(args) == 1 {
				userID = args[0]
			}
			if userID == "" {
				return fmt.Errorf("user id is required (argument or --user)")
			}
			var resp ledgerhttp.BalanceResponse
			if err := newLedgerAPI(rootOpts).call(cmd.Context(), "GET", "/v1/ledger/balances/"+url.PathEscape(userID), "", nil, &resp); err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format, resp, func(w io.Writer) {
				printf(w, "%s: %d stars, wallet %s\n", resp.UserID, resp.StarBalance, resp.WalletBalance)
			})
		},
	}
}

// CreditOptions holds flags for the credit command.
type CreditOptions struct {
	*RootOptions
	IdempotencyKey string
}

// NewCreditCommand creates the credit command.
func NewCreditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "credit <user-id> <stars>",
		Short: "Top up a user's stars (admin)",
		Long: `Top up a user's stars. Requires an admin caller.

Example:
  savemorectl credit viewer-1 50 --user ops --role admin`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("stars must be a positive integer, got %q", args[1])
			}
			key := opts.IdempotencyKey
			if key == "" {
				key = uuid.NewString()
			}
			var resp ledgerhttp.CreditStarsResponse
			req := ledgerhttp.CreditStarsRequest{UserID: args[0], Amount: amount}
			if err := newLedgerAPI(rootOpts).call(cmd.Context(), "POST", "/v1/ledger/admin/stars/credit", key, req, &resp); err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format, resp, func(w io.Writer) {
				printf(w, "credited %d stars to %s, balance %d\n", amount, args[0], resp.StarBalance)
			})
		},
	}

	cmd.Flags().StringVar(&opts.IdempotencyKey, "idempotency-key", "", "idempotency key (random when empty)")

	return cmd
}

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	ContentID string
	Kind      string
	MediaKind string
	Price     int64
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "publish",
		Short:         "Publish a post or story owned by the acting user",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ledgerhttp.PublishContentRequest{
				ContentID: opts.ContentID,
				Kind:      opts.Kind,
				MediaKind: opts.MediaKind,
				StarPrice: opts.Price,
			}
			var resp ledgerhttp.ContentResponse
			if err := newLedgerAPI(rootOpts).call(cmd.Context(), "POST", "/v1/ledger/content", "", req, &resp); err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format, resp, func(w io.Writer) {
				printf(w, "published %s %s (%s) for %d stars\n", resp.Kind, resp.ContentID, resp.MediaKind, resp.StarPrice)
				if resp.ExpiresAt != "" {
					printf(w, "expires at %s\n", resp.ExpiresAt)
				}
			})
		},
	}

	cmd.Flags().StringVar(&opts.ContentID, "id", "", "content id (generated when empty)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "post", "content kind (post|story)")
	cmd.Flags().StringVar(&opts.MediaKind, "media", "image", "media kind (image|video)")
	cmd.Flags().Int64Var(&opts.Price, "price", 0, "star price, 0 for free content")

	return cmd
}

// EntriesOptions holds flags for the entries command.
type EntriesOptions struct {
	*RootOptions
	Limit  int
	Offset int
}

// NewEntriesCommand creates the entries command.
func NewEntriesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntriesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "entries [user-id]",
		Short:         "List a user's ledger journal",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := rootOpts.UserID
			if len(args) == 1 {
				userID = args[0]
			}
			if userID == "" {
				return fmt.Errorf("user id is required (argument or --user)")
			}
			query := url.Values{}
			query.Set("limit", strconv.Itoa(opts.Limit))
			query.Set("offset", strconv.Itoa(opts.Offset))
			path := "/v1/ledger/users/" + url.PathEscape(userID) + "/entries?" + query.Encode()

			var resp ledgerhttp.ListEntriesResponse
			if err := newLedgerAPI(rootOpts).call(cmd.Context(), "GET", path, "", nil, &resp); err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format, resp, func(w io.Writer) {
				for _, entry := range resp.Items {
					printf(w, "%s  %-22s %+6d stars  %8s  %s\n", entry.CreatedAt, entry.Type, entry.StarDelta, entry.WalletDelta, entry.ReferenceID)
				}
				if len(resp.Items) == 0 {
					printf(w, "no entries\n")
				}
			})
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "entries to skip")

	return cmd
}
