package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	viewsettlement "savemore/contexts/community-experience/view-settlement"
	"savemore/contexts/community-experience/view-settlement/adapters/ledgerclient"
	"savemore/contexts/community-experience/view-settlement/domain/entities"
	"savemore/contexts/community-experience/view-settlement/domain/services"
	"savemore/contexts/community-experience/view-settlement/ports"
)

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	*RootOptions
	Timeout time.Duration

	newTicker ports.TickerFactory
}

// ViewResult is the json output of the view command.
type ViewResult struct {
	ContentID     string `json:"content_id"`
	Feedback      string `json:"feedback"`
	Title         string `json:"title"`
	Message       string `json:"message,omitempty"`
	StarBalance   int64  `json:"star_balance"`
	WalletBalance string `json:"wallet_balance"`
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "view <content-id>",
		Short: "Watch an item in a headless viewing session",
		Long: `Watch an item the way the app does: priced images settle after 30 seconds
on screen, priced videos when playback ends (immediately here), free or own
content at once. Owner, price and media kind are read from the ledger.

Example:
  savemorectl view post-1 --user viewer-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 45*time.Second, "give up after this long")

	return cmd
}

type headlessOutputs struct {
	mu       sync.Mutex
	w        io.Writer
	text     bool
	feedback chan services.Feedback
}

func (o *headlessOutputs) Notify(_ context.Context, _ string, feedback services.Feedback) {
	select {
	case o.feedback <- feedback:
	default:
	}
}

func (o *headlessOutputs) PublishState(itemID string, state entities.AttemptState, remaining int) {
	if !o.text {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if state == entities.AttemptEligiblePending && remaining > 0 {
		if remaining%10 == 0 || remaining <= 3 {
			printf(o.w, "%s: %ds until settlement\n", itemID, remaining)
		}
		return
	}
	printf(o.w, "%s: %s\n", itemID, state)
}

func runView(ctx context.Context, opts *ViewOptions, contentID string, w io.Writer) error {
	if opts.UserID == "" {
		return fmt.Errorf("--user is required to identify the viewer")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	client := ledgerclient.New(opts.LedgerURL, ledgerclient.Credentials{BearerToken: opts.Token, UserID: opts.UserID})
	module := viewsettlement.NewModule(viewsettlement.Dependencies{Ledger: client, NewTicker: opts.newTicker})
	outputs := &headlessOutputs{w: w, text: opts.Format == "text", feedback: make(chan services.Feedback, 1)}
	runtime := module.StartSession(ctx, opts.UserID, viewsettlement.Outputs{Notifier: outputs, States: outputs})
	defer runtime.Close()

	item, err := runtime.MountContent(ctx, contentID)
	if err != nil {
		return err
	}
	if err := runtime.Surface.Visible(contentID); err != nil {
		return err
	}
	if item.MediaKind == entities.MediaKindVideo {
		if err := runtime.Surface.PlaybackEnded(contentID); err != nil {
			return err
		}
	}

	var feedback services.Feedback
	select {
	case feedback = <-outputs.feedback:
	case <-ctx.Done():
		return fmt.Errorf("no settlement for %s: %w", contentID, ctx.Err())
	}

	result := ViewResult{ContentID: contentID, Feedback: string(feedback.Kind), Title: feedback.Title, Message: feedback.Message}
	if cached, ok := runtime.Balances.Get(); ok {
		result.StarBalance = cached.StarBalance
		result.WalletBalance = cached.WalletBalance.StringFixed(2)
	}
	if err := emit(w, opts.Format, result, func(w io.Writer) {
		outputs.mu.Lock()
		defer outputs.mu.Unlock()
		printf(w, "%s\n", feedback.Title)
		if feedback.Message != "" {
			printf(w, "%s\n", feedback.Message)
		}
		printf(w, "balance: %d stars, wallet %s\n", result.StarBalance, result.WalletBalance)
	}); err != nil {
		return err
	}
	if feedback.Kind == services.FeedbackTransportError {
		return fmt.Errorf("ledger unavailable, try again")
	}
	return nil
}
