package balance

import (
	"context"
	"log/slog"
	"time"

	application "savemore/contexts/community-experience/view-settlement/application"
	"savemore/contexts/community-experience/view-settlement/application/eligibility"
	"savemore/contexts/community-experience/view-settlement/domain/entities"
	"savemore/contexts/community-experience/view-settlement/ports"
)

const defaultPollInterval = 30 * time.Second

// Poller re-reads the balance from the ledger on a fixed interval and reports
// it only when it changed.
type Poller struct {
	Ledger    ports.Ledger
	Interval  time.Duration
	NewTicker ports.TickerFactory
	Logger    *slog.Logger
}

func (p Poller) Subscribe(ctx context.Context, userID string, onUpdate func(entities.Balance)) error {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	newTicker := p.NewTicker
	if newTicker == nil {
		newTicker = eligibility.NewRealTicker
	}
	ticker := newTicker(interval)
	defer ticker.Stop()

	var last entities.Balance
	seen := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
		}
		current, err := p.Ledger.GetBalance(ctx, userID)
		if err != nil {
			application.ResolveLogger(p.Logger).Debug("balance poll failed",
				"event", "balance_poll_failed",
				"module", "community-experience/view-settlement",
				"layer", "adapter",
				"user_id", userID,
				"error", err.Error(),
			)
			continue
		}
		if seen && current.StarBalance == last.StarBalance && current.WalletBalance.Equal(last.WalletBalance) {
			continue
		}
		last, seen = current, true
		onUpdate(current)
	}
}

// Combined runs several update sources for the same user until ctx ends.
type Combined []ports.BalanceUpdates

func (c Combined) Subscribe(ctx context.Context, userID string, onUpdate func(entities.Balance)) error {
	if len(c) == 0 {
		<-ctx.Done()
		return nil
	}
	errs := make(chan error, len(c))
	for _, source := range c {
		go func(source ports.BalanceUpdates) {
			errs <- source.Subscribe(ctx, userID, onUpdate)
		}(source)
	}
	var first error
	for range c {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}
