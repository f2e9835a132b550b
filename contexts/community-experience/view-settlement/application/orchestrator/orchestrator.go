package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	application "savemore/contexts/community-experience/view-settlement/application"
	"savemore/contexts/community-experience/view-settlement/domain/entities"
	domainerrors "savemore/contexts/community-experience/view-settlement/domain/errors"
	"savemore/contexts/community-experience/view-settlement/domain/services"
	"savemore/contexts/community-experience/view-settlement/ports"
)

const moduleName = "community-experience/view-settlement"

type Dependencies struct {
	Session  ports.Session
	Ledger   ports.Ledger
	Balances ports.BalanceCache
	Notifier ports.Notifier
	Metrics  ports.SettlementMetrics
	Clock    ports.Clock
	Logger   *slog.Logger
}

// Orchestrator turns an eligible view into one ledger call per item and
// session. Items are marked processed on any ledger answer; only transport
// failures leave them retryable.
type Orchestrator struct {
	deps Dependencies

	mu        sync.Mutex
	processed map[string]struct{}
	inFlight  map[string]struct{}
}

func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{
		deps:      deps,
		processed: make(map[string]struct{}),
		inFlight:  make(map[string]struct{}),
	}
}

// SettleView settles the session viewer's view of itemID. Guard rejections
// return a sentinel error without touching the ledger.
func (o *Orchestrator) SettleView(ctx context.Context, itemID string) (entities.SettlementOutcome, error) {
	logger := application.ResolveLogger(o.deps.Logger)
	viewerID, ok := o.viewer()
	if !ok {
		return entities.SettlementOutcome{}, domainerrors.ErrUnauthenticated
	}
	if err := o.begin(itemID); err != nil {
		logger.Debug("settlement skipped",
			"event", "view_settlement_skipped",
			"module", moduleName,
			"layer", "application",
			"item_id", itemID,
			"reason", err.Error(),
		)
		return entities.SettlementOutcome{}, err
	}
	defer o.end(itemID)

	started := o.now()
	outcome, err := o.deps.Ledger.ProcessView(ctx, itemID, viewerID)
	if err != nil {
		feedback := services.TransportFailureFeedback()
		o.notify(ctx, itemID, feedback)
		o.observe(feedback.Kind, started)
		logger.Warn("settlement transport failure",
			"event", "view_settlement_transport_failed",
			"module", moduleName,
			"layer", "application",
			"item_id", itemID,
			"viewer_id", viewerID,
			"error", err.Error(),
		)
		return entities.SettlementOutcome{}, fmt.Errorf("%w: %v", domainerrors.ErrLedgerUnavailable, err)
	}

	o.markProcessed(itemID)
	if outcome.Success {
		o.RefreshBalance(ctx)
	}
	feedback := services.FeedbackForOutcome(outcome)
	o.notify(ctx, itemID, feedback)
	o.observe(feedback.Kind, started)

	logger.Info("view settled",
		"event", "view_settlement_completed",
		"module", moduleName,
		"layer", "application",
		"item_id", itemID,
		"viewer_id", viewerID,
		"result", string(feedback.Kind),
		"stars_spent", outcome.StarsSpent,
	)
	return outcome, nil
}

// RefreshBalance re-reads the viewer's balance into the cache. Failures keep
// the previous cached value.
func (o *Orchestrator) RefreshBalance(ctx context.Context) {
	viewerID, ok := o.viewer()
	if !ok || o.deps.Balances == nil {
		return
	}
	balance, err := o.deps.Ledger.GetBalance(ctx, viewerID)
	if err != nil {
		application.ResolveLogger(o.deps.Logger).Warn("balance refresh failed",
			"event", "view_settlement_balance_refresh_failed",
			"module", moduleName,
			"layer", "application",
			"viewer_id", viewerID,
			"error", err.Error(),
		)
		return
	}
	o.deps.Balances.Set(balance)
}

func (o *Orchestrator) IsProcessed(itemID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.processed[itemID]
	return ok
}

func (o *Orchestrator) viewer() (string, bool) {
	if o.deps.Session == nil {
		return "", false
	}
	viewerID, ok := o.deps.Session.ViewerID()
	if !ok || viewerID == "" {
		return "", false
	}
	return viewerID, true
}

func (o *Orchestrator) begin(itemID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.processed[itemID]; ok {
		return domainerrors.ErrAlreadyProcessed
	}
	if _, ok := o.inFlight[itemID]; ok {
		return domainerrors.ErrSettlementInFlight
	}
	o.inFlight[itemID] = struct{}{}
	return nil
}

func (o *Orchestrator) end(itemID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, itemID)
}

func (o *Orchestrator) markProcessed(itemID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processed[itemID] = struct{}{}
}

func (o *Orchestrator) notify(ctx context.Context, itemID string, feedback services.Feedback) {
	if o.deps.Notifier != nil {
		o.deps.Notifier.Notify(ctx, itemID, feedback)
	}
}

func (o *Orchestrator) observe(kind services.FeedbackKind, started time.Time) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveSettlement(string(kind), o.now().Sub(started))
	}
}

func (o *Orchestrator) now() time.Time {
	if o.deps.Clock != nil {
		return o.deps.Clock.Now()
	}
	return time.Now()
}

// IsGuardRejection reports whether err came from a session guard rather than
// the ledger.
func IsGuardRejection(err error) bool {
	return errors.Is(err, domainerrors.ErrUnauthenticated) ||
		errors.Is(err, domainerrors.ErrAlreadyProcessed) ||
		errors.Is(err, domainerrors.ErrSettlementInFlight)
}
