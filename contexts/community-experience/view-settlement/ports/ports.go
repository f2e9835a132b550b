package ports

import (
	"context"
	"time"

	"savemore/contexts/community-experience/view-settlement/domain/entities"
	"savemore/contexts/community-experience/view-settlement/domain/services"
)

// Ledger is the authoritative balance service. ProcessView is idempotent per
// (content, viewer) pair; a returned error means the outcome is unknown.
type Ledger interface {
	ProcessView(ctx context.Context, contentID string, viewerID string) (entities.SettlementOutcome, error)
	GetBalance(ctx context.Context, userID string) (entities.Balance, error)
}

// ContentCatalog returns the ledger's record of a content item, looked up on
// behalf of viewerID. Owner, price and media kind used for eligibility come
// from here. Unregistered content yields ErrUnknownContent.
type ContentCatalog interface {
	GetContent(ctx context.Context, contentID string, viewerID string) (entities.ContentItem, error)
}

// Session identifies the authenticated viewer of one viewing session.
type Session interface {
	ViewerID() (string, bool)
}

// BalanceCache holds the session's last known balance. Writes are
// last-write-wins.
type BalanceCache interface {
	Get() (entities.Balance, bool)
	Set(balance entities.Balance)
}

type Notifier interface {
	Notify(ctx context.Context, itemID string, feedback services.Feedback)
}

// StatePublisher receives presentation updates for mounted items.
// remainingSeconds is meaningful only while an image countdown runs.
type StatePublisher interface {
	PublishState(itemID string, state entities.AttemptState, remainingSeconds int)
}

// BalanceUpdates delivers out-of-band balance changes, pushed or polled.
// Subscribe blocks until ctx is cancelled.
type BalanceUpdates interface {
	Subscribe(ctx context.Context, userID string, onUpdate func(entities.Balance)) error
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(interval time.Duration) Ticker

type Clock interface {
	Now() time.Time
}

// SettlementMetrics records settlement results; result is a feedback kind.
type SettlementMetrics interface {
	ObserveSettlement(result string, elapsed time.Duration)
	ObserveEligibilityFired(trigger string)
}
