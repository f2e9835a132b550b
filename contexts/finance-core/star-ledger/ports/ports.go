package ports

import (
	"context"
	"time"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	contractsv1 "savemore/contracts/gen/events/v1"
)

// LedgerRepository owns the transaction boundary. Every balance movement is
// applied through a LedgerTx so that accounts, journal entries, view records
// and outbox rows commit together or not at all.
type LedgerRepository interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the unit of work handed to use cases. LockAccounts returns the
// requested accounts (zero-balance accounts are created on first use) and
// holds them until the transaction ends.
type LedgerTx interface {
	GetContent(ctx context.Context, contentID string) (entities.ContentItem, error)
	CreateContent(ctx context.Context, item entities.ContentItem) error
	GetViewRecord(ctx context.Context, contentID string, viewerID string) (entities.ViewRecord, bool, error)
	InsertViewRecord(ctx context.Context, record entities.ViewRecord) error
	LockAccounts(ctx context.Context, userIDs ...string) (map[string]*entities.Account, error)
	SaveAccounts(ctx context.Context, accounts ...*entities.Account) error
	AppendEntries(ctx context.Context, entries ...entities.LedgerEntry) error
	GetGroup(ctx context.Context, groupID string) (entities.Group, error)
	CreateGroup(ctx context.Context, group entities.Group) error
	GetMembership(ctx context.Context, groupID string, userID string) (entities.GroupMembership, bool, error)
	InsertMembership(ctx context.Context, membership entities.GroupMembership) error
	GetIdempotency(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutIdempotency(ctx context.Context, record IdempotencyRecord) error
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// AccountReader serves read-only balance and journal queries outside a
// settlement transaction.
type AccountReader interface {
	GetAccount(ctx context.Context, userID string) (entities.Account, error)
	ListEntries(ctx context.Context, userID string, limit int, offset int) ([]entities.LedgerEntry, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

const EventSchemaVersion = contractsv1.CurrentSchemaVersion

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventDedupStore provides idempotent processing guarantees for consumed events.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// BalanceSnapshot is the payload pushed to live sessions after a balance moves.
type BalanceSnapshot struct {
	UserID        string `json:"user_id"`
	StarBalance   int64  `json:"star_balance"`
	WalletBalance string `json:"wallet_balance"`
	UpdatedAt     string `json:"updated_at"`
}

// BalancePublisher fans balance snapshots out to connected viewers.
type BalancePublisher interface {
	PublishBalance(ctx context.Context, snapshot BalanceSnapshot) error
}
