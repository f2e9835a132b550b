package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// Store is an in-memory ledger implementing the repository, reader, outbox
// and dedup ports. Transactions are serialized and applied to a copy of the
// state that replaces the live state only when fn succeeds.
// It is intended for tests and local development wiring.
type Store struct {
	mu    sync.RWMutex
	state state
	now   func() time.Time
}

type state struct {
	content     map[string]entities.ContentItem
	views       map[string]entities.ViewRecord
	accounts    map[string]entities.Account
	entries     []entities.LedgerEntry
	groups      map[string]entities.Group
	memberships map[string]entities.GroupMembership
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRow
	dedup       map[string]dedupEntry
}

type outboxRow struct {
	ports.OutboxMessage
	SentAt *time.Time
}

type dedupEntry struct {
	PayloadHash string
	ExpiresAt   time.Time
}

func NewStore() *Store {
	return &Store{
		state: state{
			content:     make(map[string]entities.ContentItem),
			views:       make(map[string]entities.ViewRecord),
			accounts:    make(map[string]entities.Account),
			groups:      make(map[string]entities.Group),
			memberships: make(map[string]entities.GroupMembership),
			idempotency: make(map[string]ports.IdempotencyRecord),
			dedup:       make(map[string]dedupEntry),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) clone() state {
	next := state{
		content:     make(map[string]entities.ContentItem, len(s.state.content)),
		views:       make(map[string]entities.ViewRecord, len(s.state.views)),
		accounts:    make(map[string]entities.Account, len(s.state.accounts)),
		entries:     append([]entities.LedgerEntry(nil), s.state.entries...),
		groups:      make(map[string]entities.Group, len(s.state.groups)),
		memberships: make(map[string]entities.GroupMembership, len(s.state.memberships)),
		idempotency: make(map[string]ports.IdempotencyRecord, len(s.state.idempotency)),
		outbox:      append([]outboxRow(nil), s.state.outbox...),
		dedup:       s.state.dedup,
	}
	for k, v := range s.state.content {
		next.content[k] = v
	}
	for k, v := range s.state.views {
		next.views[k] = v
	}
	for k, v := range s.state.accounts {
		next.accounts[k] = v
	}
	for k, v := range s.state.groups {
		next.groups[k] = v
	}
	for k, v := range s.state.memberships {
		next.memberships[k] = v
	}
	for k, v := range s.state.idempotency {
		next.idempotency[k] = v
	}
	return next
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, state: s.clone(), locked: make(map[string]*entities.Account)}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

type memoryTx struct {
	store  *Store
	state  state
	locked map[string]*entities.Account
}

func viewKey(contentID string, viewerID string) string {
	return contentID + "\x00" + viewerID
}

func (t *memoryTx) GetContent(_ context.Context, contentID string) (entities.ContentItem, error) {
	item, ok := t.state.content[strings.TrimSpace(contentID)]
	if !ok {
		return entities.ContentItem{}, domainerrors.ErrContentNotFound
	}
	return item, nil
}

func (t *memoryTx) CreateContent(_ context.Context, item entities.ContentItem) error {
	if _, exists := t.state.content[item.ContentID]; exists {
		return domainerrors.ErrContentExists
	}
	t.state.content[item.ContentID] = item
	return nil
}

func (t *memoryTx) GetViewRecord(_ context.Context, contentID string, viewerID string) (entities.ViewRecord, bool, error) {
	record, ok := t.state.views[viewKey(contentID, viewerID)]
	return record, ok, nil
}

func (t *memoryTx) InsertViewRecord(_ context.Context, record entities.ViewRecord) error {
	key := viewKey(record.ContentID, record.ViewerID)
	if _, exists := t.state.views[key]; exists {
		return domainerrors.ErrDuplicateView
	}
	t.state.views[key] = record
	return nil
}

func (t *memoryTx) LockAccounts(_ context.Context, userIDs ...string) (map[string]*entities.Account, error) {
	out := make(map[string]*entities.Account, len(userIDs))
	for _, raw := range userIDs {
		userID := strings.TrimSpace(raw)
		if locked, ok := t.locked[userID]; ok {
			out[userID] = locked
			continue
		}
		account, ok := t.state.accounts[userID]
		if !ok {
			created, err := entities.NewAccount(userID, t.store.now())
			if err != nil {
				return nil, err
			}
			account = created
		}
		t.locked[userID] = &account
		out[userID] = &account
	}
	return out, nil
}

func (t *memoryTx) SaveAccounts(_ context.Context, accounts ...*entities.Account) error {
	for _, account := range accounts {
		if account == nil {
			continue
		}
		if account.StarBalance < 0 || account.WalletBalance.IsNegative() {
			return domainerrors.ErrRepositoryInvariant
		}
		t.state.accounts[account.UserID] = *account
	}
	return nil
}

func (t *memoryTx) AppendEntries(_ context.Context, entries ...entities.LedgerEntry) error {
	t.state.entries = append(t.state.entries, entries...)
	return nil
}

func (t *memoryTx) GetGroup(_ context.Context, groupID string) (entities.Group, error) {
	group, ok := t.state.groups[strings.TrimSpace(groupID)]
	if !ok {
		return entities.Group{}, domainerrors.ErrGroupNotFound
	}
	return group, nil
}

func (t *memoryTx) CreateGroup(_ context.Context, group entities.Group) error {
	if _, exists := t.state.groups[group.GroupID]; exists {
		return domainerrors.ErrGroupExists
	}
	t.state.groups[group.GroupID] = group
	return nil
}

func (t *memoryTx) GetMembership(_ context.Context, groupID string, userID string) (entities.GroupMembership, bool, error) {
	membership, ok := t.state.memberships[viewKey(groupID, userID)]
	return membership, ok, nil
}

func (t *memoryTx) InsertMembership(_ context.Context, membership entities.GroupMembership) error {
	key := viewKey(membership.GroupID, membership.UserID)
	if _, exists := t.state.memberships[key]; exists {
		return domainerrors.ErrDuplicateMembership
	}
	t.state.memberships[key] = membership
	return nil
}

func (t *memoryTx) GetIdempotency(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	record, ok := t.state.idempotency[key]
	if !ok || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (t *memoryTx) PutIdempotency(_ context.Context, record ports.IdempotencyRecord) error {
	t.state.idempotency[record.Key] = record
	return nil
}

func (t *memoryTx) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	t.state.outbox = append(t.state.outbox, outboxRow{
		OutboxMessage: ports.OutboxMessage{
			OutboxID:     uuid.NewString(),
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt,
		},
	})
	return nil
}

func (s *Store) GetAccount(_ context.Context, userID string) (entities.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.state.accounts[strings.TrimSpace(userID)]
	if !ok {
		return entities.Account{}, domainerrors.ErrAccountNotFound
	}
	return account, nil
}

// ListEntries returns the user's journal newest first.
func (s *Store) ListEntries(_ context.Context, userID string, limit int, offset int) ([]entities.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID = strings.TrimSpace(userID)
	matched := make([]entities.LedgerEntry, 0)
	for i := len(s.state.entries) - 1; i >= 0; i-- {
		if s.state.entries[i].UserID == userID {
			matched = append(matched, s.state.entries[i])
		}
	}
	if offset >= len(matched) {
		return []entities.LedgerEntry{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.OutboxMessage, 0)
	for _, row := range s.state.outbox {
		if row.SentAt != nil {
			continue
		}
		out = append(out, row.OutboxMessage)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.outbox {
		if s.state.outbox[i].OutboxID == outboxID {
			ts := sentAt.UTC()
			s.state.outbox[i].SentAt = &ts
			return nil
		}
	}
	return domainerrors.ErrRepositoryInvariant
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.state.dedup[eventID]; ok && now.Before(existing.ExpiresAt) {
		return true, nil
	}
	s.state.dedup[eventID] = dedupEntry{PayloadHash: payloadHash, ExpiresAt: expiresAt.UTC()}
	return false, nil
}

// Entries returns every journal line in append order.
func (s *Store) Entries() []entities.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.LedgerEntry(nil), s.state.entries...)
}

// ViewCount reports how many view records exist for an item.
func (s *Store) ViewCount(contentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, record := range s.state.views {
		if record.ContentID == contentID {
			count++
		}
	}
	return count
}

func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) NewID(context.Context) (string, error) {
	return uuid.NewString(), nil
}
