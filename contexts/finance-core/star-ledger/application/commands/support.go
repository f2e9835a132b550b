package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/ports"
)

const (
	defaultIdempotencyTTL    = 7 * 24 * time.Hour
	defaultPlatformAccountID = "platform"
	moduleName               = "finance-core/star-ledger"
)

func resolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

func resolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultIdempotencyTTL
	}
	return ttl
}

func resolvePlatformAccount(id string) string {
	if strings.TrimSpace(id) == "" {
		return defaultPlatformAccountID
	}
	return strings.TrimSpace(id)
}

func hashPayload(payload map[string]any) string {
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// lookupReplay resolves an idempotency key inside the current transaction.
// A stored record with the same request hash replays its response; a
// different hash is a conflict.
func lookupReplay[T any](
	ctx context.Context,
	tx ports.LedgerTx,
	key string,
	requestHash string,
	now time.Time,
) (T, bool, error) {
	var replayed T
	record, found, err := tx.GetIdempotency(ctx, key, now)
	if err != nil || !found {
		return replayed, false, err
	}
	if record.RequestHash != requestHash {
		return replayed, false, domainerrors.ErrIdempotencyConflict
	}
	if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
		return replayed, false, err
	}
	return replayed, true, nil
}

func storeReplay(
	ctx context.Context,
	tx ports.LedgerTx,
	key string,
	requestHash string,
	response any,
	expiresAt time.Time,
) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return tx.PutIdempotency(ctx, ports.IdempotencyRecord{
		Key:             key,
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       expiresAt,
	})
}

func newEntry(
	ctx context.Context,
	ids ports.IDGenerator,
	userID string,
	entryType entities.EntryType,
	starDelta int64,
	walletDelta decimal.Decimal,
	referenceID string,
	now time.Time,
) (entities.LedgerEntry, error) {
	entryID, err := ids.NewID(ctx)
	if err != nil {
		return entities.LedgerEntry{}, err
	}
	return entities.LedgerEntry{
		EntryID:     entryID,
		UserID:      userID,
		Type:        entryType,
		StarDelta:   starDelta,
		WalletDelta: walletDelta,
		ReferenceID: referenceID,
		CreatedAt:   now.UTC(),
	}, nil
}

func affectedUsers(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
