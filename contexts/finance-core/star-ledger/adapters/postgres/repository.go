package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/ports"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

// Repository is the relational ledger. Every use case runs inside one
// database transaction; accounts are row-locked in user-id order.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the ledger tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&contentModel{},
		&viewRecordModel{},
		&accountModel{},
		&entryModel{},
		&groupModel{},
		&membershipModel{},
		&idempotencyModel{},
		&outboxModel{},
		&eventDedupModel{},
	)
}

func (r *Repository) WithinTx(ctx context.Context, fn func(tx ports.LedgerTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) GetContent(ctx context.Context, contentID string) (entities.ContentItem, error) {
	var row contentModel
	err := t.db.WithContext(ctx).
		Where("content_id = ?", strings.TrimSpace(contentID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ContentItem{}, domainerrors.ErrContentNotFound
		}
		return entities.ContentItem{}, err
	}
	return row.toEntity(), nil
}

func (t *gormTx) CreateContent(ctx context.Context, item entities.ContentItem) error {
	row := contentModelFromEntity(item)
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrContentExists
		}
		return err
	}
	return nil
}

func (t *gormTx) GetGroup(ctx context.Context, groupID string) (entities.Group, error) {
	var row groupModel
	err := t.db.WithContext(ctx).
		Where("group_id = ?", strings.TrimSpace(groupID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Group{}, domainerrors.ErrGroupNotFound
		}
		return entities.Group{}, err
	}
	return row.toEntity(), nil
}

func (t *gormTx) CreateGroup(ctx context.Context, group entities.Group) error {
	row := groupModel{
		GroupID:   group.GroupID,
		OwnerID:   group.OwnerID,
		FeeStars:  group.FeeStars,
		CreatedAt: group.CreatedAt.UTC(),
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrGroupExists
		}
		return err
	}
	return nil
}

func (t *gormTx) GetViewRecord(ctx context.Context, contentID string, viewerID string) (entities.ViewRecord, bool, error) {
	var row viewRecordModel
	err := t.db.WithContext(ctx).
		Where("content_id = ? AND viewer_id = ?", contentID, viewerID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ViewRecord{}, false, nil
		}
		return entities.ViewRecord{}, false, err
	}
	return row.toEntity(), true, nil
}

func (t *gormTx) InsertViewRecord(ctx context.Context, record entities.ViewRecord) error {
	row := viewRecordModelFromEntity(record)
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateView
		}
		return err
	}
	return nil
}

func (t *gormTx) LockAccounts(ctx context.Context, userIDs ...string) (map[string]*entities.Account, error) {
	ids := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, raw := range userIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, domainerrors.ErrInvalidInput
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now().UTC()
	seed := make([]accountModel, 0, len(ids))
	for _, id := range ids {
		seed = append(seed, accountModel{UserID: id, WalletBalance: decimal.Zero, UpdatedAt: now})
	}
	if len(seed) > 0 {
		if err := t.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).
			Create(&seed).
			Error; err != nil {
			return nil, err
		}
	}

	var rows []accountModel
	if err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ?", ids).
		Order("user_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	if len(rows) != len(ids) {
		return nil, domainerrors.ErrRepositoryInvariant
	}

	out := make(map[string]*entities.Account, len(rows))
	for _, row := range rows {
		account := row.toEntity()
		out[account.UserID] = &account
	}
	return out, nil
}

func (t *gormTx) SaveAccounts(ctx context.Context, accounts ...*entities.Account) error {
	for _, account := range accounts {
		if account == nil {
			continue
		}
		if account.StarBalance < 0 || account.WalletBalance.IsNegative() {
			return domainerrors.ErrRepositoryInvariant
		}
		result := t.db.WithContext(ctx).
			Model(&accountModel{}).
			Where("user_id = ?", account.UserID).
			Updates(map[string]any{
				"star_balance":   account.StarBalance,
				"wallet_balance": account.WalletBalance.Round(entities.WalletScale),
				"updated_at":     account.UpdatedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrAccountNotFound
		}
	}
	return nil
}

func (t *gormTx) AppendEntries(ctx context.Context, entries ...entities.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]entryModel, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, entryModelFromEntity(entry))
	}
	if err := t.db.WithContext(ctx).Create(&rows).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariant
		}
		return err
	}
	return nil
}

func (t *gormTx) GetMembership(ctx context.Context, groupID string, userID string) (entities.GroupMembership, bool, error) {
	var row membershipModel
	err := t.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.GroupMembership{}, false, nil
		}
		return entities.GroupMembership{}, false, err
	}
	return row.toEntity(), true, nil
}

func (t *gormTx) InsertMembership(ctx context.Context, membership entities.GroupMembership) error {
	row := membershipModel{
		GroupID:  membership.GroupID,
		UserID:   membership.UserID,
		OwnerID:  membership.OwnerID,
		FeePaid:  membership.FeePaid,
		JoinedAt: membership.JoinedAt.UTC(),
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateMembership
		}
		return err
	}
	return nil
}

func (t *gormTx) GetIdempotency(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := t.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return row.toPort(), true, nil
}

func (t *gormTx) PutIdempotency(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             record.Key,
		RequestHash:     record.RequestHash,
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"request_hash", "response_payload", "expires_at"}),
		}).
		Create(&row).
		Error
}

func (t *gormTx) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariant
		}
		return err
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, userID string) (entities.Account, error) {
	var row accountModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Account{}, domainerrors.ErrAccountNotFound
		}
		return entities.Account{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListEntries(ctx context.Context, userID string, limit int, offset int) ([]entities.LedgerEntry, error) {
	var rows []entryModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Order("entry_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariant
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     eventID,
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return false, createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", eventID).
		First(&existing).
		Error; err != nil {
		return false, err
	}
	if existing.PayloadHash != payloadHash {
		return false, domainerrors.ErrIdempotencyConflict
	}
	return true, nil
}

// isUniqueViolation recognises duplicate-key failures from both the postgres
// driver and the embedded sqlite driver.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
