package postgresadapter

import (
	"time"

	"github.com/shopspring/decimal"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	"savemore/contexts/finance-core/star-ledger/ports"
)

type contentModel struct {
	ContentID string     `gorm:"column:content_id;primaryKey"`
	OwnerID   string     `gorm:"column:owner_id;index"`
	Kind      string     `gorm:"column:kind"`
	MediaKind string     `gorm:"column:media_kind"`
	StarPrice int64      `gorm:"column:star_price"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
}

func (contentModel) TableName() string {
	return "ledger_content_items"
}

func contentModelFromEntity(item entities.ContentItem) contentModel {
	row := contentModel{
		ContentID: item.ContentID,
		OwnerID:   item.OwnerID,
		Kind:      string(item.Kind),
		MediaKind: string(item.MediaKind),
		StarPrice: item.StarPrice,
		CreatedAt: item.CreatedAt.UTC(),
	}
	if item.ExpiresAt != nil {
		expiresAt := item.ExpiresAt.UTC()
		row.ExpiresAt = &expiresAt
	}
	return row
}

func (m contentModel) toEntity() entities.ContentItem {
	item := entities.ContentItem{
		ContentID: m.ContentID,
		OwnerID:   m.OwnerID,
		Kind:      entities.ContentKind(m.Kind),
		MediaKind: entities.MediaKind(m.MediaKind),
		StarPrice: m.StarPrice,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.ExpiresAt != nil {
		expiresAt := m.ExpiresAt.UTC()
		item.ExpiresAt = &expiresAt
	}
	return item
}

type viewRecordModel struct {
	ViewID            string          `gorm:"column:view_id;primaryKey"`
	ContentID         string          `gorm:"column:content_id;uniqueIndex:ledger_view_records_content_viewer"`
	ViewerID          string          `gorm:"column:viewer_id;uniqueIndex:ledger_view_records_content_viewer"`
	OwnerID           string          `gorm:"column:owner_id"`
	Charged           bool            `gorm:"column:charged"`
	InsufficientStars bool            `gorm:"column:insufficient_stars"`
	StarsSpent        int64           `gorm:"column:stars_spent"`
	OwnerShare        decimal.Decimal `gorm:"column:owner_share;type:numeric(20,2)"`
	ViewerCashback    decimal.Decimal `gorm:"column:viewer_cashback;type:numeric(20,2)"`
	PlatformShare     decimal.Decimal `gorm:"column:platform_share;type:numeric(20,2)"`
	RecordedAt        time.Time       `gorm:"column:recorded_at"`
}

func (viewRecordModel) TableName() string {
	return "ledger_view_records"
}

func viewRecordModelFromEntity(record entities.ViewRecord) viewRecordModel {
	return viewRecordModel{
		ViewID:            record.ViewID,
		ContentID:         record.ContentID,
		ViewerID:          record.ViewerID,
		OwnerID:           record.OwnerID,
		Charged:           record.Charged,
		InsufficientStars: record.InsufficientStars,
		StarsSpent:        record.StarsSpent,
		OwnerShare:        record.OwnerShare,
		ViewerCashback:    record.ViewerCashback,
		PlatformShare:     record.PlatformShare,
		RecordedAt:        record.RecordedAt.UTC(),
	}
}

func (m viewRecordModel) toEntity() entities.ViewRecord {
	return entities.ViewRecord{
		ViewID:            m.ViewID,
		ContentID:         m.ContentID,
		ViewerID:          m.ViewerID,
		OwnerID:           m.OwnerID,
		Charged:           m.Charged,
		InsufficientStars: m.InsufficientStars,
		StarsSpent:        m.StarsSpent,
		OwnerShare:        m.OwnerShare,
		ViewerCashback:    m.ViewerCashback,
		PlatformShare:     m.PlatformShare,
		RecordedAt:        m.RecordedAt.UTC(),
	}
}

type accountModel struct {
	UserID        string          `gorm:"column:user_id;primaryKey"`
	StarBalance   int64           `gorm:"column:star_balance;not null"`
	WalletBalance decimal.Decimal `gorm:"column:wallet_balance;type:numeric(20,2);not null"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (accountModel) TableName() string {
	return "ledger_accounts"
}

func (m accountModel) toEntity() entities.Account {
	return entities.Account{
		UserID:        m.UserID,
		StarBalance:   m.StarBalance,
		WalletBalance: m.WalletBalance.Round(entities.WalletScale),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

type entryModel struct {
	EntryID     string          `gorm:"column:entry_id;primaryKey"`
	UserID      string          `gorm:"column:user_id;index:ledger_entries_user_created,priority:1"`
	Type        string          `gorm:"column:entry_type"`
	StarDelta   int64           `gorm:"column:star_delta"`
	WalletDelta decimal.Decimal `gorm:"column:wallet_delta;type:numeric(20,2)"`
	ReferenceID string          `gorm:"column:reference_id"`
	CreatedAt   time.Time       `gorm:"column:created_at;index:ledger_entries_user_created,priority:2"`
}

func (entryModel) TableName() string {
	return "ledger_entries"
}

func entryModelFromEntity(entry entities.LedgerEntry) entryModel {
	return entryModel{
		EntryID:     entry.EntryID,
		UserID:      entry.UserID,
		Type:        string(entry.Type),
		StarDelta:   entry.StarDelta,
		WalletDelta: entry.WalletDelta,
		ReferenceID: entry.ReferenceID,
		CreatedAt:   entry.CreatedAt.UTC(),
	}
}

func (m entryModel) toEntity() entities.LedgerEntry {
	return entities.LedgerEntry{
		EntryID:     m.EntryID,
		UserID:      m.UserID,
		Type:        entities.EntryType(m.Type),
		StarDelta:   m.StarDelta,
		WalletDelta: m.WalletDelta.Round(entities.WalletScale),
		ReferenceID: m.ReferenceID,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type groupModel struct {
	GroupID   string    `gorm:"column:group_id;primaryKey"`
	OwnerID   string    `gorm:"column:owner_id;index"`
	FeeStars  int64     `gorm:"column:fee_stars;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (groupModel) TableName() string {
	return "ledger_groups"
}

func (m groupModel) toEntity() entities.Group {
	return entities.Group{
		GroupID:   m.GroupID,
		OwnerID:   m.OwnerID,
		FeeStars:  m.FeeStars,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type membershipModel struct {
	GroupID  string    `gorm:"column:group_id;primaryKey"`
	UserID   string    `gorm:"column:user_id;primaryKey"`
	OwnerID  string    `gorm:"column:owner_id"`
	FeePaid  int64     `gorm:"column:fee_paid"`
	JoinedAt time.Time `gorm:"column:joined_at"`
}

func (membershipModel) TableName() string {
	return "ledger_group_memberships"
}

func (m membershipModel) toEntity() entities.GroupMembership {
	return entities.GroupMembership{
		GroupID:  m.GroupID,
		UserID:   m.UserID,
		OwnerID:  m.OwnerID,
		FeePaid:  m.FeePaid,
		JoinedAt: m.JoinedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "ledger_idempotency"
}

func (m idempotencyModel) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:             m.Key,
		RequestHash:     m.RequestHash,
		ResponsePayload: append([]byte(nil), m.ResponsePayload...),
		ExpiresAt:       m.ExpiresAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "ledger_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "ledger_event_dedup"
}
