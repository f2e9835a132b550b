package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryTypeViewCharge         EntryType = "view_charge"
	EntryTypeViewOwnerShare     EntryType = "view_owner_share"
	EntryTypeViewCashback       EntryType = "view_cashback"
	EntryTypePlatformShare      EntryType = "platform_share"
	EntryTypeStarsSpent         EntryType = "stars_spent"
	EntryTypeVoiceCredits       EntryType = "voice_credits"
	EntryTypeGroupFee           EntryType = "group_fee"
	EntryTypeGroupFeeOwnerShare EntryType = "group_fee_owner_share"
	EntryTypeStarTopUp          EntryType = "star_topup"
)

// LedgerEntry is one append-only journal line. Star and wallet deltas are
// signed from the account holder's perspective.
type LedgerEntry struct {
	EntryID     string
	UserID      string
	Type        EntryType
	StarDelta   int64
	WalletDelta decimal.Decimal
	ReferenceID string
	CreatedAt   time.Time
}
