package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// ViewRecord is the durable "this viewer has watched this item" marker.
// There is at most one per (content, viewer) pair.
type ViewRecord struct {
	ViewID            string
	ContentID         string
	ViewerID          string
	OwnerID           string
	Charged           bool
	InsufficientStars bool
	StarsSpent        int64
	OwnerShare        decimal.Decimal
	ViewerCashback    decimal.Decimal
	PlatformShare     decimal.Decimal
	RecordedAt        time.Time
}
