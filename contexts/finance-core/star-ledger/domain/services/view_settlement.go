package services

import (
	"time"

	"github.com/shopspring/decimal"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
)

// ViewDecision is what a first-time view of an item resolves to. Charge is
// set only when stars must move; the record is written in every case.
type ViewDecision struct {
	Charge  bool
	Split   ViewSplit
	Record  entities.ViewRecord
	Outcome entities.SettlementOutcome
}

// EvaluateFirstView decides how a viewer's first recorded view of an item
// settles. Owner views and free items are recorded without any transfer;
// priced views with too few stars are recorded as insufficient.
func EvaluateFirstView(
	item entities.ContentItem,
	viewer entities.Account,
	policy SplitPolicy,
	viewID string,
	now time.Time,
) ViewDecision {
	record := entities.ViewRecord{
		ViewID:         viewID,
		ContentID:      item.ContentID,
		ViewerID:       viewer.UserID,
		OwnerID:        item.OwnerID,
		OwnerShare:     decimal.Zero,
		ViewerCashback: decimal.Zero,
		PlatformShare:  decimal.Zero,
		RecordedAt:     now.UTC(),
	}

	if item.IsFree() || item.IsOwnedBy(viewer.UserID) {
		return ViewDecision{
			Record:  record,
			Outcome: entities.SettlementOutcome{Success: true, ViewerEarn: decimal.Zero},
		}
	}

	if !viewer.HasStars(item.StarPrice) {
		record.InsufficientStars = true
		return ViewDecision{
			Record: record,
			Outcome: entities.SettlementOutcome{
				Success:           true,
				InsufficientStars: true,
				ViewerEarn:        decimal.Zero,
				AvailableStars:    viewer.StarBalance,
				RequiredStars:     item.StarPrice,
			},
		}
	}

	split := policy.SplitView(item.StarPrice)
	record.Charged = true
	record.StarsSpent = item.StarPrice
	record.OwnerShare = split.OwnerShare
	record.ViewerCashback = split.ViewerCashback
	record.PlatformShare = split.PlatformShare
	return ViewDecision{
		Charge: true,
		Split:  split,
		Record: record,
		Outcome: entities.SettlementOutcome{
			Success:    true,
			Charged:    true,
			StarsSpent: item.StarPrice,
			ViewerEarn: split.ViewerCashback,
		},
	}
}

// VoiceCreditCost converts a voice message duration into whole stars,
// rounding any started block up.
func VoiceCreditCost(durationSeconds int, secondsPerStar int) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	if secondsPerStar <= 0 {
		secondsPerStar = 1
	}
	return int64((durationSeconds + secondsPerStar - 1) / secondsPerStar)
}
