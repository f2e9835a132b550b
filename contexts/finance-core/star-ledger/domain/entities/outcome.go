package entities

import "github.com/shopspring/decimal"

// SettlementOutcome is the result of one ProcessView call. Success=false is a
// declared business failure and always carries a Message.
type SettlementOutcome struct {
	Success           bool
	AlreadyViewed     bool
	Charged           bool
	InsufficientStars bool
	StarsSpent        int64
	ViewerEarn        decimal.Decimal
	AvailableStars    int64
	RequiredStars     int64
	Message           string
}

func DeclinedOutcome(message string) SettlementOutcome {
	return SettlementOutcome{Success: false, ViewerEarn: decimal.Zero, Message: message}
}

func AlreadyViewedOutcome() SettlementOutcome {
	return SettlementOutcome{Success: true, AlreadyViewed: true, ViewerEarn: decimal.Zero}
}
