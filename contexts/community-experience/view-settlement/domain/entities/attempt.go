package entities

import "time"

type AttemptState string

const (
	AttemptUnseen          AttemptState = "unseen"
	AttemptEligiblePending AttemptState = "eligible_pending"
	AttemptSettling        AttemptState = "settling"
	AttemptSettled         AttemptState = "settled"
)

// ViewAttempt is the per-session presentation state of one mounted item.
// Settled is terminal; only a transport failure moves settling backwards.
type ViewAttempt struct {
	ItemID    string
	State     AttemptState
	Processed bool
	Outcome   *SettlementOutcome
	UpdatedAt time.Time
}

func NewViewAttempt(itemID string, now time.Time) ViewAttempt {
	return ViewAttempt{ItemID: itemID, State: AttemptUnseen, UpdatedAt: now}
}

func (a *ViewAttempt) BecomeVisible(now time.Time) bool {
	if a.State != AttemptUnseen {
		return false
	}
	a.State = AttemptEligiblePending
	a.UpdatedAt = now
	return true
}

// Hide drops a pending attempt back to unseen. Settling and settled attempts
// are unaffected.
func (a *ViewAttempt) Hide(now time.Time) bool {
	if a.State != AttemptEligiblePending {
		return false
	}
	a.State = AttemptUnseen
	a.UpdatedAt = now
	return true
}

func (a *ViewAttempt) BeginSettling(now time.Time) bool {
	if a.State == AttemptSettled || a.State == AttemptSettling {
		return false
	}
	a.State = AttemptSettling
	a.UpdatedAt = now
	return true
}

func (a *ViewAttempt) Settle(outcome *SettlementOutcome, now time.Time) {
	a.State = AttemptSettled
	a.Processed = true
	a.Outcome = outcome
	a.UpdatedAt = now
}

func (a *ViewAttempt) FailTransport(now time.Time) {
	if a.State != AttemptSettling {
		return
	}
	a.State = AttemptEligiblePending
	a.UpdatedAt = now
}
