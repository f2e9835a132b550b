package services

import (
	"fmt"

	"savemore/contexts/community-experience/view-settlement/domain/entities"
)

type FeedbackKind string

const (
	FeedbackCharged        FeedbackKind = "charged"
	FeedbackInsufficient   FeedbackKind = "insufficient_stars"
	FeedbackAlreadyViewed  FeedbackKind = "already_viewed"
	FeedbackFree           FeedbackKind = "free"
	FeedbackDeclined       FeedbackKind = "declined"
	FeedbackTransportError FeedbackKind = "transport_error"
)

// Feedback is one user-facing notification about a settlement.
type Feedback struct {
	Kind    FeedbackKind
	Title   string
	Message string
}

// FeedbackForOutcome picks the notification for a ledger response. Declared
// failures surface the ledger's message verbatim.
func FeedbackForOutcome(outcome entities.SettlementOutcome) Feedback {
	if !outcome.Success {
		return Feedback{
			Kind:    FeedbackDeclined,
			Title:   "This view could not be processed",
			Message: outcome.Message,
		}
	}
	switch {
	case outcome.InsufficientStars:
		return Feedback{
			Kind:  FeedbackInsufficient,
			Title: "Watched, but you did not earn",
			Message: fmt.Sprintf("You have %d stars; this content needs %d.",
				outcome.AvailableStars, outcome.RequiredStars),
		}
	case outcome.Charged:
		return Feedback{
			Kind:  FeedbackCharged,
			Title: "View settled",
			Message: fmt.Sprintf("%d stars deducted, %s cashback credited to your wallet.",
				outcome.StarsSpent, outcome.ViewerEarn.StringFixed(2)),
		}
	case outcome.AlreadyViewed:
		return Feedback{
			Kind:    FeedbackAlreadyViewed,
			Title:   "Already viewed",
			Message: "You have already viewed this content and cannot earn from it again.",
		}
	default:
		return Feedback{
			Kind:    FeedbackFree,
			Title:   "Viewed",
			Message: "This content is free to view.",
		}
	}
}

func TransportFailureFeedback() Feedback {
	return Feedback{
		Kind:    FeedbackTransportError,
		Title:   "Something went wrong",
		Message: "We could not process this view. Please try again.",
	}
}
