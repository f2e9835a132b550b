package entities

import (
	"strings"
	"time"

	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
)

// Group is a paid community registered by its owner. The entry fee charged
// on join is always the registered one.
type Group struct {
	GroupID   string
	OwnerID   string
	FeeStars  int64
	CreatedAt time.Time
}

func NewGroup(groupID string, ownerID string, feeStars int64, createdAt time.Time) (Group, error) {
	groupID = strings.TrimSpace(groupID)
	ownerID = strings.TrimSpace(ownerID)
	if groupID == "" || ownerID == "" || feeStars < 0 {
		return Group{}, domainerrors.ErrInvalidInput
	}
	return Group{GroupID: groupID, OwnerID: ownerID, FeeStars: feeStars, CreatedAt: createdAt.UTC()}, nil
}

func (g Group) IsOwnedBy(userID string) bool {
	return g.OwnerID == strings.TrimSpace(userID)
}

type GroupMembership struct {
	GroupID  string
	UserID   string
	OwnerID  string
	FeePaid  int64
	JoinedAt time.Time
}
