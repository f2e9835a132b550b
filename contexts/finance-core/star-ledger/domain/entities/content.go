package entities

import (
	"strings"
	"time"

	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
)

type ContentKind string

const (
	ContentKindPost  ContentKind = "post"
	ContentKindStory ContentKind = "story"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// ContentItem is a monetizable post or story as registered with the ledger.
// Stories carry an expiry; posts never expire.
type ContentItem struct {
	ContentID string
	OwnerID   string
	Kind      ContentKind
	MediaKind MediaKind
	StarPrice int64
	CreatedAt time.Time
	ExpiresAt *time.Time
}

func NewContentItem(
	contentID string,
	ownerID string,
	kind ContentKind,
	mediaKind MediaKind,
	starPrice int64,
	createdAt time.Time,
	storyTTL time.Duration,
) (ContentItem, error) {
	if strings.TrimSpace(contentID) == "" || strings.TrimSpace(ownerID) == "" {
		return ContentItem{}, domainerrors.ErrInvalidInput
	}
	if kind != ContentKindPost && kind != ContentKindStory {
		return ContentItem{}, domainerrors.ErrInvalidInput
	}
	if mediaKind != MediaKindImage && mediaKind != MediaKindVideo {
		return ContentItem{}, domainerrors.ErrInvalidInput
	}
	if starPrice < 0 {
		return ContentItem{}, domainerrors.ErrInvalidInput
	}

	item := ContentItem{
		ContentID: strings.TrimSpace(contentID),
		OwnerID:   strings.TrimSpace(ownerID),
		Kind:      kind,
		MediaKind: mediaKind,
		StarPrice: starPrice,
		CreatedAt: createdAt.UTC(),
	}
	if kind == ContentKindStory && storyTTL > 0 {
		expiresAt := createdAt.UTC().Add(storyTTL)
		item.ExpiresAt = &expiresAt
	}
	return item, nil
}

func (c ContentItem) IsFree() bool {
	return c.StarPrice == 0
}

func (c ContentItem) IsOwnedBy(userID string) bool {
	return c.OwnerID == strings.TrimSpace(userID)
}

func (c ContentItem) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.UTC().Before(*c.ExpiresAt)
}
