package entities

import (
	"strings"
	"time"

	domainerrors "savemore/contexts/community-experience/view-settlement/domain/errors"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// ContentItem is the session's view of a monetizable post or story.
type ContentItem struct {
	ContentID string
	OwnerID   string
	StarPrice int64
	MediaKind MediaKind
	CreatedAt time.Time
}

func (c ContentItem) Validate() error {
	if strings.TrimSpace(c.ContentID) == "" || strings.TrimSpace(c.OwnerID) == "" {
		return domainerrors.ErrInvalidItem
	}
	if c.StarPrice < 0 {
		return domainerrors.ErrInvalidItem
	}
	if c.MediaKind != MediaKindImage && c.MediaKind != MediaKindVideo {
		return domainerrors.ErrInvalidItem
	}
	return nil
}

// ParseContentItem builds a validated ContentItem from wire fields. createdAt
// is optional RFC3339.
func ParseContentItem(contentID, ownerID string, starPrice int64, mediaKind, createdAt string) (ContentItem, error) {
	item := ContentItem{
		ContentID: strings.TrimSpace(contentID),
		OwnerID:   strings.TrimSpace(ownerID),
		StarPrice: starPrice,
		MediaKind: MediaKind(strings.ToLower(strings.TrimSpace(mediaKind))),
	}
	if createdAt != "" {
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return ContentItem{}, domainerrors.ErrInvalidItem
		}
		item.CreatedAt = ts
	}
	return item, item.Validate()
}

// BillableFor reports whether viewing the item can cost viewerID stars.
func (c ContentItem) BillableFor(viewerID string) bool {
	return c.StarPrice > 0 && c.OwnerID != viewerID
}
