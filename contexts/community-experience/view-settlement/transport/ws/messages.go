package ws

// Client message types.
const (
	TypeMount         = "mount"
	TypeVisible       = "visible"
	TypeHidden        = "hidden"
	TypePlaybackEnded = "playback_ended"
	TypeUnmount       = "unmount"
)

// Server message types.
const (
	TypeItemState    = "item_state"
	TypeNotification = "notification"
	TypeBalance      = "balance"
	TypeError        = "error"
)

// ItemPayload names the item to mount. Only ContentID is used; owner, price
// and media kind are resolved from the ledger and the other fields are
// accepted for display clients only.
type ItemPayload struct {
	ContentID string `json:"content_id"`
	OwnerID   string `json:"owner_id"`
	StarPrice int64  `json:"star_price"`
	MediaKind string `json:"media_kind"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ClientMessage is any message a viewing client sends. Item is set only for
// mount; every other type names the item by ItemID.
type ClientMessage struct {
	Type   string       `json:"type"`
	Item   *ItemPayload `json:"item,omitempty"`
	ItemID string       `json:"item_id,omitempty"`
}

type ItemStateMessage struct {
	Type             string `json:"type"`
	ItemID           string `json:"item_id"`
	State            string `json:"state"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type NotificationMessage struct {
	Type    string `json:"type"`
	ItemID  string `json:"item_id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type BalanceMessage struct {
	Type          string `json:"type"`
	StarBalance   int64  `json:"star_balance"`
	WalletBalance string `json:"wallet_balance"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
