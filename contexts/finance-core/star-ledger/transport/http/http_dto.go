package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ProcessViewRequest struct {
	ContentID string `json:"content_id"`
}

// SettlementOutcomeResponse mirrors the ledger's view settlement result.
// Message is present only when success is false.
type SettlementOutcomeResponse struct {
	Success           bool   `json:"success"`
	AlreadyViewed     bool   `json:"already_viewed"`
	Charged           bool   `json:"charged"`
	InsufficientStars bool   `json:"insufficient_stars"`
	StarsSpent        int64  `json:"stars_spent"`
	ViewerEarn        string `json:"viewer_earn"`
	AvailableStars    int64  `json:"available_stars,omitempty"`
	RequiredStars     int64  `json:"required_stars,omitempty"`
	Message           string `json:"message,omitempty"`
}

type BalanceResponse struct {
	UserID        string `json:"user_id"`
	StarBalance   int64  `json:"star_balance"`
	WalletBalance string `json:"wallet_balance"`
	UpdatedAt     string `json:"updated_at"`
}

type LedgerEntryItem struct {
	EntryID     string `json:"entry_id"`
	Type        string `json:"type"`
	StarDelta   int64  `json:"star_delta"`
	WalletDelta string `json:"wallet_delta"`
	ReferenceID string `json:"reference_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type ListEntriesResponse struct {
	UserID string            `json:"user_id"`
	Items  []LedgerEntryItem `json:"items"`
}

type PublishContentRequest struct {
	ContentID string `json:"content_id,omitempty"`
	Kind      string `json:"kind"`
	MediaKind string `json:"media_kind"`
	StarPrice int64  `json:"star_price"`
}

type ContentResponse struct {
	ContentID string `json:"content_id"`
	OwnerID   string `json:"owner_id"`
	Kind      string `json:"kind"`
	MediaKind string `json:"media_kind"`
	StarPrice int64  `json:"star_price"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type SpendStarsRequest struct {
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id,omitempty"`
}

type SpendStarsResponse struct {
	EntryID     string `json:"entry_id"`
	StarsSpent  int64  `json:"stars_spent"`
	StarBalance int64  `json:"star_balance"`
	Replayed    bool   `json:"replayed"`
}

type DeductVoiceCreditsRequest struct {
	DurationSeconds int    `json:"duration_seconds"`
	MessageID       string `json:"message_id,omitempty"`
}

type DeductVoiceCreditsResponse struct {
	EntryID           string `json:"entry_id"`
	StarsDeducted     int64  `json:"stars_deducted"`
	StarBalance       int64  `json:"star_balance"`
	RechargeSuggested bool   `json:"recharge_suggested"`
	Replayed          bool   `json:"replayed"`
}

type RegisterGroupRequest struct {
	GroupID  string `json:"group_id"`
	FeeStars int64  `json:"fee_stars"`
}

type GroupResponse struct {
	GroupID   string `json:"group_id"`
	OwnerID   string `json:"owner_id"`
	FeeStars  int64  `json:"fee_stars"`
	CreatedAt string `json:"created_at"`
}

type JoinGroupResponse struct {
	GroupID       string `json:"group_id"`
	Joined        bool   `json:"joined"`
	AlreadyMember bool   `json:"already_member"`
	StarsCharged  int64  `json:"stars_charged"`
	StarBalance   int64  `json:"star_balance"`
}

type CreditStarsRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type CreditStarsResponse struct {
	EntryID     string `json:"entry_id"`
	StarBalance int64  `json:"star_balance"`
	Replayed    bool   `json:"replayed"`
}
