package errors

import "errors"

var (
	ErrInvalidInput          = errors.New("star ledger input is invalid")
	ErrContentNotFound       = errors.New("content item not found")
	ErrContentExists         = errors.New("content item already published")
	ErrAccountNotFound       = errors.New("ledger account not found")
	ErrInsufficientStars     = errors.New("insufficient star balance")
	ErrDuplicateView         = errors.New("view already recorded")
	ErrGroupNotFound         = errors.New("group not found")
	ErrGroupExists           = errors.New("group already registered")
	ErrDuplicateMembership   = errors.New("group membership already recorded")
	ErrSelfGroupJoin         = errors.New("group owner cannot pay own entry fee")
	ErrIdempotencyKeyMissing = errors.New("idempotency key is required")
	ErrIdempotencyConflict   = errors.New("idempotency key already used with different payload")
	ErrForbidden             = errors.New("operation not permitted for caller")
	ErrInvalidPolicy         = errors.New("settlement policy is invalid")
	ErrRepositoryInvariant   = errors.New("repository invariant violated")
)
