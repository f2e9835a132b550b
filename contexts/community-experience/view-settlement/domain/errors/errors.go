package errors

import "errors"

var (
	ErrUnauthenticated    = errors.New("viewer is not authenticated")
	ErrAlreadyProcessed   = errors.New("item already settled in this session")
	ErrSettlementInFlight = errors.New("settlement already in flight for item")
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrUnknownItem        = errors.New("item is not mounted")
	ErrInvalidItem        = errors.New("content item is invalid")
	ErrSurfaceClosed      = errors.New("viewing surface is closed")
	ErrUnknownContent     = errors.New("content is not registered with the ledger")
)
