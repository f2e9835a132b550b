package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	ledgererrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	ledgerhttp "savemore/contexts/finance-core/star-ledger/transport/http"
	"savemore/internal/platform/auth"
)

func (s *Server) handleProcessView(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	if !s.limiter.Allow(principal.UserID) {
		s.logger.Warn("view settlement rate limited",
			"event", "http_process_view_rate_limited",
			"module", moduleName,
			"layer", "platform",
			"viewer_id", principal.UserID,
		)
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many settlement requests")
		return
	}

	var req ledgerhttp.ProcessViewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.ProcessViewHandler(r.Context(), principal.UserID, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	userID := r.PathValue("user_id")
	if !canRead(principal, userID) {
		writeLedgerDomainError(w, ledgererrors.ErrForbidden)
		return
	}
	resp, err := s.ledger.Handler.GetBalanceHandler(r.Context(), userID)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	userID := r.PathValue("user_id")
	if !canRead(principal, userID) {
		writeLedgerDomainError(w, ledgererrors.ErrForbidden)
		return
	}

	query := r.URL.Query()
	limit, offset := 0, 0
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = value
	}
	if raw := query.Get("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be a non-negative integer")
			return
		}
		offset = value
	}

	resp, err := s.ledger.Handler.ListEntriesHandler(r.Context(), userID, limit, offset)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePublishContent(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.PublishContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.PublishContentHandler(r.Context(), principal.UserID, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSpendStars(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.SpendStarsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.SpendStarsHandler(r.Context(), principal.UserID, idempotencyKey(r), req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeductVoiceCredits(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.DeductVoiceCreditsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.DeductVoiceCreditsHandler(r.Context(), principal.UserID, idempotencyKey(r), req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r); !ok {
		return
	}
	resp, err := s.ledger.Handler.GetContentHandler(r.Context(), r.PathValue("content_id"))
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterGroup(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.RegisterGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.RegisterGroupHandler(r.Context(), principal.UserID, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleJoinGroup ignores any request body; owner and fee come from the
// group registration.
func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.JoinGroupHandler(r.Context(), principal.UserID, r.PathValue("group_id"))
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreditStars(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	if !principal.IsAdmin() {
		writeLedgerDomainError(w, ledgererrors.ErrForbidden)
		return
	}
	var req ledgerhttp.CreditStarsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.CreditStarsHandler(r.Context(), principal.UserID, idempotencyKey(r), req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// canRead allows users to read their own balance and journal; admins read any.
func canRead(principal auth.Principal, userID string) bool {
	return principal.IsAdmin() || principal.UserID == userID
}

func writeLedgerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledgererrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ledgererrors.ErrIdempotencyKeyMissing):
		writeError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, ledgererrors.ErrContentNotFound),
		errors.Is(err, ledgererrors.ErrGroupNotFound),
		errors.Is(err, ledgererrors.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledgererrors.ErrContentExists):
		writeError(w, http.StatusConflict, "content_exists", err.Error())
	case errors.Is(err, ledgererrors.ErrGroupExists):
		writeError(w, http.StatusConflict, "group_exists", err.Error())
	case errors.Is(err, ledgererrors.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, ledgererrors.ErrInsufficientStars):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_stars", err.Error())
	case errors.Is(err, ledgererrors.ErrSelfGroupJoin):
		writeError(w, http.StatusUnprocessableEntity, "self_group_join", err.Error())
	case errors.Is(err, ledgererrors.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
