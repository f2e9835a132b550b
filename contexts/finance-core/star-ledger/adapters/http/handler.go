package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/application/commands"
	"savemore/contexts/finance-core/star-ledger/application/queries"
	"savemore/contexts/finance-core/star-ledger/domain/entities"
	httptransport "savemore/contexts/finance-core/star-ledger/transport/http"
)

const moduleName = "finance-core/star-ledger"

type Handler struct {
	ProcessView    commands.ProcessViewUseCase
	PublishContent commands.PublishContentUseCase
	SpendStars     commands.SpendStarsUseCase
	VoiceCredits   commands.DeductVoiceCreditsUseCase
	RegisterGroup  commands.RegisterGroupUseCase
	JoinGroup      commands.JoinGroupUseCase
	CreditStars    commands.CreditStarsUseCase
	GetBalance     queries.GetBalanceUseCase
	ListEntries    queries.ListEntriesUseCase
	GetContent     queries.GetContentUseCase
	Logger         *slog.Logger
}

// ProcessViewHandler godoc
// @Summary Settle a content view
// @Description Charges the viewer's first view of a priced item and splits it between owner, viewer cashback and platform. Repeat views report already_viewed.
// @Tags star-ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.ProcessViewRequest true "Viewed content"
// @Success 200 {object} httptransport.SettlementOutcomeResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/ledger/views [post]
func (h Handler) ProcessViewHandler(
	ctx context.Context,
	viewerID string,
	req httptransport.ProcessViewRequest,
) (httptransport.SettlementOutcomeResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Debug("process view request received",
		"event", "http_process_view_received",
		"module", moduleName,
		"layer", "transport",
		"viewer_id", viewerID,
		"content_id", req.ContentID,
	)
	outcome, err := h.ProcessView.Execute(ctx, commands.ProcessViewCommand{
		ContentID: req.ContentID,
		ViewerID:  viewerID,
	})
	if err != nil {
		return httptransport.SettlementOutcomeResponse{}, err
	}
	return MapOutcome(outcome), nil
}

// GetBalanceHandler godoc
// @Summary Get balances
// @Description Returns star and wallet balances for a user.
// @Tags star-ledger
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User id"
// @Success 200 {object} httptransport.BalanceResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /v1/ledger/balances/{user_id} [get]
func (h Handler) GetBalanceHandler(ctx context.Context, userID string) (httptransport.BalanceResponse, error) {
	account, err := h.GetBalance.Execute(ctx, userID)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	snapshot := queries.Snapshot(account)
	return httptransport.BalanceResponse{
		UserID:        snapshot.UserID,
		StarBalance:   snapshot.StarBalance,
		WalletBalance: snapshot.WalletBalance,
		UpdatedAt:     snapshot.UpdatedAt,
	}, nil
}

// ListEntriesHandler godoc
// @Summary List journal entries
// @Description Returns the user's ledger journal, newest first.
// @Tags star-ledger
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User id"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} httptransport.ListEntriesResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /v1/ledger/users/{user_id}/entries [get]
func (h Handler) ListEntriesHandler(ctx context.Context, userID string, limit int, offset int) (httptransport.ListEntriesResponse, error) {
	entries, err := h.ListEntries.Execute(ctx, queries.ListEntriesQuery{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		return httptransport.ListEntriesResponse{}, err
	}
	items := make([]httptransport.LedgerEntryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, httptransport.LedgerEntryItem{
			EntryID:     entry.EntryID,
			Type:        string(entry.Type),
			StarDelta:   entry.StarDelta,
			WalletDelta: entry.WalletDelta.StringFixed(entities.WalletScale),
			ReferenceID: entry.ReferenceID,
			CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.ListEntriesResponse{UserID: userID, Items: items}, nil
}

// PublishContentHandler godoc
// @Summary Publish content
// @Description Registers a post or story owned by the caller.
// @Tags star-ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.PublishContentRequest true "Content item"
// @Success 201 {object} httptransport.ContentResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/ledger/content [post]
func (h Handler) PublishContentHandler(
	ctx context.Context,
	ownerID string,
	req httptransport.PublishContentRequest,
) (httptransport.ContentResponse, error) {
	item, err := h.PublishContent.Execute(ctx, commands.PublishContentCommand{
		ContentID: req.ContentID,
		OwnerID:   ownerID,
		Kind:      entities.ContentKind(req.Kind),
		MediaKind: entities.MediaKind(req.MediaKind),
		StarPrice: req.StarPrice,
	})
	if err != nil {
		return httptransport.ContentResponse{}, err
	}
	return contentResponse(item), nil
}

// GetContentHandler godoc
// @Summary Get a content item
// @Description Returns the registered owner, media kind and price of a post or story.
// @Tags star-ledger
// @Produce json
// @Security BearerAuth
// @Param content_id path string true "Content id"
// @Success 200 {object} httptransport.ContentResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/ledger/content/{content_id} [get]
func (h Handler) GetContentHandler(ctx context.Context, contentID string) (httptransport.ContentResponse, error) {
	item, err := h.GetContent.Execute(ctx, contentID)
	if err != nil {
		return httptransport.ContentResponse{}, err
	}
	return contentResponse(item), nil
}

func contentResponse(item entities.ContentItem) httptransport.ContentResponse {
	resp := httptransport.ContentResponse{
		ContentID: item.ContentID,
		OwnerID:   item.OwnerID,
		Kind:      string(item.Kind),
		MediaKind: string(item.MediaKind),
		StarPrice: item.StarPrice,
		CreatedAt: item.CreatedAt.Format(time.RFC3339),
	}
	if item.ExpiresAt != nil {
		resp.ExpiresAt = item.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

// SpendStarsHandler godoc
// @Summary Spend stars
// @Description Debits stars for an in-app purchase.
// @Tags star-ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body httptransport.SpendStarsRequest true "Spend request"
// @Success 200 {object} httptransport.SpendStarsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/ledger/stars/spend [post]
func (h Handler) SpendStarsHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.SpendStarsRequest,
) (httptransport.SpendStarsResponse, error) {
	result, err := h.SpendStars.Execute(ctx, commands.SpendStarsCommand{
		UserID:         userID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		ReferenceID:    req.ReferenceID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.SpendStarsResponse{}, err
	}
	return httptransport.SpendStarsResponse{
		EntryID:     result.EntryID,
		StarsSpent:  result.StarsSpent,
		StarBalance: result.StarBalance,
		Replayed:    result.Replayed,
	}, nil
}

// DeductVoiceCreditsHandler godoc
// @Summary Charge a voice message
// @Description Deducts stars for a voice message by duration, rounding started blocks up.
// @Tags star-ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body httptransport.DeductVoiceCreditsRequest true "Voice message"
// @Success 200 {object} httptransport.DeductVoiceCreditsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/ledger/voice-credits/deduct [post]
func (h Handler) DeductVoiceCreditsHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.DeductVoiceCreditsRequest,
) (httptransport.DeductVoiceCreditsResponse, error) {
	result, err := h.VoiceCredits.Execute(ctx, commands.DeductVoiceCreditsCommand{
		UserID:          userID,
		DurationSeconds: req.DurationSeconds,
		MessageID:       req.MessageID,
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		return httptransport.DeductVoiceCreditsResponse{}, err
	}
	return httptransport.DeductVoiceCreditsResponse{
		EntryID:           result.EntryID,
		StarsDeducted:     result.StarsDeducted,
		StarBalance:       result.StarBalance,
		RechargeSuggested: result.RechargeSuggested,
		Replayed:          result.Replayed,
	}, nil
}

// RegisterGroupHandler godoc
// @Summary Register a paid group
// @Description Records a group owned by the caller and the entry fee every member pays.
// @Tags star-ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.RegisterGroupRequest true "Group"
// @Success 201 {object} httptransport.GroupResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/ledger/groups [post]
func (h Handler) RegisterGroupHandler(
	ctx context.Context,
	ownerID string,
	req httptransport.RegisterGroupRequest,
) (httptransport.GroupResponse, error) {
	group, err := h.RegisterGroup.Execute(ctx, commands.RegisterGroupCommand{
		GroupID:  req.GroupID,
		OwnerID:  ownerID,
		FeeStars: req.FeeStars,
	})
	if err != nil {
		return httptransport.GroupResponse{}, err
	}
	return httptransport.GroupResponse{
		GroupID:   group.GroupID,
		OwnerID:   group.OwnerID,
		FeeStars:  group.FeeStars,
		CreatedAt: group.CreatedAt.Format(time.RFC3339),
	}, nil
}

// JoinGroupHandler godoc
// @Summary Join a paid group
// @Description Pays the registered one-time entry fee of the group. Repeat joins are no-ops.
// @Tags star-ledger
// @Produce json
// @Security BearerAuth
// @Param group_id path string true "Group id"
// @Success 200 {object} httptransport.JoinGroupResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/ledger/groups/{group_id}/join [post]
func (h Handler) JoinGroupHandler(
	ctx context.Context,
	userID string,
	groupID string,
) (httptransport.JoinGroupResponse, error) {
	result, err := h.JoinGroup.Execute(ctx, commands.JoinGroupCommand{
		GroupID: groupID,
		UserID:  userID,
	})
	if err != nil {
		return httptransport.JoinGroupResponse{}, err
	}
	return httptransport.JoinGroupResponse{
		GroupID:       groupID,
		Joined:        result.Joined,
		AlreadyMember: result.AlreadyMember,
		StarsCharged:  result.StarsCharged,
		StarBalance:   result.StarBalance,
	}, nil
}

// CreditStarsHandler godoc
// @Summary Credit stars
// @Description Admin top-up of a user's stars.
// @Tags star-ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body httptransport.CreditStarsRequest true "Credit request"
// @Success 200 {object} httptransport.CreditStarsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /v1/ledger/admin/stars/credit [post]
func (h Handler) CreditStarsHandler(
	ctx context.Context,
	actorID string,
	idempotencyKey string,
	req httptransport.CreditStarsRequest,
) (httptransport.CreditStarsResponse, error) {
	result, err := h.CreditStars.Execute(ctx, commands.CreditStarsCommand{
		UserID:         req.UserID,
		Amount:         req.Amount,
		ActorID:        actorID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.CreditStarsResponse{}, err
	}
	return httptransport.CreditStarsResponse{
		EntryID:     result.EntryID,
		StarBalance: result.StarBalance,
		Replayed:    result.Replayed,
	}, nil
}

func MapOutcome(outcome entities.SettlementOutcome) httptransport.SettlementOutcomeResponse {
	return httptransport.SettlementOutcomeResponse{
		Success:           outcome.Success,
		AlreadyViewed:     outcome.AlreadyViewed,
		Charged:           outcome.Charged,
		InsufficientStars: outcome.InsufficientStars,
		StarsSpent:        outcome.StarsSpent,
		ViewerEarn:        outcome.ViewerEarn.StringFixed(entities.WalletScale),
		AvailableStars:    outcome.AvailableStars,
		RequiredStars:     outcome.RequiredStars,
		Message:           outcome.Message,
	}
}
