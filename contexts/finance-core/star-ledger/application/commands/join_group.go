package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/domain/services"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// JoinGroupCommand pays a group's one-time entry fee. Owner and fee come
// from the group registration, never from the caller.
type JoinGroupCommand struct {
	GroupID string
	UserID  string
}

type JoinGroupResult struct {
	Joined        bool
	AlreadyMember bool
	StarsCharged  int64
	StarBalance   int64
}

type JoinGroupUseCase struct {
	Repo              ports.LedgerRepository
	Clock             ports.Clock
	IDGen             ports.IDGenerator
	Policy            services.SplitPolicy
	PlatformAccountID string
	Logger            *slog.Logger
}

func (uc JoinGroupUseCase) Execute(ctx context.Context, cmd JoinGroupCommand) (JoinGroupResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	groupID := strings.TrimSpace(cmd.GroupID)
	userID := strings.TrimSpace(cmd.UserID)
	if groupID == "" || userID == "" {
		return JoinGroupResult{}, domainerrors.ErrInvalidInput
	}

	now := resolveNow(uc.Clock)
	platformID := resolvePlatformAccount(uc.PlatformAccountID)

	var result JoinGroupResult
	err := uc.Repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		group, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if group.IsOwnedBy(userID) {
			return domainerrors.ErrSelfGroupJoin
		}
		ownerID, feeStars := group.OwnerID, group.FeeStars

		if _, found, err := tx.GetMembership(ctx, groupID, userID); err != nil {
			return err
		} else if found {
			result = JoinGroupResult{AlreadyMember: true}
			return nil
		}

		accounts, err := tx.LockAccounts(ctx, userID, ownerID, platformID)
		if err != nil {
			return err
		}
		member, owner, platform := accounts[userID], accounts[ownerID], accounts[platformID]
		if member == nil || owner == nil || platform == nil {
			return domainerrors.ErrRepositoryInvariant
		}

		membership := entities.GroupMembership{
			GroupID:  groupID,
			UserID:   userID,
			OwnerID:  ownerID,
			FeePaid:  feeStars,
			JoinedAt: now,
		}
		if err := tx.InsertMembership(ctx, membership); err != nil {
			return err
		}

		split := uc.Policy.SplitGroupFee(feeStars)
		if feeStars > 0 {
			if err := member.DebitStars(feeStars, now); err != nil {
				return err
			}
			if err := owner.CreditWallet(split.OwnerShare, now); err != nil {
				return err
			}
			if err := platform.CreditWallet(split.PlatformShare, now); err != nil {
				return err
			}
			if err := tx.SaveAccounts(ctx, member, owner, platform); err != nil {
				return err
			}

			ref := groupID + ":" + userID
			fee, err := newEntry(ctx, uc.IDGen, userID, entities.EntryTypeGroupFee, -feeStars, decimal.Zero, ref, now)
			if err != nil {
				return err
			}
			ownerEntry, err := newEntry(ctx, uc.IDGen, ownerID, entities.EntryTypeGroupFeeOwnerShare, 0, split.OwnerShare, ref, now)
			if err != nil {
				return err
			}
			platformEntry, err := newEntry(ctx, uc.IDGen, platformID, entities.EntryTypePlatformShare, 0, split.PlatformShare, ref, now)
			if err != nil {
				return err
			}
			if err := tx.AppendEntries(ctx, fee, ownerEntry, platformEntry); err != nil {
				return err
			}
		}

		affected := []string{}
		if feeStars > 0 {
			affected = affectedUsers(userID, ownerID, platformID)
		}
		envelope, err := buildEnvelope(ctx, uc.IDGen, EventTypeGroupJoined, "/data/group_id", groupID, now, map[string]any{
			"group_id":       groupID,
			"user_id":        userID,
			"owner_id":       ownerID,
			"fee_stars":      feeStars,
			"owner_share":    split.OwnerShare.StringFixed(entities.WalletScale),
			"platform_share": split.PlatformShare.StringFixed(entities.WalletScale),
			AffectedUsersKey: affected,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}

		result = JoinGroupResult{Joined: true, StarsCharged: feeStars, StarBalance: member.StarBalance}
		return nil
	})
	if errors.Is(err, domainerrors.ErrDuplicateMembership) {
		return JoinGroupResult{AlreadyMember: true}, nil
	}
	if err != nil {
		logger.Warn("group join rejected",
			"event", "ledger_group_join_rejected",
			"module", moduleName,
			"layer", "application",
			"group_id", groupID,
			"user_id", userID,
			"error", err.Error(),
		)
		return JoinGroupResult{}, err
	}

	logger.Info("group join settled",
		"event", "ledger_group_joined",
		"module", moduleName,
		"layer", "application",
		"group_id", groupID,
		"user_id", userID,
		"already_member", result.AlreadyMember,
		"stars_charged", result.StarsCharged,
	)
	return result, nil
}
