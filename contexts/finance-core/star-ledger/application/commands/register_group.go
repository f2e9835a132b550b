package commands

import (
	"context"
	"log/slog"
	"strings"

	application "savemore/contexts/finance-core/star-ledger/application"
	"savemore/contexts/finance-core/star-ledger/domain/entities"
	"savemore/contexts/finance-core/star-ledger/ports"
)

// RegisterGroupCommand records a paid group and its entry fee. OwnerID is
// the authenticated caller.
type RegisterGroupCommand struct {
	GroupID  string
	OwnerID  string
	FeeStars int64
}

type RegisterGroupUseCase struct {
	Repo   ports.LedgerRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

func (uc RegisterGroupUseCase) Execute(ctx context.Context, cmd RegisterGroupCommand) (entities.Group, error) {
	logger := application.ResolveLogger(uc.Logger)
	group, err := entities.NewGroup(cmd.GroupID, cmd.OwnerID, cmd.FeeStars, resolveNow(uc.Clock))
	if err != nil {
		return entities.Group{}, err
	}

	if err := uc.Repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		return tx.CreateGroup(ctx, group)
	}); err != nil {
		logger.Warn("group registration rejected",
			"event", "ledger_group_register_rejected",
			"module", moduleName,
			"layer", "application",
			"group_id", strings.TrimSpace(cmd.GroupID),
			"owner_id", strings.TrimSpace(cmd.OwnerID),
			"error", err.Error(),
		)
		return entities.Group{}, err
	}

	logger.Info("group registered",
		"event", "ledger_group_registered",
		"module", moduleName,
		"layer", "application",
		"group_id", group.GroupID,
		"owner_id", group.OwnerID,
		"fee_stars", group.FeeStars,
	)
	return group, nil
}
