package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	vsentities "savemore/contexts/community-experience/view-settlement/domain/entities"
	vserrors "savemore/contexts/community-experience/view-settlement/domain/errors"
	starledger "savemore/contexts/finance-core/star-ledger"
	httpadapter "savemore/contexts/finance-core/star-ledger/adapters/http"
	postgresadapter "savemore/contexts/finance-core/star-ledger/adapters/postgres"
	ledgererrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/domain/services"
	"savemore/contexts/finance-core/star-ledger/ports"
	ledgerhttp "savemore/contexts/finance-core/star-ledger/transport/http"
	"savemore/internal/platform/config"
	"savemore/internal/platform/db"
	"savemore/internal/platform/metrics"
)

// ledgerStore is the star ledger module plus the database behind it, if any.
type ledgerStore struct {
	module   starledger.Module
	database *db.Database
}

func (s ledgerStore) ready(ctx context.Context) error {
	if s.database == nil {
		return nil
	}
	return s.database.Ping(ctx)
}

func (s ledgerStore) Close() error {
	return s.database.Close()
}

func splitPolicy(cfg config.Config) (services.SplitPolicy, error) {
	policy := services.SplitPolicy{
		OwnerShare:      cfg.Settlement.OwnerShare,
		ViewerCashback:  cfg.Settlement.ViewerCashback,
		GroupOwnerShare: cfg.Settlement.GroupOwnerShare,
		StarUnitValue:   cfg.Settlement.StarUnitValue,
	}
	if err := policy.Validate(); err != nil {
		return services.SplitPolicy{}, fmt.Errorf("settlement policy: %w", err)
	}
	return policy, nil
}

// openLedger builds the star ledger on the configured driver and migrates
// its schema.
func openLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (ledgerStore, error) {
	policy, err := splitPolicy(cfg)
	if err != nil {
		return ledgerStore{}, err
	}

	var database *db.Database
	switch cfg.LedgerDriver {
	case config.DriverMemory:
		module := starledger.NewInMemoryModule(policy, logger)
		return ledgerStore{module: module}, nil
	case config.DriverSQLite:
		database, err = db.OpenSQLite(cfg.SQLitePath)
	default:
		database, err = db.Connect(ctx, cfg.PostgresDSN, db.PoolOptions{
			MaxOpenConns:    cfg.PostgresMaxOpenConns,
			MaxIdleConns:    cfg.PostgresMaxIdleConns,
			ConnMaxLifetime: cfg.PostgresConnMaxLifetime,
		})
	}
	if err != nil {
		return ledgerStore{}, err
	}

	repo := postgresadapter.NewRepository(database.DB, logger)
	if err := repo.Migrate(ctx); err != nil {
		_ = database.Close()
		return ledgerStore{}, fmt.Errorf("migrate ledger schema: %w", err)
	}
	module := starledger.NewModule(starledger.Dependencies{
		Repository:             repo,
		Accounts:               repo,
		Outbox:                 repo,
		Dedup:                  repo,
		Clock:                  postgresadapter.SystemClock{},
		IDGen:                  postgresadapter.UUIDGenerator{},
		Policy:                 policy,
		PlatformAccountID:      cfg.PlatformAccountID,
		StoryTTL:               cfg.StoryTTL,
		VoiceSecondsPerStar:    cfg.VoiceSecondsPerStar,
		VoiceRechargeThreshold: cfg.VoiceRechargeThreshold,
		IdempotencyTTL:         cfg.IdempotencyTTL,
		Logger:                 logger,
	})
	return ledgerStore{module: module, database: database}, nil
}

// ledgerBridge serves viewing sessions from the ledger in the same process.
type ledgerBridge struct {
	handler httpadapter.Handler
}

func (b ledgerBridge) ProcessView(ctx context.Context, contentID string, viewerID string) (vsentities.SettlementOutcome, error) {
	resp, err := b.handler.ProcessViewHandler(ctx, viewerID, ledgerhttp.ProcessViewRequest{ContentID: contentID})
	if err != nil {
		return vsentities.SettlementOutcome{}, err
	}
	earn := decimal.Zero
	if resp.ViewerEarn != "" {
		earn, err = decimal.NewFromString(resp.ViewerEarn)
		if err != nil {
			return vsentities.SettlementOutcome{}, fmt.Errorf("decode viewer_earn: %w", err)
		}
	}
	return vsentities.SettlementOutcome{
		Success:           resp.Success,
		AlreadyViewed:     resp.AlreadyViewed,
		Charged:           resp.Charged,
		InsufficientStars: resp.InsufficientStars,
		StarsSpent:        resp.StarsSpent,
		ViewerEarn:        earn,
		AvailableStars:    resp.AvailableStars,
		RequiredStars:     resp.RequiredStars,
		Message:           resp.Message,
	}, nil
}

func (b ledgerBridge) GetBalance(ctx context.Context, userID string) (vsentities.Balance, error) {
	resp, err := b.handler.GetBalanceHandler(ctx, userID)
	if err != nil {
		return vsentities.Balance{}, err
	}
	return vsentities.ParseBalance(resp.UserID, resp.StarBalance, resp.WalletBalance, resp.UpdatedAt)
}

func (b ledgerBridge) GetContent(ctx context.Context, contentID string, _ string) (vsentities.ContentItem, error) {
	resp, err := b.handler.GetContentHandler(ctx, contentID)
	if errors.Is(err, ledgererrors.ErrContentNotFound) {
		return vsentities.ContentItem{}, vserrors.ErrUnknownContent
	}
	if err != nil {
		return vsentities.ContentItem{}, err
	}
	return vsentities.ParseContentItem(resp.ContentID, resp.OwnerID, resp.StarPrice, resp.MediaKind, resp.CreatedAt)
}

// countingBalancePublisher records every balance push in metrics.
type countingBalancePublisher struct {
	next    ports.BalancePublisher
	metrics *metrics.Collector
}

func (p countingBalancePublisher) PublishBalance(ctx context.Context, snapshot ports.BalanceSnapshot) error {
	if err := p.next.PublishBalance(ctx, snapshot); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.BalancePushed()
	}
	return nil
}
