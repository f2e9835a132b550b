package starledger

import (
	"log/slog"
	"time"

	httpadapter "savemore/contexts/finance-core/star-ledger/adapters/http"
	"savemore/contexts/finance-core/star-ledger/adapters/memory"
	"savemore/contexts/finance-core/star-ledger/application/commands"
	"savemore/contexts/finance-core/star-ledger/application/queries"
	"savemore/contexts/finance-core/star-ledger/application/workers"
	"savemore/contexts/finance-core/star-ledger/domain/services"
	"savemore/contexts/finance-core/star-ledger/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	deps    Dependencies
}

type Dependencies struct {
	Repository             ports.LedgerRepository
	Accounts               ports.AccountReader
	Outbox                 ports.OutboxRepository
	Dedup                  ports.EventDedupStore
	Clock                  ports.Clock
	IDGen                  ports.IDGenerator
	Policy                 services.SplitPolicy
	PlatformAccountID      string
	StoryTTL               time.Duration
	VoiceSecondsPerStar    int
	VoiceRechargeThreshold int64
	IdempotencyTTL         time.Duration
	Logger                 *slog.Logger
}

func NewModule(deps Dependencies) Module {
	balances := queries.GetBalanceUseCase{Accounts: deps.Accounts, Clock: deps.Clock}
	return Module{
		Handler: httpadapter.Handler{
			ProcessView: commands.ProcessViewUseCase{
				Repo:              deps.Repository,
				Clock:             deps.Clock,
				IDGen:             deps.IDGen,
				Policy:            deps.Policy,
				PlatformAccountID: deps.PlatformAccountID,
				Logger:            deps.Logger,
			},
			PublishContent: commands.PublishContentUseCase{
				Repo:     deps.Repository,
				Clock:    deps.Clock,
				IDGen:    deps.IDGen,
				StoryTTL: deps.StoryTTL,
				Logger:   deps.Logger,
			},
			SpendStars: commands.SpendStarsUseCase{
				Repo:           deps.Repository,
				Clock:          deps.Clock,
				IDGen:          deps.IDGen,
				IdempotencyTTL: deps.IdempotencyTTL,
				Logger:         deps.Logger,
			},
			VoiceCredits: commands.DeductVoiceCreditsUseCase{
				Repo:              deps.Repository,
				Clock:             deps.Clock,
				IDGen:             deps.IDGen,
				SecondsPerStar:    deps.VoiceSecondsPerStar,
				RechargeThreshold: deps.VoiceRechargeThreshold,
				IdempotencyTTL:    deps.IdempotencyTTL,
				Logger:            deps.Logger,
			},
			RegisterGroup: commands.RegisterGroupUseCase{
				Repo:   deps.Repository,
				Clock:  deps.Clock,
				Logger: deps.Logger,
			},
			JoinGroup: commands.JoinGroupUseCase{
				Repo:              deps.Repository,
				Clock:             deps.Clock,
				IDGen:             deps.IDGen,
				Policy:            deps.Policy,
				PlatformAccountID: deps.PlatformAccountID,
				Logger:            deps.Logger,
			},
			CreditStars: commands.CreditStarsUseCase{
				Repo:           deps.Repository,
				Clock:          deps.Clock,
				IDGen:          deps.IDGen,
				IdempotencyTTL: deps.IdempotencyTTL,
				Logger:         deps.Logger,
			},
			GetBalance:  balances,
			ListEntries: queries.ListEntriesUseCase{Accounts: deps.Accounts},
			GetContent:  queries.GetContentUseCase{Repo: deps.Repository},
			Logger:      deps.Logger,
		},
		deps: deps,
	}
}

func NewInMemoryModule(policy services.SplitPolicy, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:     store,
		Accounts:       store,
		Outbox:         store,
		Dedup:          store,
		Clock:          store,
		IDGen:          store,
		Policy:         policy,
		StoryTTL:       24 * time.Hour,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}

// OutboxRelay builds the worker that drains the ledger outbox to publisher.
func (m Module) OutboxRelay(publisher ports.EventPublisher, topic string, batchSize int) workers.OutboxRelay {
	return workers.OutboxRelay{
		Outbox:    m.deps.Outbox,
		Publisher: publisher,
		Clock:     m.deps.Clock,
		Topic:     topic,
		BatchSize: batchSize,
		Logger:    m.deps.Logger,
	}
}

// BalanceFanout builds the consumer that pushes fresh balances after ledger events.
func (m Module) BalanceFanout(publisher ports.BalancePublisher) workers.BalanceFanout {
	return workers.BalanceFanout{
		Dedup:     m.deps.Dedup,
		Balances:  m.Handler.GetBalance,
		Publisher: publisher,
		Clock:     m.deps.Clock,
		Logger:    m.deps.Logger,
	}
}
