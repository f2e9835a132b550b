package viewsettlement

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"savemore/contexts/community-experience/view-settlement/adapters/balance"
	wsadapter "savemore/contexts/community-experience/view-settlement/adapters/ws"
	application "savemore/contexts/community-experience/view-settlement/application"
	"savemore/contexts/community-experience/view-settlement/application/orchestrator"
	"savemore/contexts/community-experience/view-settlement/application/surface"
	"savemore/contexts/community-experience/view-settlement/domain/entities"
	domainerrors "savemore/contexts/community-experience/view-settlement/domain/errors"
	"savemore/contexts/community-experience/view-settlement/ports"
	wstransport "savemore/contexts/community-experience/view-settlement/transport/ws"
)

const moduleName = "community-experience/view-settlement"

type Dependencies struct {
	Ledger ports.Ledger
	// Catalog resolves mounted items. When nil, Ledger is used if it also
	// implements ports.ContentCatalog.
	Catalog   ports.ContentCatalog
	Updates   ports.BalanceUpdates
	Metrics   ports.SettlementMetrics
	NewTicker ports.TickerFactory
	Clock     ports.Clock
	Logger    *slog.Logger
}

type Module struct {
	deps Dependencies
}

func NewModule(deps Dependencies) Module {
	if deps.Catalog == nil {
		if catalog, ok := deps.Ledger.(ports.ContentCatalog); ok {
			deps.Catalog = catalog
		}
	}
	return Module{deps: deps}
}

// Outputs receives everything a session wants to show its viewer.
type Outputs struct {
	Notifier ports.Notifier
	States   ports.StatePublisher
	Balance  func(entities.Balance)
}

type viewerSession string

func (s viewerSession) ViewerID() (string, bool) {
	id := strings.TrimSpace(string(s))
	return id, id != ""
}

// Runtime is one viewer's live session: a surface, its orchestrator and the
// cached balance kept fresh by the configured update sources.
type Runtime struct {
	Surface      *surface.Surface
	Orchestrator *orchestrator.Orchestrator
	Balances     *balance.Cache

	viewerID string
	catalog  ports.ContentCatalog
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
}

// Close stops the surface and the balance subscription and waits for both.
func (r *Runtime) Close() {
	r.once.Do(func() {
		r.Surface.Close()
		r.cancel()
		r.wg.Wait()
	})
}

// StartSession wires a Runtime for viewerID and loads its initial balance.
func (m Module) StartSession(ctx context.Context, viewerID string, out Outputs) *Runtime {
	ctx, cancel := context.WithCancel(ctx)
	session := viewerSession(viewerID)
	cache := balance.NewCache(out.Balance)
	orch := orchestrator.New(orchestrator.Dependencies{
		Session:  session,
		Ledger:   m.deps.Ledger,
		Balances: cache,
		Notifier: out.Notifier,
		Metrics:  m.deps.Metrics,
		Clock:    m.deps.Clock,
		Logger:   m.deps.Logger,
	})
	runtime := &Runtime{
		Surface: surface.New(ctx, surface.Dependencies{
			Settler:   orch,
			Session:   session,
			States:    out.States,
			Metrics:   m.deps.Metrics,
			NewTicker: m.deps.NewTicker,
			Clock:     m.deps.Clock,
			Logger:    m.deps.Logger,
		}),
		Orchestrator: orch,
		Balances:     cache,
		viewerID:     viewerID,
		catalog:      m.deps.Catalog,
		cancel:       cancel,
	}

	orch.RefreshBalance(ctx)
	if m.deps.Updates != nil {
		runtime.wg.Add(1)
		go func() {
			defer runtime.wg.Done()
			if err := m.deps.Updates.Subscribe(ctx, viewerID, cache.Set); err != nil && !errors.Is(err, context.Canceled) {
				application.ResolveLogger(m.deps.Logger).Warn("balance updates subscription ended",
					"event", "viewing_session_balance_updates_failed",
					"module", moduleName,
					"layer", "module",
					"viewer_id", viewerID,
					"error", err.Error(),
				)
			}
		}()
	}
	return runtime
}

// ServeSession runs a websocket viewing session until the client leaves or
// ctx ends. Every timer and settlement goroutine has exited when it returns.
func (m Module) ServeSession(ctx context.Context, conn *websocket.Conn, viewerID string) {
	logger := application.ResolveLogger(m.deps.Logger)
	wsConn := wsadapter.NewConn(conn, m.deps.Logger)
	runtime := m.StartSession(ctx, viewerID, Outputs{
		Notifier: wsConn,
		States:   wsConn,
		Balance:  wsConn.PushBalance,
	})
	logger.Info("viewing session opened",
		"event", "viewing_session_opened",
		"module", moduleName,
		"layer", "module",
		"viewer_id", viewerID,
	)
	started := time.Now()

	wsConn.Run(ctx, func(msg wstransport.ClientMessage) {
		if err := runtime.Dispatch(ctx, msg); err != nil {
			wsConn.PushError(err.Error())
		}
	})
	runtime.Close()

	logger.Info("viewing session closed",
		"event", "viewing_session_closed",
		"module", moduleName,
		"layer", "module",
		"viewer_id", viewerID,
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

var errUnknownMessage = errors.New("unknown message type")

// MountContent looks contentID up in the ledger and mounts the registered
// record. The eligibility rule follows the ledger's owner, price and media
// kind.
func (r *Runtime) MountContent(ctx context.Context, contentID string) (entities.ContentItem, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return entities.ContentItem{}, domainerrors.ErrInvalidItem
	}
	if r.catalog == nil {
		return entities.ContentItem{}, domainerrors.ErrLedgerUnavailable
	}
	item, err := r.catalog.GetContent(ctx, contentID, r.viewerID)
	if err != nil {
		return entities.ContentItem{}, err
	}
	return item, r.Surface.Mount(item)
}

// Dispatch applies one client message to the session. Mount payloads only
// name the item; everything else about it comes from the ledger.
func (r *Runtime) Dispatch(ctx context.Context, msg wstransport.ClientMessage) error {
	switch msg.Type {
	case wstransport.TypeMount:
		if msg.Item == nil {
			return domainerrors.ErrInvalidItem
		}
		_, err := r.MountContent(ctx, msg.Item.ContentID)
		return err
	case wstransport.TypeVisible:
		return r.Surface.Visible(msg.ItemID)
	case wstransport.TypeHidden:
		return r.Surface.Hidden(msg.ItemID)
	case wstransport.TypePlaybackEnded:
		return r.Surface.PlaybackEnded(msg.ItemID)
	case wstransport.TypeUnmount:
		return r.Surface.Unmount(msg.ItemID)
	default:
		return errUnknownMessage
	}
}
