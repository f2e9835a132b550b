package surface

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	application "savemore/contexts/community-experience/view-settlement/application"
	"savemore/contexts/community-experience/view-settlement/application/eligibility"
	"savemore/contexts/community-experience/view-settlement/domain/entities"
	domainerrors "savemore/contexts/community-experience/view-settlement/domain/errors"
	"savemore/contexts/community-experience/view-settlement/ports"
)

const moduleName = "community-experience/view-settlement"

// Settler is the orchestrator as seen by the surface.
type Settler interface {
	SettleView(ctx context.Context, itemID string) (entities.SettlementOutcome, error)
	IsProcessed(itemID string) bool
}

type Dependencies struct {
	Settler   Settler
	Session   ports.Session
	States    ports.StatePublisher
	Metrics   ports.SettlementMetrics
	NewTicker ports.TickerFactory
	Clock     ports.Clock
	Logger    *slog.Logger
}

type mountedItem struct {
	item    entities.ContentItem
	trigger eligibility.Trigger
	timer   *eligibility.Timer
	attempt entities.ViewAttempt
	// visible is the viewer's last reported visibility, kept while settling.
	visible bool
}

type stateUpdate struct {
	itemID    string
	state     entities.AttemptState
	remaining int
}

// Surface owns every item mounted in one viewing session. Close cancels all
// timers and waits for in-flight settlements before returning.
type Surface struct {
	deps   Dependencies
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	items  map[string]*mountedItem
	closed bool
	wg     sync.WaitGroup
}

func New(parent context.Context, deps Dependencies) *Surface {
	ctx, cancel := context.WithCancel(parent)
	return &Surface{
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		items:  make(map[string]*mountedItem),
	}
}

// Mount registers item with the surface. Mounting an item twice is a no-op.
func (s *Surface) Mount(item entities.ContentItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	viewerID, _ := s.deps.Session.ViewerID()
	itemID := item.ContentID

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domainerrors.ErrSurfaceClosed
	}
	if _, ok := s.items[itemID]; ok {
		s.mu.Unlock()
		return nil
	}
	mounted := &mountedItem{
		item:    item,
		trigger: eligibility.TriggerFor(item, viewerID),
		attempt: entities.NewViewAttempt(itemID, s.now()),
	}
	mounted.timer = eligibility.NewTimer(eligibility.Config{
		Trigger:   mounted.trigger,
		NewTicker: s.deps.NewTicker,
		OnTick:    func(remaining int) { s.onTick(itemID, remaining) },
		OnFire:    func() { s.onFire(itemID) },
	})
	processed := s.deps.Settler.IsProcessed(itemID)
	if processed {
		mounted.attempt.Settle(nil, s.now())
	}
	s.items[itemID] = mounted
	update := stateUpdate{itemID: itemID, state: mounted.attempt.State}
	s.mu.Unlock()

	if processed {
		mounted.timer.MarkProcessed()
	}
	s.publish(update)
	return nil
}

// Visible starts eligibility for a mounted item.
func (s *Surface) Visible(itemID string) error {
	mounted, update, err := s.transition(itemID, func(m *mountedItem) bool {
		m.visible = true
		return m.attempt.BecomeVisible(s.now())
	})
	if err != nil {
		return err
	}
	if update != nil {
		if mounted.trigger == eligibility.TriggerDwell {
			update.remaining = eligibility.DwellSeconds
		}
		s.publish(*update)
	}
	mounted.timer.Visible()
	return nil
}

// Hidden cancels a pending countdown without settling.
func (s *Surface) Hidden(itemID string) error {
	mounted, update, err := s.transition(itemID, func(m *mountedItem) bool {
		m.visible = false
		return m.attempt.Hide(s.now())
	})
	if err != nil {
		return err
	}
	mounted.timer.Hidden()
	if update != nil {
		s.publish(*update)
	}
	return nil
}

func (s *Surface) PlaybackEnded(itemID string) error {
	mounted, _, err := s.transition(itemID, nil)
	if err != nil {
		return err
	}
	mounted.timer.PlaybackEnded()
	return nil
}

// Unmount drops the item and stops its timer. A settlement already in flight
// still completes against the ledger.
func (s *Surface) Unmount(itemID string) error {
	s.mu.Lock()
	mounted, ok := s.items[itemID]
	if !ok {
		s.mu.Unlock()
		return domainerrors.ErrUnknownItem
	}
	delete(s.items, itemID)
	s.mu.Unlock()

	mounted.timer.Stop()
	return nil
}

// Close unmounts everything. No timer or settlement goroutine outlives it.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	timers := make([]*eligibility.Timer, 0, len(s.items))
	for id, mounted := range s.items {
		timers = append(timers, mounted.timer)
		delete(s.items, id)
	}
	s.mu.Unlock()

	s.cancel()
	for _, timer := range timers {
		timer.Stop()
	}
	s.wg.Wait()
}

// Attempt returns a copy of the item's presentation state.
func (s *Surface) Attempt(itemID string) (entities.ViewAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mounted, ok := s.items[itemID]
	if !ok {
		return entities.ViewAttempt{}, false
	}
	return mounted.attempt, true
}

func (s *Surface) Remaining(itemID string) (int, bool) {
	s.mu.Lock()
	mounted, ok := s.items[itemID]
	s.mu.Unlock()
	if !ok {
		return 0, false
	}
	return mounted.timer.Remaining(), true
}

func (s *Surface) transition(itemID string, apply func(*mountedItem) bool) (*mountedItem, *stateUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, domainerrors.ErrSurfaceClosed
	}
	mounted, ok := s.items[itemID]
	if !ok {
		return nil, nil, domainerrors.ErrUnknownItem
	}
	if apply == nil || !apply(mounted) {
		return mounted, nil, nil
	}
	return mounted, &stateUpdate{itemID: itemID, state: mounted.attempt.State}, nil
}

func (s *Surface) onTick(itemID string, remaining int) {
	s.mu.Lock()
	mounted, ok := s.items[itemID]
	if !ok || mounted.attempt.State != entities.AttemptEligiblePending {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.publish(stateUpdate{itemID: itemID, state: entities.AttemptEligiblePending, remaining: remaining})
}

func (s *Surface) onFire(itemID string) {
	s.mu.Lock()
	mounted, ok := s.items[itemID]
	if s.closed || !ok || !mounted.attempt.BeginSettling(s.now()) {
		s.mu.Unlock()
		return
	}
	trigger := mounted.trigger
	s.wg.Add(1)
	s.mu.Unlock()

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveEligibilityFired(string(trigger))
	}
	s.publish(stateUpdate{itemID: itemID, state: entities.AttemptSettling})
	go s.settle(itemID)
}

func (s *Surface) settle(itemID string) {
	defer s.wg.Done()
	logger := application.ResolveLogger(s.deps.Logger)

	outcome, err := s.deps.Settler.SettleView(s.ctx, itemID)

	s.mu.Lock()
	mounted, ok := s.items[itemID]
	if !ok {
		s.mu.Unlock()
		return
	}
	settled := err == nil || errors.Is(err, domainerrors.ErrAlreadyProcessed)
	restarted := false
	switch {
	case err == nil:
		mounted.attempt.Settle(&outcome, s.now())
	case settled:
		mounted.attempt.Settle(nil, s.now())
	case errors.Is(err, domainerrors.ErrSettlementInFlight):
		s.mu.Unlock()
		return
	default:
		mounted.attempt.FailTransport(s.now())
		mounted.timer.Rearm()
		// Immediate triggers would refire at once, so they wait for the
		// next visible instead of looping against a failing ledger.
		restarted = mounted.visible && mounted.trigger != eligibility.TriggerImmediate
		if restarted {
			mounted.timer.Visible()
		} else {
			mounted.attempt.Hide(s.now())
		}
	}
	update := stateUpdate{itemID: itemID, state: mounted.attempt.State}
	if restarted && mounted.trigger == eligibility.TriggerDwell {
		update.remaining = eligibility.DwellSeconds
	}
	s.mu.Unlock()

	if settled {
		mounted.timer.MarkProcessed()
	} else {
		logger.Info("settlement failed and was rearmed",
			"event", "view_settlement_rearmed",
			"module", moduleName,
			"layer", "application",
			"item_id", itemID,
			"countdown_restarted", restarted,
			"error", err.Error(),
		)
	}
	s.publish(update)
}

func (s *Surface) publish(update stateUpdate) {
	if s.deps.States != nil {
		s.deps.States.PublishState(update.itemID, update.state, update.remaining)
	}
}

func (s *Surface) now() time.Time {
	if s.deps.Clock != nil {
		return s.deps.Clock.Now()
	}
	return time.Now()
}
