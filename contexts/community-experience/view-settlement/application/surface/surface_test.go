package surface

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savemore/contexts/community-experience/view-settlement/application/eligibility"
	"savemore/contexts/community-experience/view-settlement/application/orchestrator"
	"savemore/contexts/community-experience/view-settlement/domain/entities"
	domainerrors "savemore/contexts/community-experience/view-settlement/domain/errors"
	"savemore/contexts/community-experience/view-settlement/ports"
)

type manualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               { m.once.Do(func() { close(m.stopped) }) }

type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (m *manualClock) NewTicker(time.Duration) ports.Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticker := &manualTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	m.tickers = append(m.tickers, ticker)
	return ticker
}

// advance delivers n ticks to the newest ticker. It returns false once the
// countdown has stopped listening.
func (m *manualClock) advance(n int) bool {
	m.mu.Lock()
	ticker := m.tickers[len(m.tickers)-1]
	m.mu.Unlock()
	for i := 0; i < n; i++ {
		select {
		case ticker.c <- time.Now():
		case <-ticker.stopped:
			return false
		}
	}
	return true
}

func (m *manualClock) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

type session struct{ viewerID string }

func (s session) ViewerID() (string, bool) { return s.viewerID, s.viewerID != "" }

type scriptedLedger struct {
	mu       sync.Mutex
	failures int
	calls    atomic.Int32
	// release, when set, holds every call until it is closed.
	release chan struct{}
}

func (l *scriptedLedger) ProcessView(_ context.Context, contentID string, viewerID string) (entities.SettlementOutcome, error) {
	l.calls.Add(1)
	if l.release != nil {
		<-l.release
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures > 0 {
		l.failures--
		return entities.SettlementOutcome{}, errors.New("ledger timeout")
	}
	return entities.SettlementOutcome{Success: true, Charged: true, StarsSpent: 10}, nil
}

func (l *scriptedLedger) GetBalance(_ context.Context, userID string) (entities.Balance, error) {
	return entities.Balance{UserID: userID, StarBalance: 40}, nil
}

type stateLog struct {
	mu     sync.Mutex
	states []entities.AttemptState
}

func (s *stateLog) PublishState(_ string, state entities.AttemptState, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.states); n > 0 && s.states[n-1] == state {
		return
	}
	s.states = append(s.states, state)
}

func (s *stateLog) snapshot() []entities.AttemptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.AttemptState(nil), s.states...)
}

type harness struct {
	surface *Surface
	clock   *manualClock
	ledger  *scriptedLedger
	states  *stateLog
}

func newHarness(t *testing.T, ledger *scriptedLedger) harness {
	t.Helper()
	h := harness{clock: &manualClock{}, ledger: ledger, states: &stateLog{}}
	sess := session{viewerID: "u2"}
	orch := orchestrator.New(orchestrator.Dependencies{Session: sess, Ledger: ledger})
	h.surface = New(context.Background(), Dependencies{
		Settler:   orch,
		Session:   sess,
		States:    h.states,
		NewTicker: h.clock.NewTicker,
	})
	t.Cleanup(h.surface.Close)
	return h
}

func (h harness) waitState(t *testing.T, itemID string, state entities.AttemptState) {
	t.Helper()
	require.Eventually(t, func() bool {
		attempt, ok := h.surface.Attempt(itemID)
		return ok && attempt.State == state
	}, time.Second, time.Millisecond)
}

var pricedImage = entities.ContentItem{ContentID: "p1", OwnerID: "u1", StarPrice: 10, MediaKind: entities.MediaKindImage}

func TestImageSettlesAfterDwell(t *testing.T) {
	h := newHarness(t, &scriptedLedger{})
	require.NoError(t, h.surface.Mount(pricedImage))
	require.NoError(t, h.surface.Visible("p1"))

	require.True(t, h.clock.advance(eligibility.DwellSeconds-1))
	require.Eventually(t, func() bool {
		remaining, ok := h.surface.Remaining("p1")
		return ok && remaining == 1
	}, time.Second, time.Millisecond)
	assert.Zero(t, h.ledger.calls.Load())

	require.True(t, h.clock.advance(1))
	h.waitState(t, "p1", entities.AttemptSettled)
	attempt, _ := h.surface.Attempt("p1")
	require.NotNil(t, attempt.Outcome)
	assert.True(t, attempt.Outcome.Charged)
	assert.EqualValues(t, 1, h.ledger.calls.Load())
	assert.Equal(t, []entities.AttemptState{
		entities.AttemptUnseen,
		entities.AttemptEligiblePending,
		entities.AttemptSettling,
		entities.AttemptSettled,
	}, h.states.snapshot())

	require.NoError(t, h.surface.Visible("p1"))
	assert.Equal(t, 1, h.clock.count())
}

func TestHiddenMidCountdownNeverSettles(t *testing.T) {
	h := newHarness(t, &scriptedLedger{})
	require.NoError(t, h.surface.Mount(pricedImage))
	require.NoError(t, h.surface.Visible("p1"))
	require.True(t, h.clock.advance(15))

	require.NoError(t, h.surface.Hidden("p1"))
	attempt, _ := h.surface.Attempt("p1")
	assert.Equal(t, entities.AttemptUnseen, attempt.State)
	assert.Zero(t, h.ledger.calls.Load())
}

func TestVideoSettlesOnPlaybackEnded(t *testing.T) {
	h := newHarness(t, &scriptedLedger{})
	video := entities.ContentItem{ContentID: "v1", OwnerID: "u1", StarPrice: 5, MediaKind: entities.MediaKindVideo}
	require.NoError(t, h.surface.Mount(video))
	require.NoError(t, h.surface.Visible("v1"))
	assert.Zero(t, h.clock.count())

	require.NoError(t, h.surface.PlaybackEnded("v1"))
	require.NoError(t, h.surface.PlaybackEnded("v1"))
	h.waitState(t, "v1", entities.AttemptSettled)
	assert.EqualValues(t, 1, h.ledger.calls.Load())
}

func TestTransportFailureReturnsFreeItemToUnseenUntilVisibleAgain(t *testing.T) {
	h := newHarness(t, &scriptedLedger{failures: 1})
	free := entities.ContentItem{ContentID: "f1", OwnerID: "u1", MediaKind: entities.MediaKindImage}
	require.NoError(t, h.surface.Mount(free))

	require.NoError(t, h.surface.Visible("f1"))
	require.Eventually(t, func() bool { return h.ledger.calls.Load() == 1 }, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		_ = h.surface.Visible("f1")
		attempt, _ := h.surface.Attempt("f1")
		return attempt.State == entities.AttemptSettled
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, h.ledger.calls.Load())
}

func TestTransportFailureRestartsCountdownWhileVisible(t *testing.T) {
	h := newHarness(t, &scriptedLedger{failures: 1})
	require.NoError(t, h.surface.Mount(pricedImage))
	require.NoError(t, h.surface.Visible("p1"))
	require.True(t, h.clock.advance(eligibility.DwellSeconds))

	require.Eventually(t, func() bool { return h.clock.count() == 2 }, time.Second, time.Millisecond)
	h.waitState(t, "p1", entities.AttemptEligiblePending)
	remaining, _ := h.surface.Remaining("p1")
	assert.Equal(t, eligibility.DwellSeconds, remaining)
	assert.EqualValues(t, 1, h.ledger.calls.Load())

	require.True(t, h.clock.advance(eligibility.DwellSeconds))
	h.waitState(t, "p1", entities.AttemptSettled)
	assert.EqualValues(t, 2, h.ledger.calls.Load())
}

func TestTransportFailureAfterHiddenLeavesItemUnseen(t *testing.T) {
	ledger := &scriptedLedger{failures: 1, release: make(chan struct{})}
	h := newHarness(t, ledger)
	require.NoError(t, h.surface.Mount(pricedImage))
	require.NoError(t, h.surface.Visible("p1"))
	require.True(t, h.clock.advance(eligibility.DwellSeconds))
	require.Eventually(t, func() bool { return ledger.calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.surface.Hidden("p1"))
	close(ledger.release)
	h.waitState(t, "p1", entities.AttemptUnseen)
	assert.Equal(t, 1, h.clock.count())

	require.NoError(t, h.surface.Visible("p1"))
	assert.Equal(t, 2, h.clock.count())
	require.True(t, h.clock.advance(eligibility.DwellSeconds))
	h.waitState(t, "p1", entities.AttemptSettled)
	assert.EqualValues(t, 2, ledger.calls.Load())
}

func TestRemountAfterSettlementStaysSettled(t *testing.T) {
	h := newHarness(t, &scriptedLedger{})
	free := entities.ContentItem{ContentID: "f1", OwnerID: "u1", MediaKind: entities.MediaKindImage}
	require.NoError(t, h.surface.Mount(free))
	require.NoError(t, h.surface.Visible("f1"))
	h.waitState(t, "f1", entities.AttemptSettled)

	require.NoError(t, h.surface.Unmount("f1"))
	require.NoError(t, h.surface.Mount(free))
	attempt, ok := h.surface.Attempt("f1")
	require.True(t, ok)
	assert.Equal(t, entities.AttemptSettled, attempt.State)
	require.NoError(t, h.surface.Visible("f1"))
	assert.EqualValues(t, 1, h.ledger.calls.Load())
}

func TestCloseCancelsCountdowns(t *testing.T) {
	h := newHarness(t, &scriptedLedger{})
	require.NoError(t, h.surface.Mount(pricedImage))
	require.NoError(t, h.surface.Visible("p1"))
	require.True(t, h.clock.advance(5))

	h.surface.Close()
	assert.False(t, h.clock.advance(1))
	assert.Zero(t, h.ledger.calls.Load())
	assert.ErrorIs(t, h.surface.Visible("p1"), domainerrors.ErrSurfaceClosed)
	assert.ErrorIs(t, h.surface.Mount(pricedImage), domainerrors.ErrSurfaceClosed)
}

func TestUnknownItemAndInvalidMount(t *testing.T) {
	h := newHarness(t, &scriptedLedger{})
	assert.ErrorIs(t, h.surface.Visible("missing"), domainerrors.ErrUnknownItem)
	assert.ErrorIs(t, h.surface.Unmount("missing"), domainerrors.ErrUnknownItem)
	assert.ErrorIs(t, h.surface.Mount(entities.ContentItem{ContentID: "x"}), domainerrors.ErrInvalidItem)
}
