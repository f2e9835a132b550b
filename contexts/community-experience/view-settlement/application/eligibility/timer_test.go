package eligibility

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savemore/contexts/community-experience/view-settlement/domain/entities"
	"savemore/contexts/community-experience/view-settlement/ports"
)

type fakeTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }

func (f *fakeTicker) Stop() { f.once.Do(func() { close(f.stopped) }) }

func (f *fakeTicker) isStopped() bool {
	select {
	case <-f.stopped:
		return true
	default:
		return false
	}
}

// Tick delivers one tick and reports false once the ticker has been stopped.
func (f *fakeTicker) Tick() bool {
	select {
	case f.c <- time.Now():
		return true
	case <-f.stopped:
		return false
	}
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *tickerFactory) New(time.Duration) ports.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticker := &fakeTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	f.tickers = append(f.tickers, ticker)
	return ticker
}

func (f *tickerFactory) Last() *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[len(f.tickers)-1]
}

func (f *tickerFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

type timerHarness struct {
	timer   *Timer
	tickers *tickerFactory
	ticks   chan int
	fired   atomic.Int32
}

func newHarness(trigger Trigger) *timerHarness {
	h := &timerHarness{tickers: &tickerFactory{}, ticks: make(chan int, DwellSeconds+1)}
	h.timer = NewTimer(Config{
		Trigger:   trigger,
		NewTicker: h.tickers.New,
		OnTick:    func(remaining int) { h.ticks <- remaining },
		OnFire:    func() { h.fired.Add(1) },
	})
	return h
}

// advance delivers n ticks and waits until each has been applied.
func (h *timerHarness) advance(t *testing.T, n int) {
	t.Helper()
	ticker := h.tickers.Last()
	for i := 0; i < n; i++ {
		require.True(t, ticker.Tick())
		<-h.ticks
	}
}

func TestTriggerFor(t *testing.T) {
	image := entities.ContentItem{ContentID: "p1", OwnerID: "u1", StarPrice: 5, MediaKind: entities.MediaKindImage}
	video := entities.ContentItem{ContentID: "v1", OwnerID: "u1", StarPrice: 5, MediaKind: entities.MediaKindVideo}
	free := entities.ContentItem{ContentID: "f1", OwnerID: "u1", MediaKind: entities.MediaKindVideo}

	assert.Equal(t, TriggerDwell, TriggerFor(image, "u2"))
	assert.Equal(t, TriggerPlayback, TriggerFor(video, "u2"))
	assert.Equal(t, TriggerImmediate, TriggerFor(free, "u2"))
	assert.Equal(t, TriggerImmediate, TriggerFor(image, "u1"))
}

func TestDwellFiresAtExactlyThirtySeconds(t *testing.T) {
	h := newHarness(TriggerDwell)
	h.timer.Visible()

	h.advance(t, DwellSeconds-1)
	assert.Zero(t, h.fired.Load())
	assert.Equal(t, 1, h.timer.Remaining())
	assert.Equal(t, StateCounting, h.timer.State())

	h.advance(t, 1)
	require.Eventually(t, func() bool { return h.fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateFired, h.timer.State())

	h.timer.Visible()
	assert.Equal(t, 1, h.tickers.Count())
	h.timer.Stop()
	assert.EqualValues(t, 1, h.fired.Load())
}

func TestDwellInterruptedAtFifteenSecondsNeverFires(t *testing.T) {
	h := newHarness(TriggerDwell)
	h.timer.Visible()
	h.advance(t, 15)

	h.timer.Hidden()
	ticker := h.tickers.Last()
	require.Eventually(t, ticker.isStopped, time.Second, time.Millisecond)
	assert.Equal(t, StateIdle, h.timer.State())
	assert.Equal(t, DwellSeconds, h.timer.Remaining())

	h.timer.Stop()
	assert.Zero(t, h.fired.Load())
}

func TestDwellRestartsFromScratchOnReturn(t *testing.T) {
	h := newHarness(TriggerDwell)
	h.timer.Visible()
	h.advance(t, 20)
	h.timer.Hidden()

	h.timer.Visible()
	assert.Equal(t, 2, h.tickers.Count())
	h.advance(t, 29)
	assert.Zero(t, h.fired.Load())
	h.advance(t, 1)
	require.Eventually(t, func() bool { return h.fired.Load() == 1 }, time.Second, time.Millisecond)
	h.timer.Stop()
}

func TestPlaybackFiresOnlyOnEndedAndOnce(t *testing.T) {
	h := newHarness(TriggerPlayback)

	h.timer.PlaybackEnded()
	assert.Zero(t, h.fired.Load())

	h.timer.Visible()
	assert.Zero(t, h.tickers.Count())
	assert.Zero(t, h.fired.Load())

	h.timer.PlaybackEnded()
	h.timer.PlaybackEnded()
	assert.EqualValues(t, 1, h.fired.Load())
	h.timer.Stop()
}

func TestImmediateFiresOnFirstVisibility(t *testing.T) {
	h := newHarness(TriggerImmediate)
	h.timer.Visible()
	h.timer.Visible()
	assert.EqualValues(t, 1, h.fired.Load())
	assert.Zero(t, h.tickers.Count())
}

func TestRearmAllowsRetryAndProcessedBlocksIt(t *testing.T) {
	h := newHarness(TriggerImmediate)
	h.timer.Visible()
	h.timer.Rearm()
	h.timer.Visible()
	assert.EqualValues(t, 2, h.fired.Load())

	h.timer.MarkProcessed()
	h.timer.Rearm()
	h.timer.Visible()
	assert.EqualValues(t, 2, h.fired.Load())
	assert.Equal(t, StateProcessed, h.timer.State())
}

func TestStopCancelsRunningCountdown(t *testing.T) {
	h := newHarness(TriggerDwell)
	h.timer.Visible()
	h.advance(t, 3)

	h.timer.Stop()
	assert.False(t, h.tickers.Last().Tick())
	h.timer.Visible()
	assert.Equal(t, StateStopped, h.timer.State())
	assert.Zero(t, h.fired.Load())
}
