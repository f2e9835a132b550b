package eligibility

import (
	"sync"
	"time"

	"savemore/contexts/community-experience/view-settlement/domain/entities"
	"savemore/contexts/community-experience/view-settlement/ports"
)

const (
	// DwellSeconds is how long a priced image must stay visible to count.
	DwellSeconds = 30
	tickInterval = time.Second
)

// Trigger is what makes a view billable.
type Trigger string

const (
	TriggerImmediate Trigger = "immediate"
	TriggerDwell     Trigger = "dwell"
	TriggerPlayback  Trigger = "playback_ended"
)

// TriggerFor selects the eligibility rule for viewerID looking at item.
// Free items and owner views fire as soon as they are visible.
func TriggerFor(item entities.ContentItem, viewerID string) Trigger {
	if !item.BillableFor(viewerID) {
		return TriggerImmediate
	}
	if item.MediaKind == entities.MediaKindVideo {
		return TriggerPlayback
	}
	return TriggerDwell
}

type State string

const (
	StateIdle      State = "idle"
	StateArmed     State = "armed"
	StateCounting  State = "counting"
	StateFired     State = "fired"
	StateProcessed State = "processed"
	StateStopped   State = "stopped"
)

type Config struct {
	Trigger   Trigger
	NewTicker ports.TickerFactory
	// OnTick receives the seconds left after each countdown step.
	OnTick func(remainingSeconds int)
	// OnFire is called at most once per arming, never while the timer's
	// lock is held.
	OnFire func()
}

// Timer decides the moment one mounted item's view becomes billable. A fired
// timer stays fired until MarkProcessed or Rearm.
type Timer struct {
	mu         sync.Mutex
	cfg        Config
	state      State
	remaining  int
	generation uint64
	cancel     chan struct{}
	wg         sync.WaitGroup
}

func NewTimer(cfg Config) *Timer {
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewRealTicker
	}
	return &Timer{cfg: cfg, state: StateIdle, remaining: DwellSeconds}
}

// Visible reports that the item came into view.
func (t *Timer) Visible() {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return
	}
	switch t.cfg.Trigger {
	case TriggerImmediate:
		t.state = StateFired
		t.mu.Unlock()
		t.fire()
		return
	case TriggerPlayback:
		t.state = StateArmed
		t.mu.Unlock()
		return
	}

	t.state = StateCounting
	t.remaining = DwellSeconds
	t.generation++
	t.cancel = make(chan struct{})
	ticker := t.cfg.NewTicker(tickInterval)
	t.wg.Add(1)
	go t.countdown(t.generation, ticker, t.cancel)
	t.mu.Unlock()
}

// Hidden cancels a pending countdown or an armed playback trigger. The next
// Visible starts a fresh attempt.
func (t *Timer) Hidden() {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateCounting:
		t.stopCountdownLocked()
		t.state = StateIdle
	case StateArmed:
		t.state = StateIdle
	}
	t.remaining = DwellSeconds
}

// PlaybackEnded fires an armed video trigger. It is ignored for other
// triggers and when the item is not visible.
func (t *Timer) PlaybackEnded() {
	t.mu.Lock()
	if t.cfg.Trigger != TriggerPlayback || t.state != StateArmed {
		t.mu.Unlock()
		return
	}
	t.state = StateFired
	t.mu.Unlock()
	t.fire()
}

// MarkProcessed makes the timer permanently inert for this mount.
func (t *Timer) MarkProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateStopped {
		return
	}
	t.stopCountdownLocked()
	t.state = StateProcessed
}

// Rearm returns a fired timer to idle so a later Visible can retry.
func (t *Timer) Rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateFired {
		return
	}
	t.state = StateIdle
	t.remaining = DwellSeconds
}

// Stop cancels any countdown and waits for its goroutine to exit. It must
// not be called from OnTick or OnFire.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopCountdownLocked()
	t.state = StateStopped
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) stopCountdownLocked() {
	if t.cancel != nil {
		close(t.cancel)
		t.cancel = nil
	}
	t.generation++
}

func (t *Timer) countdown(generation uint64, ticker ports.Ticker, cancel <-chan struct{}) {
	defer t.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C():
		}

		t.mu.Lock()
		if t.generation != generation || t.state != StateCounting {
			t.mu.Unlock()
			return
		}
		t.remaining--
		remaining := t.remaining
		done := remaining <= 0
		if done {
			t.state = StateFired
			t.cancel = nil
		}
		t.mu.Unlock()

		if t.cfg.OnTick != nil {
			t.cfg.OnTick(remaining)
		}
		if done {
			t.fire()
			return
		}
	}
}

func (t *Timer) fire() {
	if t.cfg.OnFire != nil {
		t.cfg.OnFire()
	}
}
