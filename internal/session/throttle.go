package session

import (
	"sync"
	"time"
)

// Throttle lets a task run at most once per window and never twice at
// the same time. The window is measured from the start of the last run
// that succeeded; a failed run leaves it open.
type Throttle struct {
	mu        sync.Mutex
	window    time.Duration
	lastRunAt time.Time
	inFlight  bool
	now       func() time.Time
}

// NewThrottle creates a throttle with the given window.
func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{window: window, now: time.Now}
}

// TryRun runs task unless a run is in flight or the window has not
// passed. It reports whether task ran and what it returned.
func (t *Throttle) TryRun(task func() error) (bool, error) {
	t.mu.Lock()
	if t.inFlight || (!t.lastRunAt.IsZero() && t.now().Sub(t.lastRunAt) < t.window) {
		t.mu.Unlock()
		return false, nil
	}
	t.inFlight = true
	started := t.now()
	t.mu.Unlock()

	err := task()

	t.mu.Lock()
	t.inFlight = false
	if err == nil {
		t.lastRunAt = started
	}
	t.mu.Unlock()
	return true, err
}

// Debouncer collapses a burst of triggers into one call made once the
// burst has been quiet for the delay.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn, replacing anything scheduled earlier.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
