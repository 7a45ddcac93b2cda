package snapshot

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid reload triggers into a single rebuild call
// per window. Reloads are also serialised: a Trigger arriving while a
// build is already in flight schedules exactly one more build after the
// in-flight one finishes rather than queuing unboundedly.
type Debouncer struct {
	window time.Duration
	rebuild func() error

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	pending bool
}

// NewDebouncer builds a Debouncer that calls rebuild at most once per
// window, no matter how many times Trigger is called within it.
func NewDebouncer(window time.Duration, rebuild func() error) *Debouncer {
	return &Debouncer{window: window, rebuild: rebuild}
}

// Trigger schedules a rebuild. If one is already scheduled within the
// current window, or already running, this call is coalesced into it.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.pending = true
		return
	}
	if d.timer != nil {
		return
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	d.timer = nil
	d.running = true
	d.mu.Unlock()

	err := d.rebuild()
	_ = err // surfaced via the build function's own error-reporting path (e.g. logging), not retried here

	d.mu.Lock()
	d.running = false
	rerun := d.pending
	d.pending = false
	d.mu.Unlock()

	if rerun {
		d.Trigger()
	}
}
