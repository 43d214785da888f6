// internal/process/wizard/debounce.go
package wizard

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one deferred call. Every
// trigger cancels and reschedules the timer, so only the newest write
// fires; Cancel lets navigation take over the pending work synchronously.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	pending bool
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules the call after the debounce window, superseding any
// previously scheduled call.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = true
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.fn()
}

// Cancel drops any scheduled call and reports whether one was pending. The
// caller is expected to perform the work itself when true.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasPending := d.pending
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	return wasPending
}

// Stop discards pending work without running it.
func (d *Debouncer) Stop() {
	d.Cancel()
}
