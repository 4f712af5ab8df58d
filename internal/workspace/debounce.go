package workspace

import (
	"sync"
	"time"
)

// debounced is a cancellable deferred task: each Schedule call supersedes
// any pending run and restarts the wait. Both the autosave and the coach
// idle check are driven by one of these.
type debounced struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
}

func newDebounced(delay time.Duration, fn func()) *debounced {
	return &debounced{delay: delay, fn: fn}
}

// Schedule arms the task, cancelling any pending run. The function fires on
// its own goroutine after the quiet period elapses.
func (d *debounced) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Stop cancels any pending run. A run already started is not interrupted;
// only its results are conditionally ignored by the task's own guards.
func (d *debounced) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
