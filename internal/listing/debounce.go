package listing

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of values: fn receives the latest pushed value
// once wait has elapsed without a further Push.
type Debouncer[T any] struct {
	wait time.Duration
	fn   func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending T
	armed   bool
	stopped bool
	// gen counts pushes; a timer only delivers for the push that armed it.
	gen uint64
}

// NewDebouncer returns a debouncer invoking fn after wait of quiet.
func NewDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Push records v as the latest value and restarts the quiet period.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = v
	d.armed = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
}

// fire delivers the pending value if gen is still the latest push. A timer
// whose Stop lost the race with its expiry carries an older gen and is a
// no-op.
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.take()
	d.mu.Unlock()
	d.fn(v)
}

// take disarms and returns the pending value. d.mu must be held.
func (d *Debouncer[T]) take() T {
	v := d.pending
	d.armed = false
	var zero T
	d.pending = zero
	return v
}

// Flush delivers a pending value immediately. It reports whether one was
// pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	if !d.armed || d.stopped {
		d.mu.Unlock()
		return false
	}
	v := d.take()
	d.mu.Unlock()
	d.fn(v)
	return true
}

// Stop discards any pending value; later pushes are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
