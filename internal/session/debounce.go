package session

import (
	"sync"
	"time"

	"github.com/MimeLyc/contextual-doc-translator/internal/jobs"
)

// Debouncer collapses bursts of text changes into one call of fire with the
// latest text, once delay has passed without another change. fire runs on the
// dispatcher.
type Debouncer struct {
	delay    time.Duration
	dispatch jobs.Dispatcher
	fire     func(text string)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	text    string
}

func NewDebouncer(delay time.Duration, dispatch jobs.Dispatcher, fire func(text string)) *Debouncer {
	return &Debouncer{delay: delay, dispatch: dispatch, fire: fire}
}

// Trigger records text and restarts the timer.
func (d *Debouncer) Trigger(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	d.text = text
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.dispatch.Post(func() { d.fireIf(gen) })
	})
}

// A timer that fired just before a newer Trigger still posts; gen drops it.
func (d *Debouncer) fireIf(gen uint64) {
	d.mu.Lock()
	if !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	text := d.text
	d.mu.Unlock()

	d.fire(text)
}

// Flush fires a pending change now. Call it on the dispatcher's context.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	text := d.text
	d.mu.Unlock()

	d.fire(text)
	return true
}

// Cancel drops a pending change.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
