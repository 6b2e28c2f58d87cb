package quota

import (
	"sync"
	"time"
)

// Ledger tracks per-requester unit consumption inside a rolling time window.
// A requester key is an opaque string derived from the caller's connection;
// nothing else about the caller is retained.
type Ledger struct {
	window time.Duration
	budget int

	mu      sync.Mutex
	records map[string]*record

	now func() time.Time
}

// record holds one requester's consumption. Records roll forward lazily:
// once the window elapses the next access resets it, nothing sweeps actively.
type record struct {
	windowStart time.Time
	used        int
}

// NewLedger creates a ledger with the given unit budget per window.
func NewLedger(budget int, window time.Duration) *Ledger {
	return &Ledger{
		window:  window,
		budget:  budget,
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Remaining returns the budget minus consumption recorded inside the current
// window. With no record, or an elapsed window, the full budget remains.
func (l *Ledger) Remaining(requester string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.current(requester)
	return l.budget - r.used
}

// Charge adds units to the requester's consumption and returns the
// post-charge remaining value. The result may go negative: callers are
// expected to check Remaining before committing to costly work and charge
// the actual cost afterward, which can exceed the estimate.
func (l *Ledger) Charge(requester string, units int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.current(requester)
	r.used += units
	return l.budget - r.used
}

// Budget returns the configured per-window unit budget.
func (l *Ledger) Budget() int {
	return l.budget
}

// current returns the live record for a requester, lazily resetting it if
// the window has elapsed. Caller holds l.mu.
func (l *Ledger) current(requester string) *record {
	now := l.now()

	r, ok := l.records[requester]
	if !ok {
		r = &record{windowStart: now}
		l.records[requester] = r
		return r
	}
	if now.Sub(r.windowStart) >= l.window {
		r.windowStart = now
		r.used = 0
	}
	return r
}
