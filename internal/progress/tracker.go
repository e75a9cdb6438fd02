package progress

import (
	"sync"

	"pdf-translator/internal/types"
)

// Tracker remembers the last overall percentage of a session. It does not
// force progress to be monotonic: a drop means the worker restarted a phase.
type Tracker struct {
	mu   sync.Mutex
	last float64
	seen bool
}

// Observe records ev and returns the overall percentage after it together
// with whether the value went backwards. Diagnostics and errors leave the
// percentage unchanged.
func (t *Tracker) Observe(ev types.ProgressEvent) (value float64, restarted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.Kind != types.EventStage && ev.Kind != types.EventPercentage {
		return t.last, false
	}
	restarted = t.seen && ev.Value < t.last
	t.last = ev.Value
	t.seen = true
	return t.last, restarted
}

// Last returns the most recent overall percentage.
func (t *Tracker) Last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Reset forgets all observations.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = 0
	t.seen = false
}
