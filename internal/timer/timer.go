// Package timer provides named duration bookkeeping for backup phases.
package timer

import (
	"fmt"
	"sync"
	"time"
)

// Timer tracks named start/stop intervals. Stop without a matching
// Start returns an error rather than panicking, so best-effort cleanup
// paths can call it unconditionally.
type Timer struct {
	mu        sync.Mutex
	active    map[string]time.Time
	durations map[string]time.Duration
}

func New() *Timer {
	return &Timer{
		active:    make(map[string]time.Time),
		durations: make(map[string]time.Duration),
	}
}

// Start begins (or restarts) the named interval.
func (t *Timer) Start(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[name] = time.Now()
}

// Stop ends the named interval and records its duration.
func (t *Timer) Stop(name string) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	started, ok := t.active[name]
	if !ok {
		return 0, fmt.Errorf("timer %q is not running", name)
	}
	delete(t.active, name)
	d := time.Since(started)
	t.durations[name] = d
	return d, nil
}

// Duration returns the recorded duration for name, if any.
func (t *Timer) Duration(name string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.durations[name]
	return d, ok
}

// All returns a copy of every recorded duration.
func (t *Timer) All() map[string]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]time.Duration, len(t.durations))
	for k, v := range t.durations {
		out[k] = v
	}
	return out
}
