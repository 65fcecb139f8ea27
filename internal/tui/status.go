package tui

import "sync"

// StatusTracker hands the run status from the step loop to the render
// goroutine. The loop writes through Update; the poller reads a snapshot
// through Get. Both sides go through the mutex, so neither touches the
// other's state directly.
type StatusTracker struct {
	mu sync.Mutex
	s  Status
}

func NewStatusTracker(initial Status) *StatusTracker {
	return &StatusTracker{s: initial}
}

// Update mutates the tracked status under the lock.
func (t *StatusTracker) Update(fn func(*Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.s)
}

// Get returns a snapshot of the tracked status. It satisfies StatusFunc.
func (t *StatusTracker) Get() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

// Finish marks the run done, recording a final error if one occurred.
func (t *StatusTracker) Finish(err error) {
	t.Update(func(s *Status) {
		s.Done = true
		if err != nil {
			s.Err = err
		}
	})
}
