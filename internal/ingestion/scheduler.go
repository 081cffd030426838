package ingestion

import (
	"sync"
	"time"
)

// Scheduler runs delayed job-advance callbacks keyed by job id. Keying the
// pending timer lets a cancellation deregister the callback outright
// instead of relying only on the terminal-state re-check at fire time.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewScheduler constructs a Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule registers fn to run after delay for the given job, replacing
// any callback still pending for that job.
func (s *Scheduler) Schedule(jobID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[jobID]; ok {
		t.Stop()
	}
	s.timers[jobID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, jobID)
		s.mu.Unlock()
		fn()
	})
}

// Cancel deregisters any pending callback for the job. It reports whether
// a callback was still pending.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[jobID]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, jobID)
	return ok
}

// Stop cancels every pending callback and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
