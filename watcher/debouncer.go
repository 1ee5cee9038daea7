package watcher

import (
	"sync"
	"time"
)

// DefaultDelay is the quiescence window used when none is configured.
const DefaultDelay = 20 * time.Millisecond

// Scheduler is a single-slot debounce timer. Every Schedule call cancels the
// pending timer and arms a new one, so the callback fires once, after a full
// delay without further calls.
type Scheduler struct {
	mu         sync.Mutex
	delay      time.Duration
	timer      *time.Timer
	generation uint64
	stopped    bool
}

// NewScheduler creates a scheduler with the given quiescence delay.
func NewScheduler(delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{delay: delay}
}

// Delay returns the configured quiescence window.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Schedule (re)arms the timer to run fn after the quiescence delay.
// Calls after Stop are ignored.
func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	generation := s.generation
	s.timer = time.AfterFunc(s.delay, func() {
		s.fire(generation, fn)
	})
}

// fire runs fn only if no later Schedule or Cancel superseded this timer.
// time.Timer.Stop can lose the race against an expiring timer; the generation
// check covers that window.
func (s *Scheduler) fire(generation uint64, fn func()) {
	s.mu.Lock()
	if s.stopped || generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	fn()
}

// Pending reports whether a timer is armed and has not fired yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Cancel drops the pending timer, if any. The scheduler stays usable.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Stop cancels the pending timer and rejects all future Schedule calls.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.stopped = true
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
}
