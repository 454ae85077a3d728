// Package reminder keeps at most one pending nudge per conversation.
package reminder

import (
	"sync"
	"time"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// Scheduler owns single-shot timers keyed by conversation
type Scheduler struct {
	mu     sync.Mutex
	timers map[models.ContactKey]*pending
	seq    uint64
}

type pending struct {
	timer *time.Timer
	seq   uint64
	due   time.Time
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[models.ContactKey]*pending),
	}
}

// Claim reports whether the timer that fired is still the one pending for its
// key, and consumes it. Only the first call can return true.
type Claim func() bool

// Schedule runs fn once after delay, replacing any timer already pending for key.
// Callers that reschedule under their own lock must call claim under that same
// lock before acting, since fn may start before a replacement is made.
func (s *Scheduler) Schedule(key models.ContactKey, delay time.Duration, fn func(claim Claim)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.timers[key]; ok {
		p.timer.Stop()
	}

	s.seq++
	seq := s.seq
	timer := time.AfterFunc(delay, func() {
		// a replaced or cancelled timer can still get here if Stop lost the race
		if !s.current(key, seq) {
			return
		}
		fn(func() bool { return s.claim(key, seq) })
	})
	s.timers[key] = &pending{timer: timer, seq: seq, due: time.Now().Add(delay)}
}

// Cancel stops the pending timer for key. It reports whether one was pending.
func (s *Scheduler) Cancel(key models.ContactKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.timers[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.timers, key)
	return true
}

// Pending reports whether a timer is waiting for key and when it is due
func (s *Scheduler) Pending(key models.ContactKey) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.timers[key]
	if !ok {
		return time.Time{}, false
	}
	return p.due, true
}

// Len returns the number of pending timers
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, p := range s.timers {
		p.timer.Stop()
		delete(s.timers, key)
	}
}

func (s *Scheduler) current(key models.ContactKey, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.timers[key]
	return ok && p.seq == seq
}

func (s *Scheduler) claim(key models.ContactKey, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.timers[key]
	if !ok || p.seq != seq {
		return false
	}
	delete(s.timers, key)
	return true
}
