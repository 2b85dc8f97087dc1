// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Slot holds at most one pending callback. Scheduling a new callback
// cancels the previous one, and a callback that was already handed to
// the clock but superseded before it ran is discarded.
//
// Callbacks scheduled with a non-positive delay run on a new
// goroutine rather than synchronously, so Schedule never invokes f on
// the caller's stack. This matters for FakeClock, whose AfterFunc(0)
// is synchronous.
type Slot struct {
	clock Clock

	mu         sync.Mutex
	timer      *Timer
	generation uint64
	pending    bool
}

// NewSlot returns an empty Slot that schedules on c.
func NewSlot(c Clock) *Slot {
	return &Slot{clock: c}
}

// Schedule replaces any pending callback with f, to run after d.
func (s *Slot) Schedule(d time.Duration, f func()) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	generation := s.generation
	s.pending = true

	fire := func() {
		s.mu.Lock()
		if s.generation != generation {
			s.mu.Unlock()
			return
		}
		s.pending = false
		s.timer = nil
		s.mu.Unlock()
		f()
	}

	if d <= 0 {
		s.mu.Unlock()
		go fire()
		return
	}
	s.timer = s.clock.AfterFunc(d, fire)
	s.mu.Unlock()
}

// Stop cancels the pending callback. Returns true if one was pending.
func (s *Slot) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasPending := s.pending
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.pending = false
	return wasPending
}

// Pending reports whether a callback is scheduled and has not yet
// started.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
