// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSlotReplacesPending(t *testing.T) {
	clock := Fake(epoch)
	slot := NewSlot(clock)
	var first, second atomic.Bool

	slot.Schedule(time.Second, func() { first.Store(true) })
	slot.Schedule(2*time.Second, func() { second.Store(true) })

	if count := clock.PendingCount(); count != 1 {
		t.Fatalf("PendingCount() = %d, want 1", count)
	}
	clock.Advance(2 * time.Second)
	if first.Load() {
		t.Fatal("replaced callback fired")
	}
	if !second.Load() {
		t.Fatal("replacement callback did not fire")
	}
	if slot.Pending() {
		t.Fatal("Pending() = true after fire")
	}
}

func TestSlotStop(t *testing.T) {
	clock := Fake(epoch)
	slot := NewSlot(clock)
	var fired atomic.Bool

	slot.Schedule(time.Second, func() { fired.Store(true) })
	if !slot.Pending() {
		t.Fatal("Pending() = false after Schedule")
	}
	if !slot.Stop() {
		t.Fatal("Stop() = false with pending callback")
	}
	if slot.Stop() {
		t.Fatal("second Stop() = true")
	}
	clock.Advance(time.Minute)
	if fired.Load() {
		t.Fatal("stopped callback fired")
	}
}

func TestSlotImmediateRunsAsync(t *testing.T) {
	clock := Fake(epoch)
	slot := NewSlot(clock)
	done := make(chan struct{})

	slot.Schedule(0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("immediate callback did not run")
	}
	if count := clock.PendingCount(); count != 0 {
		t.Fatalf("PendingCount() = %d, want 0", count)
	}
}

func TestSlotImmediateSupersedesDelayed(t *testing.T) {
	clock := Fake(epoch)
	slot := NewSlot(clock)
	var stale atomic.Bool
	done := make(chan struct{})

	slot.Schedule(time.Second, func() { stale.Store(true) })
	slot.Schedule(0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("immediate callback did not run")
	}
	clock.Advance(time.Minute)
	if stale.Load() {
		t.Fatal("superseded delayed callback fired")
	}
}
