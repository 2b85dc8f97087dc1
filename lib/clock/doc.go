// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction and the
// cancellable timer slot used by the realtime subscription core.
//
// Production code accepts a Clock instead of calling time.Now,
// time.After, time.AfterFunc or time.NewTicker directly. Real()
// provides the standard library behavior; Fake() provides a
// deterministic clock that only moves when Advance is called.
//
// # Slots
//
// A [Slot] holds at most one pending callback. Scheduling a new
// callback supersedes the previous one, and Stop cancels whatever is
// pending. The realtime manager keeps one Slot per subscription topic
// and one for the shared idle-disconnect timer, which makes "never
// more than one pending retry per topic" a property of the type
// rather than of the callers:
//
//	retry := clock.NewSlot(c)
//	retry.Schedule(2*time.Second, resubscribe) // pending
//	retry.Schedule(0, resubscribe)             // replaces it
//	retry.Stop()                               // nothing pending
//
// # FakeClock Synchronization
//
// AfterFunc callbacks registered on a FakeClock run synchronously
// inside Advance, in deadline order. Use WaitForTimers to block until
// a goroutine has registered its timer before advancing, and
// PendingCount to assert how many timers are outstanding.
package clock
