// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"slices"
	"sync"
)

// EnvironmentEvent is a change in client visibility or connectivity.
type EnvironmentEvent string

const (
	EnvironmentHidden  EnvironmentEvent = "hidden"
	EnvironmentVisible EnvironmentEvent = "visible"
	EnvironmentOnline  EnvironmentEvent = "online"
	EnvironmentOffline EnvironmentEvent = "offline"
)

// Environment delivers visibility and connectivity events. Listen
// registers a listener and returns a function that removes it. Listen
// must not deliver events synchronously from within the call.
type Environment interface {
	Listen(listener func(EnvironmentEvent)) (detach func())
}

// Signals is an in-process Environment. The control socket and the
// connectivity prober feed it; managers listen to it.
type Signals struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []signalListener
}

type signalListener struct {
	id       uint64
	listener func(EnvironmentEvent)
}

// NewSignals returns a Signals with no listeners.
func NewSignals() *Signals {
	return &Signals{}
}

// Listen registers listener. The returned detach is idempotent.
func (s *Signals) Listen(listener func(EnvironmentEvent)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, signalListener{id: id, listener: listener})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l signalListener) bool {
			return l.id == id
		})
	}
}

// Emit delivers event to every listener on the calling goroutine, in
// registration order. Listeners run without the Signals lock held.
func (s *Signals) Emit(event EnvironmentEvent) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.listener(event)
	}
}

// ListenerCount returns the number of registered listeners.
func (s *Signals) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// handleEnvironment is the manager's Environment listener.
func (m *Manager) handleEnvironment(event EnvironmentEvent) {
	switch event {
	case EnvironmentHidden:
		m.hide()
	case EnvironmentVisible:
		m.show()
	case EnvironmentOnline:
		m.logger.Info("network online, resubscribing all topics")
		m.resubscribe(func(*entry) bool { return true })
	case EnvironmentOffline:
		m.logger.Info("network offline, leaving reconnection to pending retries")
	default:
		m.logger.Warn("ignoring unknown environment event", "event", string(event))
	}
}

// hide starts the shared idle timer unless it is already running.
func (m *Manager) hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.hidden {
		return
	}
	m.hidden = true
	session := m.session
	m.idle.Schedule(m.config.IdleTimeout, func() { m.idleDisconnect(session) })
	m.logger.Debug("client hidden, idle timer started", "idle_timeout", m.config.IdleTimeout)
}

// show cancels the idle timer and resubscribes every topic that has no
// connected instance.
func (m *Manager) show() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	wasHidden := m.hidden
	m.hidden = false
	m.idle.Stop()
	m.mu.Unlock()

	m.logger.Debug("client visible", "was_hidden", wasHidden)
	m.resubscribe(func(e *entry) bool {
		return e.channel == nil || !e.channel.State().Connected()
	})
}

// idleDisconnect removes every live instance and cancels every pending
// retry. Factories stay registered.
func (m *Manager) idleDisconnect(session uint64) {
	m.mu.Lock()
	if !m.started || m.session != session || !m.hidden {
		m.mu.Unlock()
		return
	}
	var removed []Channel
	for _, e := range m.entries {
		e.retry.Stop()
		if channel := m.teardownLocked(e); channel != nil {
			removed = append(removed, channel)
		}
	}
	m.mu.Unlock()

	m.logger.Info("idle timeout reached while hidden, disconnecting",
		"idle_timeout", m.config.IdleTimeout,
		"channels", len(removed),
	)
	for _, channel := range removed {
		m.client.RemoveChannel(channel)
	}
}

// resubscribe resets the retry counter of every topic selected by want
// and schedules an immediate subscribe for it.
func (m *Manager) resubscribe(want func(*entry) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	for _, e := range m.entries {
		if want(e) {
			m.resetLocked(e)
			m.scheduleLocked(e, 0)
		}
	}
}
