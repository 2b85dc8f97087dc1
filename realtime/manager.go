// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/huddle-chat/huddle/lib/clock"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultIdleTimeout      = 600 * time.Second
	DefaultMaxRetryAttempts = 10
)

// errNilChannel is reported when a factory returns no channel.
var errNilChannel = errors.New("realtime: factory returned nil channel")

// Config configures a Manager. The zero value is usable.
type Config struct {
	// Name identifies the manager in logs and status output.
	Name string

	// IdleTimeout is how long the client may stay hidden before every
	// topic is disconnected. Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	// MaxRetryAttempts is the number of backoff retries a topic gets
	// before it goes dormant. Zero means DefaultMaxRetryAttempts.
	MaxRetryAttempts int

	// DisableVisibilityOptimization keeps every topic connected
	// regardless of visibility. No Environment listener is attached
	// and no idle timer is ever started.
	DisableVisibilityOptimization bool

	// Environment supplies visibility and connectivity events. Nil
	// means none arrive.
	Environment Environment

	// Clock drives retry and idle timers. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger
}

// entry is the registry record for one topic.
type entry struct {
	topic     string
	factory   Factory
	callbacks Callbacks

	// channel is the live instance, nil between attempts.
	channel Channel

	// attempt identifies the current subscribe attempt. Zero means no
	// attempt is current; status events from any other attempt are
	// ignored.
	attempt uint64
	cancel  context.CancelFunc

	retries int
	dormant bool
	backoff *backoff.ExponentialBackOff
	retry   *clock.Slot
}

// Manager keeps a set of topics subscribed over a shared Client.
type Manager struct {
	client Client
	config Config
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	started bool
	// session counts Start calls so that a stale stop function or idle
	// timer from an earlier run does nothing.
	session     uint64
	stopFunc    func()
	detach      func()
	hidden      bool
	idle        *clock.Slot
	nextAttempt uint64
}

// New creates a Manager. Topics can be registered before Start; none
// are subscribed until then.
func New(client Client, config Config) *Manager {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.MaxRetryAttempts <= 0 {
		config.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Name != "" {
		logger = logger.With("manager", config.Name)
	}

	return &Manager{
		client:  client,
		config:  config,
		clock:   config.Clock,
		logger:  logger,
		entries: make(map[string]*entry),
		idle:    clock.NewSlot(config.Clock),
	}
}

// Name returns the configured manager name.
func (m *Manager) Name() string {
	return m.config.Name
}

// AddChannel registers factory under topic and returns a function
// equivalent to RemoveChannel(topic). A topic that is already
// registered is replaced: its live instance is removed and its pending
// retry cancelled. If the manager is started, the topic is subscribed
// immediately.
//
// An empty topic or nil factory is logged and ignored; the returned
// function then does nothing.
func (m *Manager) AddChannel(topic string, factory Factory, callbacks Callbacks) (remove func()) {
	if topic == "" || factory == nil {
		m.logger.Error("ignoring invalid channel registration",
			"topic", topic,
			"has_factory", factory != nil,
		)
		return func() {}
	}

	m.mu.Lock()
	var replaced Channel
	if prior := m.entries[topic]; prior != nil {
		prior.retry.Stop()
		replaced = m.teardownLocked(prior)
	}
	e := &entry{
		topic:     topic,
		factory:   factory,
		callbacks: callbacks,
		backoff:   newRetryBackoff(),
		retry:     clock.NewSlot(m.clock),
	}
	m.entries[topic] = e
	if m.started {
		m.scheduleLocked(e, 0)
	}
	m.mu.Unlock()

	if replaced != nil {
		m.logger.Info("replacing registered channel", "topic", topic)
		m.client.RemoveChannel(replaced)
	}
	return func() { m.RemoveChannel(topic) }
}

// RemoveChannel unregisters topic, cancels its pending retry and
// removes its live instance. Removing an unknown topic does nothing.
func (m *Manager) RemoveChannel(topic string) {
	m.mu.Lock()
	e := m.entries[topic]
	if e == nil {
		m.mu.Unlock()
		return
	}
	delete(m.entries, topic)
	e.retry.Stop()
	removed := m.teardownLocked(e)
	m.mu.Unlock()

	m.logger.Debug("removed channel", "topic", topic, "had_instance", removed != nil)
	if removed != nil {
		m.client.RemoveChannel(removed)
	}
}

// ReconnectChannel resets topic's retry counter and subscribes it
// immediately, superseding any pending backoff.
func (m *Manager) ReconnectChannel(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[topic]
	if e == nil {
		m.logger.Warn("reconnect requested for unknown topic", "topic", topic)
		return
	}
	m.resetLocked(e)
	if m.started {
		m.scheduleLocked(e, 0)
	}
}

// Start subscribes every registered topic and attaches the Environment
// listener when the visibility optimization is enabled. It returns a
// function that tears everything down: every live instance is removed,
// every timer cancelled, the registry cleared and the listener
// detached. Calling Start again before teardown returns the same
// function. The returned function is idempotent.
func (m *Manager) Start() (stop func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return m.stopFunc
	}

	m.started = true
	m.session++
	session := m.session
	for _, e := range m.entries {
		m.resetLocked(e)
		m.scheduleLocked(e, 0)
	}
	if !m.config.DisableVisibilityOptimization && m.config.Environment != nil {
		m.detach = m.config.Environment.Listen(m.handleEnvironment)
	}
	m.stopFunc = func() { m.stop(session) }

	m.logger.Info("realtime manager started",
		"topics", len(m.entries),
		"idle_timeout", m.config.IdleTimeout,
		"max_retry_attempts", m.config.MaxRetryAttempts,
		"visibility_optimization", !m.config.DisableVisibilityOptimization,
	)
	return m.stopFunc
}

func (m *Manager) stop(session uint64) {
	m.mu.Lock()
	if !m.started || m.session != session {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.hidden = false
	m.idle.Stop()

	var removed []Channel
	for _, e := range m.entries {
		e.retry.Stop()
		if channel := m.teardownLocked(e); channel != nil {
			removed = append(removed, channel)
		}
	}
	topics := len(m.entries)
	m.entries = make(map[string]*entry)
	detach := m.detach
	m.detach = nil
	m.stopFunc = nil
	m.mu.Unlock()

	if detach != nil {
		detach()
	}
	for _, channel := range removed {
		m.client.RemoveChannel(channel)
	}
	m.logger.Info("realtime manager stopped", "topics", topics, "channels_removed", len(removed))
}

// Started reports whether Start has been called without a matching
// teardown.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Snapshot returns the state of every registered topic, sorted by
// topic.
func (m *Manager) Snapshot() []TopicStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]TopicStatus, 0, len(m.entries))
	for _, e := range m.entries {
		status := TopicStatus{
			Topic:        e.topic,
			Live:         e.channel != nil,
			Retries:      e.retries,
			RetryPending: e.retry.Pending(),
			Dormant:      e.dormant,
		}
		if e.channel != nil {
			status.State = e.channel.State()
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Topic < statuses[j].Topic })
	return statuses
}

// subscribe runs one subscribe attempt for e. It is only ever invoked
// from e.retry.
func (m *Manager) subscribe(e *entry) {
	m.mu.Lock()
	if !m.started || m.entries[e.topic] != e {
		m.mu.Unlock()
		return
	}
	stale := m.teardownLocked(e)
	m.nextAttempt++
	attempt := m.nextAttempt
	ctx, cancel := context.WithCancel(context.Background())
	e.attempt = attempt
	e.cancel = cancel
	factory := e.factory
	m.mu.Unlock()

	if stale != nil {
		m.client.RemoveChannel(stale)
	}

	channel := factory(m.client)
	if channel == nil {
		m.handleStatus(e, attempt, nil, StatusEvent{Status: StatusChannelError, Err: errNilChannel})
		return
	}

	// A removal or newer attempt that landed while the factory ran
	// could not see this instance, so it is removed here.
	m.mu.Lock()
	if e.attempt != attempt || m.entries[e.topic] != e {
		m.mu.Unlock()
		cancel()
		m.client.RemoveChannel(channel)
		return
	}
	e.channel = channel
	m.mu.Unlock()

	m.logger.Debug("subscribing", "topic", e.topic, "attempt", attempt)

	if err := m.authorize(ctx); err != nil {
		m.handleStatus(e, attempt, channel, StatusEvent{Status: StatusChannelError, Err: err})
		return
	}

	events, err := channel.Subscribe(ctx)
	if err != nil {
		m.handleStatus(e, attempt, channel, StatusEvent{Status: StatusChannelError, Err: err})
		return
	}
	go m.watch(ctx, e, attempt, channel, events)
}

// watch feeds an attempt's status stream into handleStatus until the
// attempt ends. A stream that closes while its attempt is still current
// counts as StatusClosed.
func (m *Manager) watch(ctx context.Context, e *entry, attempt uint64, channel Channel, events <-chan StatusEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				m.handleStatus(e, attempt, channel, StatusEvent{Status: StatusClosed})
				return
			}
			if !m.handleStatus(e, attempt, channel, event) {
				return
			}
		}
	}
}

// handleStatus applies one transition of attempt and dispatches the
// topic's callback. It returns false once the attempt is finished or
// superseded.
func (m *Manager) handleStatus(e *entry, attempt uint64, channel Channel, event StatusEvent) bool {
	m.mu.Lock()
	if e.attempt != attempt || m.entries[e.topic] != e {
		m.mu.Unlock()
		m.logger.Debug("ignoring status from superseded attempt",
			"topic", e.topic,
			"attempt", attempt,
			"status", string(event.Status),
		)
		return false
	}

	var removed Channel
	more := false
	switch event.Status {
	case StatusSubscribed:
		m.resetLocked(e)
		e.retry.Stop()
		more = true
	case StatusClosed, StatusTimedOut:
		removed = m.teardownLocked(e)
		m.scheduleRetryLocked(e)
	case StatusChannelError:
		removed = m.teardownLocked(e)
		if IsTokenExpired(event.Err) {
			m.resetLocked(e)
			m.scheduleLocked(e, 0)
		} else {
			m.scheduleRetryLocked(e)
		}
	default:
		m.mu.Unlock()
		m.logger.Warn("ignoring unknown channel status",
			"topic", e.topic,
			"status", string(event.Status),
		)
		return true
	}
	callbacks := e.callbacks
	retries := e.retries
	m.mu.Unlock()

	if removed != nil {
		m.client.RemoveChannel(removed)
	}
	m.dispatch(e.topic, callbacks, channel, event, retries)
	return more
}

// scheduleRetryLocked schedules a backoff retry for e, or marks it
// dormant when the retry budget is spent.
func (m *Manager) scheduleRetryLocked(e *entry) {
	if e.retries >= m.config.MaxRetryAttempts {
		e.dormant = true
		m.logger.Warn("retry budget exhausted, topic dormant until reconnect",
			"topic", e.topic,
			"retries", e.retries,
			"max_retry_attempts", m.config.MaxRetryAttempts,
		)
		return
	}
	delay := e.backoff.NextBackOff()
	e.retries++
	m.scheduleLocked(e, delay)
	m.logger.Debug("scheduled retry",
		"topic", e.topic,
		"retry", e.retries,
		"delay", delay,
	)
}

// scheduleLocked replaces e's pending subscribe with one after d.
func (m *Manager) scheduleLocked(e *entry, d time.Duration) {
	e.retry.Schedule(d, func() { m.subscribe(e) })
}

func (m *Manager) resetLocked(e *entry) {
	e.retries = 0
	e.dormant = false
	e.backoff.Reset()
}

// teardownLocked ends e's current attempt and detaches its live
// instance, which the caller must pass to Client.RemoveChannel after
// unlocking.
func (m *Manager) teardownLocked(e *entry) Channel {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.attempt = 0
	channel := e.channel
	e.channel = nil
	return channel
}
