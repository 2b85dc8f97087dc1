// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/huddle-chat/huddle/lib/clock"
	"github.com/huddle-chat/huddle/messaging"
	"github.com/huddle-chat/huddle/realtime"
)

// DefaultProbeInterval is how often the prober checks the homeserver.
const DefaultProbeInterval = 15 * time.Second

// Pinger checks that the homeserver answers. *messaging.Client
// implements it.
type Pinger interface {
	ServerVersions(ctx context.Context) (*messaging.ServerVersionsResponse, error)
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	Homeserver Pinger
	Signals    *realtime.Signals

	// Interval between probes. Zero uses DefaultProbeInterval.
	Interval time.Duration

	// Timeout bounds one probe. Zero uses half the interval.
	Timeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Prober emits EnvironmentOnline and EnvironmentOffline into Signals
// when homeserver reachability changes. The homeserver is assumed
// reachable until a probe fails.
type Prober struct {
	homeserver Pinger
	signals    *realtime.Signals
	interval   time.Duration
	timeout    time.Duration
	clock      clock.Clock
	logger     *slog.Logger

	mu     sync.Mutex
	online bool
}

// NewProber creates a Prober.
func NewProber(config ProberConfig) (*Prober, error) {
	if config.Homeserver == nil {
		return nil, errors.New("transport: prober requires a homeserver")
	}
	if config.Signals == nil {
		return nil, errors.New("transport: prober requires signals")
	}
	if config.Interval <= 0 {
		config.Interval = DefaultProbeInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval / 2
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Prober{
		homeserver: config.Homeserver,
		signals:    config.Signals,
		interval:   config.Interval,
		timeout:    config.Timeout,
		clock:      config.Clock,
		logger:     config.Logger,
		online:     true,
	}, nil
}

// Online reports the result of the most recent probe.
func (p *Prober) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Run probes once immediately and then every interval until ctx is
// done.
func (p *Prober) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe checks the homeserver once and emits an event if reachability
// changed. It returns the probe result.
func (p *Prober) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	_, err := p.homeserver.ServerVersions(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return p.Online()
	}
	reachable := err == nil

	p.mu.Lock()
	changed := reachable != p.online
	p.online = reachable
	p.mu.Unlock()

	if !changed {
		return reachable
	}
	if reachable {
		p.logger.Info("homeserver reachable again")
		p.signals.Emit(realtime.EnvironmentOnline)
	} else {
		p.logger.Warn("homeserver unreachable", "error", err)
		p.signals.Emit(realtime.EnvironmentOffline)
	}
	return reachable
}
