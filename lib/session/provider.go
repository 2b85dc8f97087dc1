// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/huddle-chat/huddle/lib/clock"
	"github.com/huddle-chat/huddle/messaging"
)

// DefaultRefreshSkew is how long before expiry the provider refreshes
// an access token.
const DefaultRefreshSkew = time.Minute

// ErrTokenRejected is returned by Current when the access token was
// invalidated and no refresh token is available to replace it.
var ErrTokenRejected = errors.New("session: access token rejected and no refresh token is available")

// Refresher exchanges a refresh token for a new access token.
// *messaging.Client implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*messaging.RefreshResponse, error)
}

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	// Store loads the initial session and persists refreshed ones.
	// Required.
	Store *FileStore

	// Refresher refreshes access tokens. When nil, sessions are never
	// refreshed and an expired token is returned as is.
	Refresher Refresher

	// RefreshSkew is how early before expiry to refresh. Zero uses
	// DefaultRefreshSkew.
	RefreshSkew time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Provider serves the current session, refreshing it when needed.
// Concurrent callers that need a refresh share one homeserver request.
type Provider struct {
	store     *FileStore
	refresher Refresher
	skew      time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	current *Session
	// rejected is the access token the transport reported as
	// rejected. It forces a refresh even when the token has not
	// reached its expiry.
	rejected string
}

// NewProvider loads the stored session and returns a provider for it.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.Store == nil {
		return nil, errors.New("session: provider requires a store")
	}
	if config.RefreshSkew <= 0 {
		config.RefreshSkew = DefaultRefreshSkew
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	current, err := config.Store.Load()
	if err != nil {
		return nil, err
	}
	return &Provider{
		store:     config.Store,
		refresher: config.Refresher,
		skew:      config.RefreshSkew,
		clock:     config.Clock,
		logger:    config.Logger,
		current:   current,
	}, nil
}

// Current returns a copy of the current session, refreshing it first
// if the access token expires within the refresh skew or was
// rejected.
func (p *Provider) Current(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	current := *p.current
	rejected := p.rejected != "" && p.rejected == current.AccessToken
	p.mu.Unlock()

	if !rejected && !p.expiring(&current) {
		return &current, nil
	}
	if p.refresher == nil || current.RefreshToken == "" {
		if rejected {
			return nil, ErrTokenRejected
		}
		return &current, nil
	}

	// Keyed by the stale token. A flight started after the refresh
	// finished finds the newer token and returns it.
	resultChannel := p.group.DoChan(current.AccessToken, func() (any, error) {
		// Other callers may be waiting on this refresh.
		return p.refresh(context.WithoutCancel(ctx), current.AccessToken)
	})
	select {
	case result := <-resultChannel:
		if result.Err != nil {
			return nil, result.Err
		}
		refreshed := *result.Val.(*Session)
		return &refreshed, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate marks token as rejected by the server. The next Current
// call refreshes the session if token is still the current one.
func (p *Provider) Invalidate(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token == "" || p.current.AccessToken != token {
		return
	}
	p.rejected = token
	p.logger.Info("access token invalidated", "token", p.current.Fingerprint())
}

// Reload replaces the in-memory session with the stored one. Returns
// true when the stored session differs from the current one.
func (p *Provider) Reload() (bool, error) {
	stored, err := p.store.Load()
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if stored.equal(p.current) {
		return false, nil
	}
	p.current = stored
	p.rejected = ""
	p.logger.Info("session reloaded from disk", "session", stored)
	return true, nil
}

func (p *Provider) expiring(session *Session) bool {
	expiry, ok := session.Expiry()
	if !ok {
		return false
	}
	return !p.clock.Now().Add(p.skew).Before(expiry)
}

func (p *Provider) refresh(ctx context.Context, stale string) (*Session, error) {
	p.mu.Lock()
	base := *p.current
	p.mu.Unlock()
	if base.AccessToken != stale {
		return &base, nil
	}

	response, err := p.refresher.Refresh(ctx, base.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("session: refreshing access token: %w", err)
	}

	refreshed := base
	refreshed.AccessToken = response.AccessToken
	if response.RefreshToken != "" {
		refreshed.RefreshToken = response.RefreshToken
	}
	refreshed.ExpiresAt = time.Time{}
	if response.ExpiresInMS > 0 {
		refreshed.ExpiresAt = p.clock.Now().Add(time.Duration(response.ExpiresInMS) * time.Millisecond)
	}

	p.mu.Lock()
	p.current = &refreshed
	p.rejected = ""
	p.mu.Unlock()

	p.logger.Info("refreshed access token",
		"user_id", refreshed.UserID,
		"token", refreshed.Fingerprint(),
		"previous_token", base.Fingerprint(),
		"expires_at", refreshed.ExpiresAt,
	)

	if err := p.store.Save(&refreshed); err != nil {
		p.logger.Error("persisting refreshed session failed", "error", err)
	}
	return &refreshed, nil
}
