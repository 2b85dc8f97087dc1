// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"fmt"

	"github.com/huddle-chat/huddle/lib/fingerprint"
)

// authorize makes sure the shared client carries the current session's
// access token. The token is applied only when it differs from the one
// already in place, so a burst of resubscribes costs one token change.
func (m *Manager) authorize(ctx context.Context) error {
	session, err := m.client.Session(ctx)
	if err != nil {
		return fmt.Errorf("realtime: retrieving session: %w", err)
	}
	if session == nil || session.AccessToken == "" {
		return ErrNoAccessToken
	}

	current := m.client.RealtimeToken()
	if current == session.AccessToken {
		return nil
	}
	m.client.SetRealtimeToken(session.AccessToken)
	m.logger.Info("applied realtime token",
		"user_id", session.UserID,
		"token", fingerprint.Token(session.AccessToken),
		"previous_token", fingerprint.Token(current),
	)
	return nil
}
