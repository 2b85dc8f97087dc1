// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/huddle-chat/huddle/lib/fingerprint"
)

// ErrNoSession is returned when no session has been stored yet.
var ErrNoSession = errors.New("session: no session stored, run \"huddle-realtime login\" first")

// Session is a logged-in device's authentication state.
type Session struct {
	UserID     string `json:"user_id"`
	DeviceID   string `json:"device_id,omitempty"`
	Homeserver string `json:"homeserver"`

	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is when the access token stops being accepted. Zero
	// means the token does not expire, or that its lifetime is
	// unknown and must be read from the token itself.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Fingerprint returns a short non-reversible identifier for the
// access token, suitable for logs.
func (s *Session) Fingerprint() string {
	return fingerprint.Token(s.AccessToken)
}

// LogValue keeps tokens out of logs.
func (s *Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", s.UserID),
		slog.String("device_id", s.DeviceID),
		slog.String("token", s.Fingerprint()),
		slog.Time("expires_at", s.ExpiresAt),
	)
}

// Expiry returns when the access token expires. An explicit ExpiresAt
// wins; otherwise a JWT access token's exp claim is used. The second
// result is false when the token has no known expiry.
func (s *Session) Expiry() (time.Time, bool) {
	if !s.ExpiresAt.IsZero() {
		return s.ExpiresAt, true
	}
	return tokenExpiry(s.AccessToken)
}

func (s *Session) equal(other *Session) bool {
	return s.UserID == other.UserID &&
		s.DeviceID == other.DeviceID &&
		s.Homeserver == other.Homeserver &&
		s.AccessToken == other.AccessToken &&
		s.RefreshToken == other.RefreshToken &&
		s.ExpiresAt.Equal(other.ExpiresAt)
}

func (s *Session) validate() error {
	switch {
	case s.UserID == "":
		return errors.New("session: missing user_id")
	case s.Homeserver == "":
		return errors.New("session: missing homeserver")
	case s.AccessToken == "":
		return errors.New("session: missing access_token")
	}
	return nil
}

// tokenExpiry reads the exp claim of a JWT without verifying its
// signature. The homeserver verifies the token; the claim only tells
// us when to refresh. Opaque tokens report no expiry.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	expiration, err := claims.GetExpirationTime()
	if err != nil || expiration == nil {
		return time.Time{}, false
	}
	return expiration.Time, true
}
