// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"errors"
	"strings"
)

// ErrTokenExpired marks a failure caused by an outdated access token.
// Transports wrap it (or return it) when the server rejects the token;
// the manager retries such failures immediately instead of backing off.
var ErrTokenExpired = errors.New("realtime: token expired")

// ErrNoAccessToken is returned by the auth step when the session has no
// access token.
var ErrNoAccessToken = errors.New("realtime: session has no access token")

// tokenExpiredSignature is the text some transports put in the error
// message instead of returning a typed error.
const tokenExpiredSignature = "token has expired"

// IsTokenExpired reports whether err indicates an expired token, either
// through ErrTokenExpired or through the message signature.
func IsTokenExpired(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), tokenExpiredSignature)
}
