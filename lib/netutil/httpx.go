// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network and HTTP I/O helpers shared by the
// homeserver client and the control socket.
//
// ReadResponse bounds JSON API body reads at MaxResponseSize. /sync
// responses can be large after a long disconnect, so the bound is
// generous; it exists only to stop a misbehaving server from exhausting
// memory.
//
// IsExpectedCloseError and IsTimeout classify connection errors so that
// callers can log normal teardown quietly and map deadline expiry onto
// their own timeout states.
package netutil

import (
	"io"
)

// MaxResponseSize is the bound on JSON API response body reads: 64 MB.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}
