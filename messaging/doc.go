// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the subset of the Matrix client-server API
// that Huddle's realtime layer depends on.
//
// [Client] holds the homeserver URL and HTTP transport. It is
// stateless with respect to authentication: every authenticated call
// takes the access token as an argument, so one Client can be shared
// by code that rotates tokens underneath it. Login requests refresh
// tokens, and [Client.Refresh] exchanges a refresh token for a new
// access token.
//
// [Client.Sync] performs one /sync request. Long-polling and position
// tracking belong to the caller; the since token travels as a query
// parameter, not server-side state. [BuildFilter] constructs the inline
// JSON filter used to scope a sync to particular rooms and event types.
//
// All API errors are returned as [*MatrixError] with the standard Matrix
// error code and HTTP status code. [IsMatrixError] tests for a specific
// code and [IsUnknownToken] recognizes an expired or revoked access
// token.
package messaging
