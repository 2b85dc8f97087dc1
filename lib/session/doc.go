// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package session persists and refreshes a Huddle user's homeserver
// session.
//
// A [FileStore] keeps the session on disk encrypted to a local age
// X25519 identity, so the file alone does not leak the tokens. A
// [Provider] holds the session in memory, refreshes the access token
// through the homeserver shortly before it expires (or after the
// transport reports it as rejected), and writes the refreshed session
// back to the store. [Provider.Watch] picks up sessions written by
// another process, such as "huddle-realtime login" while the daemon
// is running.
package session
