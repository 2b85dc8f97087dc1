// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package control is the local control socket of the realtime daemon.
//
// The host shell reports visibility and connectivity changes through
// it, and the CLI uses it to inspect and nudge the subscription
// managers. The protocol is one CBOR request and one CBOR response
// per Unix socket connection. Every request carries an "action" field;
// the response is a [Response] envelope.
//
// Actions:
//
//   - visibility {hidden}: emits hidden or visible into the daemon's
//     realtime.Signals.
//   - network {online}: emits online or offline.
//   - reconnect {manager, topic}: resets the topic's retry counter and
//     resubscribes it now.
//   - status: returns a [StatusResponse] with every manager's topics.
//
// [Server] serves the protocol; [Client] calls it.
package control
