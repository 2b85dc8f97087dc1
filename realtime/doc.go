// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package realtime keeps named push subscriptions alive over one shared
// realtime transport.
//
// A [Manager] owns a registry of topics. Each topic has a [Factory]
// that builds a fresh [Channel] for every subscribe attempt, optional
// [Callbacks], a retry counter with exponential backoff, and a single
// pending retry slot. Before every attempt the manager makes sure the
// shared [Client] carries the current access token, then subscribes
// the new instance and follows the attempt's [StatusEvent] stream:
//
//   - StatusSubscribed resets the retry counter and cancels any pending
//     retry.
//   - StatusClosed and StatusTimedOut schedule a backoff retry.
//   - StatusChannelError tears the instance down. An expired token
//     retries immediately with the counter reset; anything else backs
//     off.
//
// Retries stop once a topic reaches Config.MaxRetryAttempts. The topic
// stays registered and resumes on ReconnectChannel, on a visibility
// return, or on a network online event.
//
// When the visibility optimization is enabled, the manager listens to
// an [Environment]. A hidden period longer than Config.IdleTimeout
// disconnects every topic; becoming visible again resubscribes the
// ones that are not joined.
//
// Events that belong to a superseded or removed attempt are ignored.
// No manager lock is held while callbacks, client methods or channel
// methods run, except Channel.State, which must be a plain read.
package realtime
