// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries realtime subscriptions over the
// homeserver's /sync long-poll endpoint.
//
// [Client] implements realtime.Client. It holds the access token the
// channels poll with and resolves sessions through a [SessionSource]
// (normally a *session.Provider). [Client.Channel] builds a
// [SyncChannel], which implements realtime.Channel: one subscribe
// attempt runs an initial sync bounded by the join timeout, then
// long-polls and hands every batch to the channel's [Handler] until
// the channel is removed or a poll fails.
//
// A rejected access token (M_UNKNOWN_TOKEN) is reported as a channel
// error wrapping realtime.ErrTokenExpired, and the token is
// invalidated at the session source so the manager's immediate retry
// picks up a refreshed one.
//
// [Prober] polls the homeserver's versions endpoint and emits online
// and offline events into realtime.Signals when reachability changes.
package transport
