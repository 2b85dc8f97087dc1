// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat turns realtime subscriptions into chat features.
//
// [MessageFeed] follows rooms: each followed room is a
// "messages:<room>" topic on the messages manager, and decoded
// [Message] values (messages, reactions, redactions) are handed to the
// feed's handler. [NotificationFeed] registers "notifications:<user>"
// and "presence:<user>" on the notifications manager and reports
// mentions of the user and presence changes.
//
// Both feeds own only their topics; the managers own reconnection.
// Every subscribe attempt starts with an initial sync that repeats
// recent timeline events, so feeds drop events they have already
// delivered.
package chat
