// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"github.com/huddle-chat/huddle/messaging"
	"github.com/huddle-chat/huddle/transport"
)

// Topic name prefixes.
const (
	MessagesPrefix      = "messages:"
	NotificationsPrefix = "notifications:"
	PresencePrefix      = "presence:"
)

// MessagesTopic is the topic carrying roomID's timeline.
func MessagesTopic(roomID string) string { return MessagesPrefix + roomID }

// NotificationsTopic is the topic carrying userID's mentions.
func NotificationsTopic(userID string) string { return NotificationsPrefix + userID }

// PresenceTopic is the topic carrying presence for userID's contacts.
func PresenceTopic(userID string) string { return PresencePrefix + userID }

// Transport builds sync channels. *transport.Client implements it.
type Transport interface {
	Channel(topic string, filter messaging.SyncFilter, handler transport.Handler) *transport.SyncChannel
}
