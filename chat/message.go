// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"time"

	"github.com/huddle-chat/huddle/messaging"
)

// Kind classifies a timeline event.
type Kind string

const (
	KindMessage   Kind = "message"
	KindReaction  Kind = "reaction"
	KindRedaction Kind = "redaction"
)

// Message is one decoded timeline event.
type Message struct {
	Kind      Kind
	RoomID    string
	EventID   string
	Sender    string
	Timestamp time.Time

	// Body and MsgType are set for messages.
	Body    string
	MsgType string

	// Mentions lists mentioned user ids; MentionsRoom is an @room
	// mention.
	Mentions     []string
	MentionsRoom bool

	// RelatesTo is the event a reaction or threaded reply refers to.
	RelatesTo string
	// ThreadRoot is set when the message is in a thread.
	ThreadRoot string
	// ReactionKey is the reaction text.
	ReactionKey string

	// Redacts is the event a redaction removes.
	Redacts string
}

// reactionContent is the content of an m.reaction event.
type reactionContent struct {
	RelatesTo messaging.RelatesTo `json:"m.relates_to"`
}

// redactionContent carries the redacted event id in room versions
// that moved it into content.
type redactionContent struct {
	Redacts string `json:"redacts"`
}

// DecodeEvent converts a timeline event. The second result is false
// for event types the feeds do not surface and for malformed content.
func DecodeEvent(roomID string, event messaging.Event) (Message, bool) {
	message := Message{
		RoomID:    roomID,
		EventID:   event.EventID,
		Sender:    event.Sender,
		Timestamp: time.UnixMilli(event.OriginServerTS).UTC(),
	}
	if event.EventID == "" {
		return Message{}, false
	}

	switch event.Type {
	case messaging.EventTypeMessage:
		var content messaging.MessageContent
		if !decodeContent(event.Content, &content) || content.MsgType == "" {
			return Message{}, false
		}
		message.Kind = KindMessage
		message.Body = content.Body
		message.MsgType = content.MsgType
		if content.Mentions != nil {
			message.Mentions = content.Mentions.UserIDs
			message.MentionsRoom = content.Mentions.Room
		}
		if content.RelatesTo != nil {
			message.RelatesTo = content.RelatesTo.EventID
			if content.RelatesTo.RelType == "m.thread" {
				message.ThreadRoot = content.RelatesTo.EventID
			}
		}
	case messaging.EventTypeReaction:
		var content reactionContent
		if !decodeContent(event.Content, &content) ||
			content.RelatesTo.RelType != "m.annotation" || content.RelatesTo.EventID == "" {
			return Message{}, false
		}
		message.Kind = KindReaction
		message.RelatesTo = content.RelatesTo.EventID
		message.ReactionKey = content.RelatesTo.Key
	case messaging.EventTypeRedaction:
		message.Kind = KindRedaction
		message.Redacts = event.Redacts
		if message.Redacts == "" {
			var content redactionContent
			if decodeContent(event.Content, &content) {
				message.Redacts = content.Redacts
			}
		}
		if message.Redacts == "" {
			return Message{}, false
		}
	default:
		return Message{}, false
	}
	return message, true
}

// decodeContent re-decodes an event's generic content map into target.
func decodeContent(content map[string]any, target any) bool {
	raw, err := json.Marshal(content)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

// seenEvents remembers the most recent event ids, up to a fixed count.
type seenEvents struct {
	ids   map[string]struct{}
	order []string
	limit int
}

func newSeenEvents(limit int) *seenEvents {
	return &seenEvents{ids: make(map[string]struct{}, limit), limit: limit}
}

// add records id and reports whether it was new.
func (s *seenEvents) add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		delete(s.ids, s.order[0])
		s.order = s.order[1:]
	}
	return true
}
