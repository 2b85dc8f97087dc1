// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

// Event types consumed by the realtime feeds.
const (
	EventTypeMessage   = "m.room.message"
	EventTypeReaction  = "m.reaction"
	EventTypeRedaction = "m.room.redaction"
	EventTypePresence  = "m.presence"
	EventTypeTyping    = "m.typing"
)

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string     `json:"type"`
	Identifier               Identifier `json:"identifier"`
	Password                 string     `json:"password"`
	DeviceID                 string     `json:"device_id,omitempty"`
	InitialDeviceDisplayName string     `json:"initial_device_display_name,omitempty"`
	// RefreshToken asks the server to issue a refresh token alongside
	// a short-lived access token.
	RefreshToken bool `json:"refresh_token,omitempty"`
}

// Identifier names the user logging in.
type Identifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	DeviceID     string `json:"device_id"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresInMS is the access token lifetime. Zero means the token
	// does not expire.
	ExpiresInMS int64 `json:"expires_in_ms,omitempty"`
}

// RefreshResponse is returned by Refresh.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresInMS  int64  `json:"expires_in_ms,omitempty"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}

// ServerVersionsResponse is returned by Client.ServerVersions.
type ServerVersionsResponse struct {
	Versions         []string        `json:"versions"`
	UnstableFeatures map[string]bool `json:"unstable_features,omitempty"`
}

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType   string     `json:"msgtype"`
	Body      string     `json:"body"`
	Mentions  *Mentions  `json:"m.mentions,omitempty"`
	RelatesTo *RelatesTo `json:"m.relates_to,omitempty"`
}

// Mentions identifies users referenced in a message.
type Mentions struct {
	UserIDs []string `json:"user_ids,omitempty"`
	Room    bool     `json:"room,omitempty"`
}

// RelatesTo expresses relationships between events. Threads use
// "m.thread" and reactions use "m.annotation" with Key set to the
// reaction text.
type RelatesTo struct {
	RelType string `json:"rel_type,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Key     string `json:"key,omitempty"`
}

// Event represents a Matrix event from the server.
type Event struct {
	EventID        string         `json:"event_id"`
	Type           string         `json:"type"`
	Sender         string         `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         string         `json:"room_id,omitempty"`
	StateKey       *string        `json:"state_key,omitempty"`
	Redacts        string         `json:"redacts,omitempty"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since       string // next_batch token from previous sync; empty for initial sync
	Timeout     int    // long-poll timeout in milliseconds; 0 for immediate return
	SetTimeout  bool   // if true, send the timeout parameter (needed to distinguish "not set" from "0")
	Filter      string // filter ID or inline JSON filter
	SetPresence string // "online", "unavailable" or "offline"; empty leaves it unset
}

// SyncResponse is the top-level response from /sync.
type SyncResponse struct {
	NextBatch string          `json:"next_batch"`
	Presence  PresenceSection `json:"presence,omitempty"`
	Rooms     RoomsSection    `json:"rooms"`
}

// PresenceSection contains presence events from the /sync response.
type PresenceSection struct {
	Events []PresenceEvent `json:"events"`
}

// PresenceEvent is a single m.presence event from the /sync response.
type PresenceEvent struct {
	Type    string               `json:"type"`
	Sender  string               `json:"sender"`
	Content PresenceEventContent `json:"content"`
}

// PresenceEventContent carries the presence state for a single user.
type PresenceEventContent struct {
	// Presence is "online", "unavailable", or "offline".
	Presence        string `json:"presence"`
	LastActiveAgo   int64  `json:"last_active_ago,omitempty"`
	CurrentlyActive bool   `json:"currently_active,omitempty"`
	StatusMsg       string `json:"status_msg,omitempty"`
}

// RoomsSection contains per-room sync data grouped by membership state.
type RoomsSection struct {
	Join  map[string]JoinedRoom `json:"join,omitempty"`
	Leave map[string]LeftRoom   `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Timeline  TimelineSection  `json:"timeline"`
	State     StateSection     `json:"state"`
	Ephemeral EphemeralSection `json:"ephemeral"`
}

// LeftRoom contains sync data for a room the user has left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection contains state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// EphemeralSection contains typing and receipt events.
type EphemeralSection struct {
	Events []Event `json:"events"`
}
