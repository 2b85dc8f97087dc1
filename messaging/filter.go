// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
)

// SyncFilter configures what a /sync request returns.
//
// The zero value means "timeline and state from every joined room, no
// presence, no account data". Feeds that need presence set
// IncludePresence; feeds scoped to particular rooms set Rooms.
type SyncFilter struct {
	// Rooms restricts room data to these room IDs. Empty means all
	// joined rooms.
	Rooms []string `json:"rooms,omitempty" yaml:"rooms,omitempty"`

	// TimelineTypes restricts timeline events to these Matrix event types
	// (e.g., "m.room.message"). An empty slice means all timeline types.
	TimelineTypes []string `json:"timeline_types,omitempty" yaml:"timeline_types,omitempty"`

	// TimelineLimit caps the number of timeline events per room per
	// /sync response. Zero means the server default.
	TimelineLimit int `json:"timeline_limit,omitempty" yaml:"timeline_limit,omitempty"`

	// ExcludeState suppresses state events from the /sync response.
	ExcludeState bool `json:"exclude_state,omitempty" yaml:"exclude_state,omitempty"`

	// ExcludeRoomData suppresses all room data. Used by presence-only
	// subscriptions.
	ExcludeRoomData bool `json:"exclude_room_data,omitempty" yaml:"exclude_room_data,omitempty"`

	// IncludePresence keeps m.presence events in the response.
	IncludePresence bool `json:"include_presence,omitempty" yaml:"include_presence,omitempty"`
}

// BuildFilter constructs the inline JSON filter string for /sync.
func BuildFilter(filter SyncFilter) string {
	roomFilter := map[string]any{}

	if filter.ExcludeRoomData {
		roomFilter["rooms"] = []string{}
	} else if len(filter.Rooms) > 0 {
		roomFilter["rooms"] = filter.Rooms
	}

	if len(filter.TimelineTypes) > 0 {
		timeline := map[string]any{"types": filter.TimelineTypes}
		if filter.TimelineLimit > 0 {
			timeline["limit"] = filter.TimelineLimit
		}
		roomFilter["timeline"] = timeline
	} else if filter.TimelineLimit > 0 {
		roomFilter["timeline"] = map[string]any{"limit": filter.TimelineLimit}
	}

	if filter.ExcludeState {
		roomFilter["state"] = map[string]any{"types": []string{}}
	}

	presence := map[string]any{"types": []string{}}
	if filter.IncludePresence {
		presence = map[string]any{"types": []string{EventTypePresence}}
	}

	top := map[string]any{
		"room":         roomFilter,
		"presence":     presence,
		"account_data": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	return string(data)
}
