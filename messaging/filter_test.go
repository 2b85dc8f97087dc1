// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"testing"
)

func decodeFilter(t *testing.T, filter SyncFilter) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal([]byte(BuildFilter(filter)), &decoded); err != nil {
		t.Fatalf("BuildFilter produced invalid JSON: %v", err)
	}
	return decoded
}

func TestBuildFilterRooms(t *testing.T) {
	decoded := decodeFilter(t, SyncFilter{
		Rooms:         []string{"!a:huddle.chat"},
		TimelineTypes: []string{EventTypeMessage},
		TimelineLimit: 20,
		ExcludeState:  true,
	})

	room := decoded["room"].(map[string]any)
	rooms := room["rooms"].([]any)
	if len(rooms) != 1 || rooms[0] != "!a:huddle.chat" {
		t.Fatalf("rooms = %v", rooms)
	}
	timeline := room["timeline"].(map[string]any)
	if timeline["limit"] != float64(20) {
		t.Fatalf("timeline limit = %v, want 20", timeline["limit"])
	}
	if _, ok := room["state"]; !ok {
		t.Fatal("state filter missing with ExcludeState")
	}
	presence := decoded["presence"].(map[string]any)
	if types := presence["types"].([]any); len(types) != 0 {
		t.Fatalf("presence types = %v, want none", types)
	}
}

func TestBuildFilterPresenceOnly(t *testing.T) {
	decoded := decodeFilter(t, SyncFilter{ExcludeRoomData: true, IncludePresence: true})

	room := decoded["room"].(map[string]any)
	if rooms := room["rooms"].([]any); len(rooms) != 0 {
		t.Fatalf("rooms = %v, want empty", rooms)
	}
	presence := decoded["presence"].(map[string]any)
	types := presence["types"].([]any)
	if len(types) != 1 || types[0] != EventTypePresence {
		t.Fatalf("presence types = %v, want [m.presence]", types)
	}
}

func TestBuildFilterAllRooms(t *testing.T) {
	decoded := decodeFilter(t, SyncFilter{})
	room := decoded["room"].(map[string]any)
	if _, ok := room["rooms"]; ok {
		t.Fatal("zero filter restricted rooms")
	}
}
