// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/lumen-chat/lumen/lib/ref"
	"github.com/lumen-chat/lumen/messaging"
)

func TestNewBatchKeepsUntypedValidJSON(t *testing.T) {
	response := &messaging.SyncResponse{
		AccountData: messaging.EventsSection{Events: []messaging.RawEvent{
			{Raw: json.RawMessage(`{"content":{"x":1}}`)},
		}},
	}
	batch := NewBatch(response)
	if len(batch.AccountData) != 1 {
		t.Fatalf("batch has %d account data envelopes, want 1", len(batch.AccountData))
	}
	if batch.AccountData[0].Type != "" {
		t.Errorf("type = %q, want empty", batch.AccountData[0].Type)
	}
}

func TestNewBatchDropsInvalidBytes(t *testing.T) {
	// A hand-built event with broken bytes cannot reach any handler.
	response := &messaging.SyncResponse{
		AccountData: messaging.EventsSection{Events: []messaging.RawEvent{
			{Raw: json.RawMessage(`{"content":`)},
			{Type: "m.push_rules", Raw: json.RawMessage(`{"type":"m.push_rules"}`)},
		}},
	}
	batch := NewBatch(response)
	if len(batch.AccountData) != 1 {
		t.Fatalf("batch has %d account data envelopes, want 1", len(batch.AccountData))
	}
	if batch.AccountData[0].Type != "m.push_rules" {
		t.Errorf("surviving envelope type = %q, want m.push_rules", batch.AccountData[0].Type)
	}
}

func TestNewBatchSortsRooms(t *testing.T) {
	join := map[ref.RoomID]messaging.JoinedRoom{
		ref.MustParseRoomID("!c:x.org"): {},
		ref.MustParseRoomID("!a:x.org"): {},
		ref.MustParseRoomID("!b:x.org"): {},
	}
	batch := NewBatch(&messaging.SyncResponse{Rooms: messaging.RoomsSection{Join: join}})
	if len(batch.Joined) != 3 {
		t.Fatalf("batch has %d joined rooms, want 3", len(batch.Joined))
	}
	for i, want := range []string{"!a:x.org", "!b:x.org", "!c:x.org"} {
		if got := batch.Joined[i].RoomID.String(); got != want {
			t.Errorf("joined[%d] = %s, want %s", i, got, want)
		}
	}
}

func TestNewBatchEmptyResponse(t *testing.T) {
	batch := NewBatch(&messaging.SyncResponse{NextBatch: "s0"})
	if len(batch.AccountData)+len(batch.Joined)+len(batch.Left)+
		len(batch.Invited)+len(batch.Presence)+len(batch.Notifications) != 0 {
		t.Error("empty response produced a non-empty batch")
	}
}
