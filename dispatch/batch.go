// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"encoding/json"
	"sort"

	"github.com/lumen-chat/lumen/lib/ref"
	"github.com/lumen-chat/lumen/messaging"
)

// RoomEvents groups one room's collections from a sync response. For
// rooms in the leave bucket Ephemeral is always empty: the server
// stops delivering ephemeral events once the user has left.
type RoomEvents struct {
	RoomID      ref.RoomID
	State       []Envelope
	Timeline    []Envelope
	Ephemeral   []Envelope
	AccountData []Envelope
}

// InviteEvents groups the stripped state delivered with an invite.
type InviteEvents struct {
	RoomID        ref.RoomID
	StrippedState []Envelope
}

// NotificationEvents groups push-rule notification events for a room.
type NotificationEvents struct {
	RoomID ref.RoomID
	Events []Envelope
}

// Batch is one sync response regrouped for dispatch. Rooms within each
// bucket are sorted by room ID so a batch dispatches identically no
// matter how the decoder ordered its maps — re-running a recorded
// batch reproduces the exact handler sequence.
type Batch struct {
	AccountData   []Envelope
	Joined        []RoomEvents
	Left          []RoomEvents
	Invited       []InviteEvents
	Presence      []Envelope
	Notifications []NotificationEvents
}

// NewBatch regroups a sync response into dispatch order.
func NewBatch(response *messaging.SyncResponse) *Batch {
	batch := &Batch{
		AccountData: envelopes(response.AccountData.Events, ref.RoomID{}),
		Presence:    envelopes(response.Presence.Events, ref.RoomID{}),
	}

	for _, roomID := range sortedKeys(response.Rooms.Join) {
		room := response.Rooms.Join[roomID]
		batch.Joined = append(batch.Joined, RoomEvents{
			RoomID:      roomID,
			State:       envelopes(room.State.Events, roomID),
			Timeline:    envelopes(room.Timeline.Events, roomID),
			Ephemeral:   envelopes(room.Ephemeral.Events, roomID),
			AccountData: envelopes(room.AccountData.Events, roomID),
		})
	}
	for _, roomID := range sortedKeys(response.Rooms.Leave) {
		room := response.Rooms.Leave[roomID]
		batch.Left = append(batch.Left, RoomEvents{
			RoomID:      roomID,
			State:       envelopes(room.State.Events, roomID),
			Timeline:    envelopes(room.Timeline.Events, roomID),
			AccountData: envelopes(room.AccountData.Events, roomID),
		})
	}
	for _, roomID := range sortedKeys(response.Rooms.Invite) {
		room := response.Rooms.Invite[roomID]
		batch.Invited = append(batch.Invited, InviteEvents{
			RoomID:        roomID,
			StrippedState: envelopes(room.InviteState.Events, roomID),
		})
	}
	for _, roomID := range sortedKeys(response.Notifications) {
		batch.Notifications = append(batch.Notifications, NotificationEvents{
			RoomID: roomID,
			Events: envelopes(response.Notifications[roomID], roomID),
		})
	}

	return batch
}

// envelopes converts raw events into envelopes, preserving order.
// Events whose bytes are not valid JSON are dropped: they cannot reach
// any handler, typed or custom. An event with a missing type tag but
// valid bytes is kept for the custom channel.
func envelopes(events []messaging.RawEvent, roomID ref.RoomID) []Envelope {
	if len(events) == 0 {
		return nil
	}
	result := make([]Envelope, 0, len(events))
	for _, event := range events {
		if event.Type == "" && !json.Valid(event.Raw) {
			continue
		}
		result = append(result, Envelope{
			Type:   event.Type,
			RoomID: roomID,
			Raw:    event.Raw,
		})
	}
	return result
}

func sortedKeys[V any](m map[ref.RoomID]V) []ref.RoomID {
	if len(m) == 0 {
		return nil
	}
	keys := make([]ref.RoomID, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
