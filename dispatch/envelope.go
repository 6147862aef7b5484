// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"encoding/json"

	"github.com/lumen-chat/lumen/lib/ref"
)

// Category identifies which sync collection an envelope came from. The
// category decides the handler context shape (room-scoped or global)
// and which custom-channel discriminator applies to unknown tags.
type Category int

const (
	// CategoryGlobalAccountData is account-wide account data.
	CategoryGlobalAccountData Category = iota
	// CategoryEphemeral is per-room ephemeral events (typing, receipts).
	CategoryEphemeral
	// CategoryRoomAccountData is per-room account data.
	CategoryRoomAccountData
	// CategoryState is per-room state events from the state section.
	CategoryState
	// CategoryTimeline is per-room timeline events, which mix message
	// events and state events.
	CategoryTimeline
	// CategoryStrippedState is the reduced state delivered with an
	// invite, before the user has joined.
	CategoryStrippedState
	// CategoryPresence is account-wide presence events.
	CategoryPresence
	// CategoryNotification is push-rule notification events, delivered
	// as a final pass after all room collections.
	CategoryNotification
)

var categoryNames = map[Category]string{
	CategoryGlobalAccountData: "global-account-data",
	CategoryEphemeral:         "ephemeral",
	CategoryRoomAccountData:   "room-account-data",
	CategoryState:             "state",
	CategoryTimeline:          "timeline",
	CategoryStrippedState:     "stripped-state",
	CategoryPresence:          "presence",
	CategoryNotification:      "notification",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// RoomScoped reports whether envelopes in this category carry a room
// and are delivered with a room-scoped context.
func (c Category) RoomScoped() bool {
	switch c {
	case CategoryGlobalAccountData, CategoryPresence:
		return false
	default:
		return true
	}
}

// Envelope is one event positioned in a batch: its type tag, the room
// it belongs to (zero for global collections), and the verbatim wire
// bytes. The bytes are shared, never copied per handler; handlers must
// treat them as read-only.
type Envelope struct {
	// Type is the event type tag. Empty when the event carried no
	// usable "type" field; such envelopes can only reach the custom
	// channel.
	Type ref.EventType

	// RoomID is the owning room for room-scoped collections and zero
	// otherwise.
	RoomID ref.RoomID

	// Raw is the verbatim event JSON.
	Raw json.RawMessage
}
