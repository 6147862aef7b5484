// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"encoding/json"

	"github.com/lumen-chat/lumen/messaging"
)

// RoomContext is the execution context for room-scoped handlers. The
// Room handle is live client state, so a handler can act on the room
// (send a message, inspect membership) from inside the callback.
type RoomContext struct {
	// Session is the authenticated session the batch arrived on.
	Session *messaging.Session
	// Room is the room the event belongs to. Never nil.
	Room *messaging.Room
	// Raw is the verbatim event JSON, shared read-only across all
	// handlers for this envelope.
	Raw json.RawMessage
}

// GlobalContext is the execution context for account-wide handlers
// (global account data, presence).
type GlobalContext struct {
	// Session is the authenticated session the batch arrived on.
	Session *messaging.Session
	// Raw is the verbatim event JSON, shared read-only across all
	// handlers for this envelope.
	Raw json.RawMessage
}

// CustomSource discriminates where a custom event came from, since the
// custom channel flattens several collections into one handler set.
type CustomSource int

const (
	// SourceBasic is global account data.
	SourceBasic CustomSource = iota
	// SourceEphemeral is per-room ephemeral events.
	SourceEphemeral
	// SourceState is state events, from the state section or
	// interleaved in a timeline.
	SourceState
	// SourceMessage is non-state timeline events.
	SourceMessage
	// SourceStrippedState is invite stripped state.
	SourceStrippedState
)

var customSourceNames = map[CustomSource]string{
	SourceBasic:         "basic-account-data",
	SourceEphemeral:     "ephemeral",
	SourceState:         "state",
	SourceMessage:       "message",
	SourceStrippedState: "stripped-state",
}

func (s CustomSource) String() string {
	if name, ok := customSourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// CustomEvent is what the generic custom channel delivers: the
// verbatim bytes of an event whose tag has no protocol routing entry,
// plus enough position information to interpret them.
type CustomEvent struct {
	// Source says which collection shape produced the event.
	Source CustomSource
	// Room is the owning room, or nil for account-wide sources.
	Room *messaging.Room
	// Raw is the verbatim event JSON.
	Raw json.RawMessage
}

// invocation is the per-envelope context assembled once by the
// dispatcher and narrowed by each handler's adapter.
type invocation struct {
	session *messaging.Session
	room    *messaging.Room
	raw     json.RawMessage
	source  CustomSource
}
