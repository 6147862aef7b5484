// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/lumen-chat/lumen/lib/ref"
)

// RawEvent is one still-serialized event from a /sync response: the
// verbatim JSON bytes the homeserver sent plus the type tag extracted
// from them. The bytes are captured at decode time and never
// re-serialized, so "show source" functionality and signature-sensitive
// consumers see exactly what arrived on the wire.
//
// Type is empty when the event carries no "type" field (or a
// non-string one). Such events are still structurally valid JSON —
// encoding/json validates syntax before invoking UnmarshalJSON — and
// the dispatch layer decides whether to surface them through its
// custom-event path or drop them.
type RawEvent struct {
	// Type is the event type tag (e.g., "m.room.message").
	Type ref.EventType

	// Raw is the verbatim JSON of the whole event.
	Raw json.RawMessage
}

// UnmarshalJSON captures the verbatim bytes and peeks the type tag
// without a full decode.
func (e *RawEvent) UnmarshalJSON(data []byte) error {
	e.Raw = append(e.Raw[:0], data...)
	e.Type = ""
	if result := gjson.GetBytes(data, "type"); result.Type == gjson.String {
		e.Type = ref.EventType(result.Str)
	}
	return nil
}

// MarshalJSON emits the verbatim bytes unchanged.
func (e RawEvent) MarshalJSON() ([]byte, error) {
	if e.Raw == nil {
		return []byte("null"), nil
	}
	return e.Raw, nil
}

// Event is the decoded form of a Matrix event. Application handlers
// that do not declare their own payload struct can register for this
// type; it covers the fields common to state and timeline events.
type Event struct {
	EventID        ref.EventID    `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         ref.RoomID     `json:"room_id,omitempty"`
	StateKey       *string        `json:"state_key,omitempty"`
	Unsigned       *EventUnsigned `json:"unsigned,omitempty"`
}

// EventUnsigned holds optional unsigned data attached to events.
type EventUnsigned struct {
	Age             int64           `json:"age,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	RedactedBecause json.RawMessage `json:"redacted_because,omitempty"`
}

// MessageContent is the content body of an m.room.message event.
type MessageContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// NewTextMessage creates a plain text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{MsgType: "m.text", Body: body}
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch token from previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds; 0 for immediate return
	SetTimeout bool   // if true, send the timeout parameter (needed to distinguish "not set" from "0")
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the top-level response from /sync.
//
// Notifications is not part of the wire format: it is filled in by a
// push-rule collaborator between sync and dispatch, keyed by room.
// Lumen does not evaluate push rules itself — it only delivers the
// resulting notification events.
type SyncResponse struct {
	NextBatch   string        `json:"next_batch"`
	AccountData EventsSection `json:"account_data,omitempty"`
	Presence    EventsSection `json:"presence,omitempty"`
	Rooms       RoomsSection  `json:"rooms"`

	Notifications map[ref.RoomID][]RawEvent `json:"-" cbor:"notifications,omitempty"`
}

// EventsSection is a bare list of events, used for account data,
// presence, ephemeral, and state collections.
type EventsSection struct {
	Events []RawEvent `json:"events"`
}

// RoomsSection contains per-room sync data grouped by membership
// state. Map keys are room IDs; encoding/json uses ref.RoomID's
// TextUnmarshaler for automatic validation at deserialization.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	State       EventsSection   `json:"state"`
	Timeline    TimelineSection `json:"timeline"`
	Ephemeral   EventsSection   `json:"ephemeral"`
	AccountData EventsSection   `json:"account_data"`
}

// InvitedRoom contains sync data for a room the user was invited to.
// Invite state events are stripped: a minimal subset of the room state
// delivered before the user joins.
type InvitedRoom struct {
	InviteState EventsSection `json:"invite_state"`
}

// LeftRoom contains sync data for a room the user has left.
type LeftRoom struct {
	State       EventsSection   `json:"state"`
	Timeline    TimelineSection `json:"timeline"`
	AccountData EventsSection   `json:"account_data"`
}

// TimelineSection contains timeline events from a sync response, in
// chronological order.
type TimelineSection struct {
	Events    []RawEvent `json:"events"`
	PrevBatch string     `json:"prev_batch"`
	Limited   bool       `json:"limited"`
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	DeviceID                 string `json:"device_id,omitempty"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// ResolveAliasResponse is returned by ResolveAlias.
type ResolveAliasResponse struct {
	RoomID  ref.RoomID `json:"room_id"`
	Servers []string   `json:"servers"`
}

// JoinedRoomsResponse is returned by JoinedRooms.
type JoinedRoomsResponse struct {
	JoinedRooms []ref.RoomID `json:"joined_rooms"`
}

// SendEventResponse is returned by SendMessage.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// ServerVersionsResponse is returned by Client.ServerVersions.
type ServerVersionsResponse struct {
	Versions         []string        `json:"versions"`
	UnstableFeatures map[string]bool `json:"unstable_features,omitempty"`
}
