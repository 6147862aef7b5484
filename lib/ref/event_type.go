// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix event type tag. Standard Matrix tags
// (m.room.*, m.call.*, m.presence) and namespaced custom tags
// (com.example.*) are both valid.
//
// EventType is a named string type, not a struct wrapper: event type
// tags are opaque identifiers that need no parsing or validation. The
// type exists purely for compile-time safety — preventing accidental
// use of a state key or room ID string where an event type is expected.
type EventType string

// String returns the event type string (e.g., "m.room.message").
func (t EventType) String() string { return string(t) }
