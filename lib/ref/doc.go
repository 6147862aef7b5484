// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated Matrix identifier types.
//
// Matrix identifiers share a common shape: a sigil character, a local
// part, and (for most kinds) a ':server' suffix. Each type in this
// package validates the structural format at the parse boundary and is
// immutable afterwards. Lumen code never constructs room or event IDs
// by hand — they arrive from the homeserver in /sync responses and API
// results and are parsed into these types at deserialization.
//
// All identifier types implement encoding.TextMarshaler and
// encoding.TextUnmarshaler, so encoding/json validates them
// automatically, including when they appear as JSON object keys
// (the rooms section of /sync is keyed by room ID).
//
// [EventType] is the exception: event type tags ("m.room.message",
// "com.example.custom") are opaque strings with no structure to
// validate, so EventType is a named string type that exists purely for
// compile-time safety.
package ref
