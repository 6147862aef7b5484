// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API for Lumen's
// sync and dispatch needs.
//
// [Client] is an unauthenticated Matrix client holding the homeserver
// URL and HTTP transport; [Client.Login] and [Client.SessionFromToken]
// return authenticated [Session] values that share the Client's
// transport. Request URLs are built by string concatenation rather
// than url.URL to avoid double-encoding of path segments that contain
// URL-encoded characters (such as room aliases with slashes).
//
// Sync responses preserve every event verbatim: event lists are
// []RawEvent, which captures the server's exact JSON bytes alongside
// the extracted type tag at decode time. Nothing in this package
// re-serializes an event — the dispatch layer and application handlers
// receive the bytes the homeserver sent.
//
// [Syncer] runs the /sync long-poll loop, threading the since token
// and handing each response to a [BatchSink] synchronously, so
// dispatch passes never overlap. [RoomTracker] maintains the set of
// rooms known locally, fed by each sync response; it is the fallible
// room lookup that room-scoped event delivery depends on.
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_NOT_FOUND, ...) and HTTP status
// code. [IsMatrixError] tests for a specific code.
package messaging
