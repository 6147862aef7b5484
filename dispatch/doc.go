// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch routes sync batches to typed application handlers.
//
// The pipeline is: a Batch groups one sync response's events into
// scoped collections; the classifier assigns each envelope a category
// and a route (dedicated type tag, recognized protocol tag, or the
// generic custom channel); the Dispatcher walks collections in a fixed
// order, resolves the room for room-scoped envelopes, and invokes
// every matching handler from a registry snapshot taken once per tag
// per envelope.
//
// Handlers are registered through the generic constructors (OnEvent,
// OnRoomEvent, OnGlobalEvent, OnCustomEvent) so the payload type and
// context shape are fixed at compile time. Registration returns a
// Handle for later removal. The registry is copy-on-write:
// registrations and removals taking effect mid-batch never disturb a
// dispatch pass already in flight, and a handler observes its own
// registration only from the next envelope onward.
//
// Handler outcomes never propagate: an error or panic in one handler
// is logged with its event type and the remaining handlers still run.
package dispatch
