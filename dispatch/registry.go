// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lumen-chat/lumen/lib/ref"
)

// contextShape records which execution context a handler's adapter
// expects, fixed at registration.
type contextShape int

const (
	shapePayload contextShape = iota
	shapeRoom
	shapeGlobal
	shapeCustom
)

// handlerEntry is one registered handler. Entries are immutable after
// creation; the sequence number orders handlers within a tag and
// identifies the entry for removal.
type handlerEntry struct {
	tag   ref.EventType
	shape contextShape
	seq   uint64
	call  func(ctx context.Context, inv invocation) error
}

// Handle identifies one registration for later removal.
type Handle struct {
	registry *Registry
	tag      ref.EventType
	seq      uint64
}

// Registry holds the handler table. Mutation is copy-on-write: the
// per-tag slices handed out by snapshot are never modified afterwards,
// so a dispatch pass holding a snapshot is immune to concurrent
// registration and removal. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	nextSeq uint64
	// handlers maps a type tag to its handlers in registration order.
	handlers map[ref.EventType][]*handlerEntry
	// custom holds the generic custom-channel handlers.
	custom []*handlerEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[ref.EventType][]*handlerEntry)}
}

// add appends a handler for a tag, replacing the tag's slice so
// existing snapshots stay valid.
func (r *Registry) add(tag ref.EventType, shape contextShape, call func(context.Context, invocation) error) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq++
	entry := &handlerEntry{tag: tag, shape: shape, seq: r.nextSeq, call: call}

	if shape == shapeCustom {
		r.custom = appendCopy(r.custom, entry)
	} else {
		r.handlers[tag] = appendCopy(r.handlers[tag], entry)
	}
	return Handle{registry: r, tag: tag, seq: entry.seq}
}

func appendCopy(entries []*handlerEntry, entry *handlerEntry) []*handlerEntry {
	next := make([]*handlerEntry, len(entries), len(entries)+1)
	copy(next, entries)
	return append(next, entry)
}

// Unregister removes the registration identified by the handle. It is
// idempotent: removing an already-removed handler is a no-op. A pass
// already holding a snapshot still invokes the handler for envelopes
// in flight; it stops being invoked from the next snapshot onward.
func (r *Registry) Unregister(h Handle) {
	if h.registry != r || h.seq == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if next, removed := withoutSeq(r.custom, h.seq); removed {
		r.custom = next
		return
	}
	if next, removed := withoutSeq(r.handlers[h.tag], h.seq); removed {
		if len(next) == 0 {
			delete(r.handlers, h.tag)
		} else {
			r.handlers[h.tag] = next
		}
	}
}

func withoutSeq(entries []*handlerEntry, seq uint64) ([]*handlerEntry, bool) {
	for i, entry := range entries {
		if entry.seq == seq {
			next := make([]*handlerEntry, 0, len(entries)-1)
			next = append(next, entries[:i]...)
			return append(next, entries[i+1:]...), true
		}
	}
	return entries, false
}

// snapshot returns the current handlers for a tag. The returned slice
// is immutable; callers iterate it without holding the lock.
func (r *Registry) snapshot(tag ref.EventType) []*handlerEntry {
	if tag == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[tag]
}

// snapshotCustom returns the current custom-channel handlers.
func (r *Registry) snapshotCustom() []*handlerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.custom
}

// validateTag rejects registrations whose context shape contradicts
// the protocol routing tables: a room-scoped handler for an
// account-wide tag (or vice versa) could never be invoked with a
// coherent context, so the mistake surfaces at registration instead of
// silently at dispatch. Unknown tags pass: their scope depends on
// which collection they eventually arrive in.
func validateTag(tag ref.EventType, shape contextShape) error {
	if tag == "" {
		return fmt.Errorf("dispatch: event type tag is required")
	}
	roomScoped, known := tagScope(tag)
	if !known {
		return nil
	}
	if shape == shapeRoom && !roomScoped {
		return fmt.Errorf("dispatch: %s is account-wide, room-scoped handler would never run", tag)
	}
	if shape == shapeGlobal && roomScoped {
		return fmt.Errorf("dispatch: %s is room-scoped, account-wide handler would never run", tag)
	}
	return nil
}

// decode unmarshals the envelope payload for a typed handler. A decode
// failure is that handler's failure alone, reported like any other
// handler error.
func decode[T any](tag ref.EventType, raw json.RawMessage) (T, error) {
	var event T
	if err := json.Unmarshal(raw, &event); err != nil {
		return event, fmt.Errorf("dispatch: decoding %s payload into %T: %w", tag, event, err)
	}
	return event, nil
}

// OnEvent registers a payload-only handler for a type tag. The event
// JSON is decoded into T fresh for each invocation, so handlers may
// mutate their copy freely.
func OnEvent[T any](r *Registry, tag ref.EventType, fn func(ctx context.Context, event T) error) (Handle, error) {
	if fn == nil {
		return Handle{}, fmt.Errorf("dispatch: handler function is required")
	}
	if err := validateTag(tag, shapePayload); err != nil {
		return Handle{}, err
	}
	call := func(ctx context.Context, inv invocation) error {
		event, err := decode[T](tag, inv.raw)
		if err != nil {
			return err
		}
		return fn(ctx, event)
	}
	return r.add(tag, shapePayload, call), nil
}

// OnRoomEvent registers a room-scoped handler for a type tag. The
// dispatcher invokes it only when the owning room resolved, so
// RoomContext.Room is never nil. Registering a room-scoped handler for
// an account-wide protocol tag fails.
func OnRoomEvent[T any](r *Registry, tag ref.EventType, fn func(ctx context.Context, rctx RoomContext, event T) error) (Handle, error) {
	if fn == nil {
		return Handle{}, fmt.Errorf("dispatch: handler function is required")
	}
	if err := validateTag(tag, shapeRoom); err != nil {
		return Handle{}, err
	}
	call := func(ctx context.Context, inv invocation) error {
		if inv.room == nil {
			// Reachable only when an unknown tag registered as
			// room-scoped turns up in an account-wide collection.
			return fmt.Errorf("dispatch: %s arrived account-wide, room-scoped handler skipped", tag)
		}
		event, err := decode[T](tag, inv.raw)
		if err != nil {
			return err
		}
		return fn(ctx, RoomContext{Session: inv.session, Room: inv.room, Raw: inv.raw}, event)
	}
	return r.add(tag, shapeRoom, call), nil
}

// OnGlobalEvent registers an account-wide handler for a type tag.
// Registering an account-wide handler for a room-scoped protocol tag
// fails.
func OnGlobalEvent[T any](r *Registry, tag ref.EventType, fn func(ctx context.Context, gctx GlobalContext, event T) error) (Handle, error) {
	if fn == nil {
		return Handle{}, fmt.Errorf("dispatch: handler function is required")
	}
	if err := validateTag(tag, shapeGlobal); err != nil {
		return Handle{}, err
	}
	call := func(ctx context.Context, inv invocation) error {
		event, err := decode[T](tag, inv.raw)
		if err != nil {
			return err
		}
		return fn(ctx, GlobalContext{Session: inv.session, Raw: inv.raw}, event)
	}
	return r.add(tag, shapeGlobal, call), nil
}

// OnCustomEvent registers a handler on the generic custom channel. It
// receives every envelope whose tag has no protocol routing entry, in
// whichever custom-eligible collection it arrives.
func OnCustomEvent(r *Registry, fn func(ctx context.Context, event CustomEvent) error) (Handle, error) {
	if fn == nil {
		return Handle{}, fmt.Errorf("dispatch: handler function is required")
	}
	call := func(ctx context.Context, inv invocation) error {
		return fn(ctx, CustomEvent{Source: inv.source, Room: inv.room, Raw: inv.raw})
	}
	return r.add("", shapeCustom, call), nil
}
