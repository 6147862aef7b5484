// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"sort"
	"sync"

	"github.com/lumen-chat/lumen/lib/ref"
)

// Membership is the local user's relationship to a room.
type Membership string

// Membership states, matching the /sync rooms section buckets.
const (
	MembershipJoin   Membership = "join"
	MembershipInvite Membership = "invite"
	MembershipLeave  Membership = "leave"
)

// Room is a lightweight handle on a room known to the local client.
// Handles are stable across sync rounds: the tracker updates membership
// in place, so a Room captured by an event handler observes later
// membership changes.
type Room struct {
	id      ref.RoomID
	session *Session

	mu         sync.Mutex
	membership Membership
}

// ID returns the room ID.
func (r *Room) ID() ref.RoomID { return r.id }

// Membership returns the local user's current membership in the room.
func (r *Room) Membership() Membership {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membership
}

// SendMessage sends an m.room.message event to this room.
func (r *Room) SendMessage(ctx context.Context, content MessageContent, transactionID string) (ref.EventID, error) {
	return r.session.SendMessage(ctx, r.id, content, transactionID)
}

func (r *Room) setMembership(m Membership) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.membership = m
}

// RoomTracker is the client-owned directory of rooms known locally,
// fed by each sync response. It is created alongside the session and
// torn down with it — never a process-wide singleton.
//
// Lookup is fallible by design: an event can reference a room the
// tracker has not seen yet (a benign race between the event stream and
// local state). Callers skip such events rather than treating the miss
// as an error.
type RoomTracker struct {
	session *Session

	mu    sync.RWMutex
	rooms map[ref.RoomID]*Room
}

// NewRoomTracker creates an empty tracker bound to the session.
func NewRoomTracker(session *Session) *RoomTracker {
	return &RoomTracker{
		session: session,
		rooms:   make(map[ref.RoomID]*Room),
	}
}

// Room looks up a room by ID. The second return is false when the room
// is not yet known locally.
func (t *RoomTracker) Room(id ref.RoomID) (*Room, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	room, ok := t.rooms[id]
	return room, ok
}

// Update records membership changes from one sync response. Rooms are
// created on first sight and updated in place afterwards.
func (t *RoomTracker) Update(response *SyncResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for roomID := range response.Rooms.Join {
		t.upsertLocked(roomID, MembershipJoin)
	}
	for roomID := range response.Rooms.Invite {
		t.upsertLocked(roomID, MembershipInvite)
	}
	for roomID := range response.Rooms.Leave {
		t.upsertLocked(roomID, MembershipLeave)
	}
}

func (t *RoomTracker) upsertLocked(id ref.RoomID, membership Membership) {
	if room, ok := t.rooms[id]; ok {
		room.setMembership(membership)
		return
	}
	t.rooms[id] = &Room{
		id:         id,
		session:    t.session,
		membership: membership,
	}
}

// Rooms returns all known rooms sorted by room ID, for deterministic
// display.
func (t *RoomTracker) Rooms() []*Room {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rooms := make([]*Room, 0, len(t.rooms))
	for _, room := range t.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].id.String() < rooms[j].id.String()
	})
	return rooms
}

// Len returns the number of rooms known locally.
func (t *RoomTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
