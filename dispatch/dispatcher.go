// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lumen-chat/lumen/lib/ref"
	"github.com/lumen-chat/lumen/messaging"
)

// RoomResolver looks up live room handles by ID. The lookup is
// fallible: an event can reference a room the client has not recorded
// yet, and such events are skipped rather than treated as errors.
// *messaging.RoomTracker satisfies this.
type RoomResolver interface {
	Room(id ref.RoomID) (*messaging.Room, bool)
}

// Config configures a Dispatcher.
type Config struct {
	// Registry holds the handlers. Required.
	Registry *Registry
	// Session is the authenticated session handed to handler contexts.
	// Required.
	Session *messaging.Session
	// Rooms resolves room IDs to live handles. Required.
	Rooms RoomResolver
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Dispatcher walks batches in a fixed order and invokes matching
// handlers. Within one batch the order is: global account data, then
// joined rooms (ephemeral, room account data, state, timeline), then
// left rooms (room account data, state, timeline), then invited rooms
// (stripped state), then presence, then notification events as a final
// pass. Rooms within a bucket are visited in room-ID order and events
// within a collection in arrival order, so dispatching the same batch
// twice against the same registry produces the same invocation
// sequence.
type Dispatcher struct {
	registry *Registry
	session  *messaging.Session
	rooms    RoomResolver
	logger   *slog.Logger
	reporter *reporter
}

// New creates a Dispatcher from the config.
func New(config Config) (*Dispatcher, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("dispatch: Dispatcher requires a Registry")
	}
	if config.Session == nil {
		return nil, fmt.Errorf("dispatch: Dispatcher requires a Session")
	}
	if config.Rooms == nil {
		return nil, fmt.Errorf("dispatch: Dispatcher requires a room resolver")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: config.Registry,
		session:  config.Session,
		rooms:    config.Rooms,
		logger:   logger,
		reporter: &reporter{logger: logger},
	}, nil
}

// HandleSync implements messaging.BatchSink: it feeds the room
// resolver when it tracks membership, regroups the response into a
// batch, and dispatches it.
func (d *Dispatcher) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	if updater, ok := d.rooms.(interface{ Update(*messaging.SyncResponse) }); ok {
		updater.Update(response)
	}
	d.Dispatch(ctx, NewBatch(response))
}

// Dispatch runs one batch to completion. It never returns early:
// handler errors and panics are reported per invocation and the walk
// continues.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *Batch) {
	d.collection(ctx, batch.AccountData, CategoryGlobalAccountData)

	for _, room := range batch.Joined {
		d.collection(ctx, room.Ephemeral, CategoryEphemeral)
		d.collection(ctx, room.AccountData, CategoryRoomAccountData)
		d.collection(ctx, room.State, CategoryState)
		d.collection(ctx, room.Timeline, CategoryTimeline)
	}
	for _, room := range batch.Left {
		d.collection(ctx, room.AccountData, CategoryRoomAccountData)
		d.collection(ctx, room.State, CategoryState)
		d.collection(ctx, room.Timeline, CategoryTimeline)
	}
	for _, room := range batch.Invited {
		d.collection(ctx, room.StrippedState, CategoryStrippedState)
	}

	d.collection(ctx, batch.Presence, CategoryPresence)

	for _, room := range batch.Notifications {
		d.collection(ctx, room.Events, CategoryNotification)
	}
}

func (d *Dispatcher) collection(ctx context.Context, envelopes []Envelope, category Category) {
	for _, envelope := range envelopes {
		d.envelope(ctx, envelope, category)
	}
}

func (d *Dispatcher) envelope(ctx context.Context, envelope Envelope, category Category) {
	c := Classify(envelope, category)
	if c.Redacted {
		return
	}

	// One snapshot per tag per envelope: handlers registered or
	// removed by an earlier invocation for this same envelope are not
	// picked up mid-envelope.
	direct := d.registry.snapshot(envelope.Type)
	var custom []*handlerEntry
	if c.Route == RouteCustom && c.CustomEligible {
		custom = d.registry.snapshotCustom()
	}
	if len(direct) == 0 && len(custom) == 0 {
		// Cheap path: no decode, no room lookup.
		return
	}

	inv := invocation{session: d.session, raw: envelope.Raw, source: c.Source}
	if category.RoomScoped() {
		room, ok := d.rooms.Room(envelope.RoomID)
		if !ok {
			// Benign race between the event stream and local room
			// state. Skip rather than fail.
			d.logger.Debug("skipping event for unknown room",
				"room_id", envelope.RoomID,
				"event_type", envelope.Type,
				"category", category.String(),
			)
			return
		}
		if room == nil {
			panic("dispatch: room resolver returned a nil room")
		}
		inv.room = room
	}

	for _, entry := range direct {
		d.reporter.invoke(ctx, entry, inv, envelope, category)
	}
	for _, entry := range custom {
		d.reporter.invoke(ctx, entry, inv, envelope, category)
	}
}
