// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/lumen-chat/lumen/lib/ref"
)

func envelopeFor(eventType ref.EventType, raw string) Envelope {
	return Envelope{Type: eventType, Raw: json.RawMessage(raw)}
}

func TestClassifyRoutes(t *testing.T) {
	tests := []struct {
		name     string
		envelope Envelope
		category Category
		route    Route
		source   CustomSource
	}{
		{
			name:     "dedicated state tag",
			envelope: envelopeFor("m.room.power_levels", `{"type":"m.room.power_levels","state_key":""}`),
			category: CategoryState,
			route:    RouteDedicated,
		},
		{
			name:     "recognized state tag stays off the custom channel",
			envelope: envelopeFor("m.room.topic", `{"type":"m.room.topic","state_key":""}`),
			category: CategoryState,
			route:    RouteRecognized,
		},
		{
			name:     "unknown state tag",
			envelope: envelopeFor("org.example.mood", `{"type":"org.example.mood","state_key":""}`),
			category: CategoryState,
			route:    RouteCustom,
			source:   SourceState,
		},
		{
			name:     "dedicated message tag",
			envelope: envelopeFor("m.room.message", `{"type":"m.room.message"}`),
			category: CategoryTimeline,
			route:    RouteDedicated,
		},
		{
			name:     "sticker is recognized, not custom",
			envelope: envelopeFor("m.sticker", `{"type":"m.sticker"}`),
			category: CategoryTimeline,
			route:    RouteRecognized,
		},
		{
			name:     "unknown timeline tag without state key is a message",
			envelope: envelopeFor("org.example.poll", `{"type":"org.example.poll"}`),
			category: CategoryTimeline,
			route:    RouteCustom,
			source:   SourceMessage,
		},
		{
			name:     "unknown timeline tag with state key is state",
			envelope: envelopeFor("org.example.widget", `{"type":"org.example.widget","state_key":"w1"}`),
			category: CategoryTimeline,
			route:    RouteCustom,
			source:   SourceState,
		},
		{
			name:     "state event interleaved in timeline keeps its dedicated route",
			envelope: envelopeFor("m.room.member", `{"type":"m.room.member","state_key":"@a:x"}`),
			category: CategoryTimeline,
			route:    RouteDedicated,
		},
		{
			name:     "dedicated ephemeral tag",
			envelope: envelopeFor("m.receipt", `{"type":"m.receipt"}`),
			category: CategoryEphemeral,
			route:    RouteDedicated,
		},
		{
			name:     "unknown ephemeral tag",
			envelope: envelopeFor("org.example.typing", `{"type":"org.example.typing"}`),
			category: CategoryEphemeral,
			route:    RouteCustom,
			source:   SourceEphemeral,
		},
		{
			name:     "dedicated global account data tag",
			envelope: envelopeFor("m.push_rules", `{"type":"m.push_rules"}`),
			category: CategoryGlobalAccountData,
			route:    RouteDedicated,
		},
		{
			name:     "unknown global account data tag",
			envelope: envelopeFor("org.example.settings", `{"type":"org.example.settings"}`),
			category: CategoryGlobalAccountData,
			route:    RouteCustom,
			source:   SourceBasic,
		},
		{
			name:     "unknown stripped state tag",
			envelope: envelopeFor("org.example.banner", `{"type":"org.example.banner","state_key":""}`),
			category: CategoryStrippedState,
			route:    RouteCustom,
			source:   SourceStrippedState,
		},
		{
			name:     "dedicated room account data tag",
			envelope: envelopeFor("m.fully_read", `{"type":"m.fully_read"}`),
			category: CategoryRoomAccountData,
			route:    RouteDedicated,
		},
		{
			name:     "presence",
			envelope: envelopeFor("m.presence", `{"type":"m.presence"}`),
			category: CategoryPresence,
			route:    RouteDedicated,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := Classify(test.envelope, test.category)
			if c.Route != test.route {
				t.Errorf("route = %v, want %v", c.Route, test.route)
			}
			if c.Redacted {
				t.Error("event classified as redacted")
			}
			if test.route == RouteCustom && c.CustomEligible && c.Source != test.source {
				t.Errorf("source = %v, want %v", c.Source, test.source)
			}
		})
	}
}

func TestClassifyCustomEligibility(t *testing.T) {
	// Room account data has no custom discriminator: an unknown tag
	// there is dropped rather than surfaced.
	c := Classify(envelopeFor("org.example.note", `{"type":"org.example.note"}`), CategoryRoomAccountData)
	if c.Route != RouteCustom {
		t.Errorf("route = %v, want RouteCustom", c.Route)
	}
	if c.CustomEligible {
		t.Error("room account data should not be custom eligible")
	}

	// Same for notification events: the final pass re-delivers
	// timeline events, which already had their custom chance.
	c = Classify(envelopeFor("org.example.poll", `{"type":"org.example.poll"}`), CategoryNotification)
	if c.CustomEligible {
		t.Error("notifications should not be custom eligible")
	}
}

func TestClassifyRedacted(t *testing.T) {
	raw := `{"type":"m.room.message","unsigned":{"redacted_because":{"type":"m.room.redaction"}}}`
	c := Classify(envelopeFor("m.room.message", raw), CategoryTimeline)
	if !c.Redacted {
		t.Error("redacted event not detected")
	}

	// A plain unsigned block is not a redaction marker.
	c = Classify(envelopeFor("m.room.message", `{"type":"m.room.message","unsigned":{"age":12}}`), CategoryTimeline)
	if c.Redacted {
		t.Error("unredacted event classified as redacted")
	}
}

func TestCategoryRoomScoped(t *testing.T) {
	for category, want := range map[Category]bool{
		CategoryGlobalAccountData: false,
		CategoryPresence:          false,
		CategoryEphemeral:         true,
		CategoryRoomAccountData:   true,
		CategoryState:             true,
		CategoryTimeline:          true,
		CategoryStrippedState:     true,
		CategoryNotification:      true,
	} {
		if got := category.RoomScoped(); got != want {
			t.Errorf("%s.RoomScoped() = %v, want %v", category, got, want)
		}
	}
}
