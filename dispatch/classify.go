// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"github.com/tidwall/gjson"

	"github.com/lumen-chat/lumen/lib/ref"
)

// Route is how an envelope reaches handlers.
type Route int

const (
	// RouteDedicated: the tag has a protocol routing entry in its
	// category. Handlers registered for the tag run; the custom
	// channel never sees it.
	RouteDedicated Route = iota
	// RouteRecognized: the tag is a known protocol tag that is
	// deliberately not fed to the custom channel (encryption
	// machinery, spaces, policy rules, stickers and similar).
	// Handlers registered for the tag still run.
	RouteRecognized
	// RouteCustom: the tag is unknown within its category. Handlers
	// registered for the tag run first, then the custom channel.
	RouteCustom
)

// Classification is the classifier's verdict on one envelope.
type Classification struct {
	Route Route
	// Source is the custom-channel discriminator, meaningful only for
	// RouteCustom in a custom-eligible category.
	Source CustomSource
	// CustomEligible reports whether this category feeds unknown tags
	// to the custom channel at all.
	CustomEligible bool
	// Redacted reports that the event has been redacted. Redacted
	// events get no handler invocation of any kind.
	Redacted bool
}

// Dedicated state tags: room metadata with first-class handler
// support.
var dedicatedStateTags = map[ref.EventType]bool{
	"m.room.member":          true,
	"m.room.name":            true,
	"m.room.aliases":         true,
	"m.room.avatar":          true,
	"m.room.power_levels":    true,
	"m.room.join_rules":      true,
	"m.room.canonical_alias": true,
	"m.room.tombstone":       true,
}

// Recognized state tags: part of the protocol but routed only to
// handlers registered for the exact tag, never to the custom channel.
var recognizedStateTags = map[ref.EventType]bool{
	"m.room.create":             true,
	"m.room.topic":              true,
	"m.room.encryption":         true,
	"m.room.guest_access":       true,
	"m.room.history_visibility": true,
	"m.room.pinned_events":      true,
	"m.room.server_acl":         true,
	"m.room.third_party_invite": true,
	"m.space.child":             true,
	"m.space.parent":            true,
	"m.policy.rule.room":        true,
	"m.policy.rule.server":      true,
	"m.policy.rule.user":        true,
}

// Dedicated message tags.
var dedicatedMessageTags = map[ref.EventType]bool{
	"m.room.message":          true,
	"m.room.message.feedback": true,
	"m.room.redaction":        true,
	"m.reaction":              true,
	"m.call.invite":           true,
	"m.call.answer":           true,
	"m.call.candidates":       true,
	"m.call.hangup":           true,
}

// Recognized message tags, withheld from the custom channel.
var recognizedMessageTags = map[ref.EventType]bool{
	"m.room.encrypted":           true,
	"m.sticker":                  true,
	"m.key.verification.ready":   true,
	"m.key.verification.start":   true,
	"m.key.verification.cancel":  true,
	"m.key.verification.accept":  true,
	"m.key.verification.key":     true,
	"m.key.verification.mac":     true,
	"m.key.verification.done":    true,
	"m.key.verification.request": true,
	"m.room_key":                 true,
	"m.room_key_request":         true,
	"m.forwarded_room_key":       true,
	"m.secret.request":           true,
	"m.secret.send":              true,
}

var dedicatedEphemeralTags = map[ref.EventType]bool{
	"m.typing":  true,
	"m.receipt": true,
}

var dedicatedGlobalAccountTags = map[ref.EventType]bool{
	"m.ignored_user_list": true,
	"m.push_rules":        true,
}

var dedicatedRoomAccountTags = map[ref.EventType]bool{
	"m.fully_read": true,
}

// Classify assigns a route to an envelope based on its tag, the
// collection it came from, and its redaction status.
func Classify(envelope Envelope, category Category) Classification {
	c := Classification{Redacted: redacted(envelope.Raw)}

	switch category {
	case CategoryGlobalAccountData:
		c.CustomEligible = true
		c.Source = SourceBasic
		c.Route = route(envelope.Type, dedicatedGlobalAccountTags, nil)
	case CategoryEphemeral:
		c.CustomEligible = true
		c.Source = SourceEphemeral
		c.Route = route(envelope.Type, dedicatedEphemeralTags, nil)
	case CategoryRoomAccountData:
		// Unknown room account data is not surfaced: there is no
		// room-account-data custom discriminator.
		c.Route = route(envelope.Type, dedicatedRoomAccountTags, nil)
	case CategoryState, CategoryStrippedState:
		c.CustomEligible = true
		c.Source = SourceState
		if category == CategoryStrippedState {
			c.Source = SourceStrippedState
		}
		c.Route = route(envelope.Type, dedicatedStateTags, recognizedStateTags)
	case CategoryTimeline, CategoryNotification:
		// Timelines interleave state and message events; an unknown
		// tag is discriminated by the structural presence of a state
		// key.
		c.CustomEligible = category == CategoryTimeline
		c.Source = SourceMessage
		if gjson.GetBytes(envelope.Raw, "state_key").Exists() {
			c.Source = SourceState
			c.Route = route(envelope.Type, dedicatedStateTags, recognizedStateTags)
		} else {
			c.Route = route(envelope.Type, dedicatedMessageTags, recognizedMessageTags)
		}
	case CategoryPresence:
		// Presence carries a single protocol type. Anything else is
		// dropped without a custom path.
		if envelope.Type == "m.presence" {
			c.Route = RouteDedicated
		} else {
			c.Route = RouteCustom
		}
	}

	return c
}

func route(tag ref.EventType, dedicated, recognized map[ref.EventType]bool) Route {
	if dedicated[tag] {
		return RouteDedicated
	}
	if recognized[tag] {
		return RouteRecognized
	}
	return RouteCustom
}

// redacted reports whether the event carries a redaction marker. The
// peek avoids decoding the event just to discard it.
func redacted(raw []byte) bool {
	return gjson.GetBytes(raw, "unsigned.redacted_because").Exists()
}

// tagScope reports whether a tag has a protocol entry in any category
// and, if so, whether that entry is room-scoped. Used to reject
// registrations whose context shape contradicts the protocol tables.
func tagScope(tag ref.EventType) (roomScoped, known bool) {
	switch {
	case dedicatedStateTags[tag], recognizedStateTags[tag],
		dedicatedMessageTags[tag], recognizedMessageTags[tag],
		dedicatedEphemeralTags[tag], dedicatedRoomAccountTags[tag]:
		return true, true
	case dedicatedGlobalAccountTags[tag], tag == "m.presence":
		return false, true
	default:
		return false, false
	}
}
