// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"net/http"
	"testing"

	"github.com/lumen-chat/lumen/lib/ref"
	"github.com/lumen-chat/lumen/lib/testutil"
)

func newServerSession(t *testing.T, handler http.Handler) *Session {
	t.Helper()
	client := newTestClient(t, handler)
	session, err := client.SessionFromToken(ref.MustParseUserID("@lumen:example.org"), "syt_token")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	return session
}

func assertAuth(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer syt_token" {
		t.Errorf("Authorization = %q, want Bearer syt_token", got)
	}
}

func TestWhoAmI(t *testing.T) {
	session := newServerSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		if r.URL.Path != "/_matrix/client/v3/account/whoami" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, WhoAmIResponse{UserID: ref.MustParseUserID("@lumen:example.org")})
	}))

	userID, err := session.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if userID.String() != "@lumen:example.org" {
		t.Errorf("user ID = %s", userID)
	}
}

func TestResolveAlias(t *testing.T) {
	session := newServerSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		// The alias must be path-escaped, # included.
		if r.URL.EscapedPath() != "/_matrix/client/v3/directory/room/%23lobby:example.org" {
			t.Errorf("path = %s", r.URL.EscapedPath())
		}
		writeJSON(t, w, http.StatusOK, ResolveAliasResponse{
			RoomID: ref.MustParseRoomID("!lobby:example.org"),
		})
	}))

	roomID, err := session.ResolveAlias(context.Background(), "#lobby:example.org")
	if err != nil {
		t.Fatalf("resolve alias: %v", err)
	}
	if roomID.String() != "!lobby:example.org" {
		t.Errorf("room ID = %s", roomID)
	}

	if _, err := session.ResolveAlias(context.Background(), ""); err == nil {
		t.Error("expected error for empty alias")
	}
}

func TestSendMessage(t *testing.T) {
	roomID := ref.MustParseRoomID("!room:example.org")
	transactionID := testutil.UniqueID("txn")
	session := newServerSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		want := "/_matrix/client/v3/rooms/%21room:example.org/send/m.room.message/" + transactionID
		if r.URL.EscapedPath() != want {
			t.Errorf("path = %s, want %s", r.URL.EscapedPath(), want)
		}
		writeJSON(t, w, http.StatusOK, SendEventResponse{
			EventID: ref.MustParseEventID("$event:example.org"),
		})
	}))

	eventID, err := session.SendMessage(context.Background(), roomID, NewTextMessage("hello"), transactionID)
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if eventID.String() != "$event:example.org" {
		t.Errorf("event ID = %s", eventID)
	}

	if _, err := session.SendMessage(context.Background(), ref.RoomID{}, NewTextMessage("x"), "txn-2"); err == nil {
		t.Error("expected error for zero room ID")
	}
	if _, err := session.SendMessage(context.Background(), roomID, NewTextMessage("x"), ""); err == nil {
		t.Error("expected error for empty transaction ID")
	}
}

func TestSyncQueryParameters(t *testing.T) {
	session := newServerSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		query := r.URL.Query()
		if got := query.Get("since"); got != "s42" {
			t.Errorf("since = %q", got)
		}
		if got := query.Get("timeout"); got != "30000" {
			t.Errorf("timeout = %q", got)
		}
		if got := query.Get("filter"); got != "7" {
			t.Errorf("filter = %q", got)
		}
		writeJSON(t, w, http.StatusOK, SyncResponse{NextBatch: "s43"})
	}))

	response, err := session.Sync(context.Background(), SyncOptions{
		Since:      "s42",
		Timeout:    30000,
		SetTimeout: true,
		Filter:     "7",
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if response.NextBatch != "s43" {
		t.Errorf("next_batch = %q", response.NextBatch)
	}
}

func TestSyncInitialOmitsSince(t *testing.T) {
	session := newServerSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Has("since") {
			t.Error("initial sync sent a since token")
		}
		// Timeout zero is still explicit when SetTimeout is set, so
		// the server returns immediately instead of defaulting.
		if got := query.Get("timeout"); got != "0" {
			t.Errorf("timeout = %q, want 0", got)
		}
		writeJSON(t, w, http.StatusOK, SyncResponse{NextBatch: "s1"})
	}))

	if _, err := session.Sync(context.Background(), SyncOptions{SetTimeout: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func TestJoinedRooms(t *testing.T) {
	session := newServerSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		writeJSON(t, w, http.StatusOK, JoinedRoomsResponse{
			JoinedRooms: []ref.RoomID{ref.MustParseRoomID("!a:x.org")},
		})
	}))

	rooms, err := session.JoinedRooms(context.Background())
	if err != nil {
		t.Fatalf("joined rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].String() != "!a:x.org" {
		t.Errorf("rooms = %v", rooms)
	}
}
