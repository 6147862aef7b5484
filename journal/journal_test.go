// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumen-chat/lumen/lib/ref"
	"github.com/lumen-chat/lumen/messaging"
)

func testResponse(t *testing.T, nextBatch string) *messaging.SyncResponse {
	t.Helper()
	wire := `{
		"next_batch": "` + nextBatch + `",
		"rooms": {"join": {"!room:x.org": {
			"timeline": {"events": [{"type":"m.room.message","content":{"body":"hi"}}], "prev_batch": "t1"}
		}}}
	}`
	var response messaging.SyncResponse
	if err := json.Unmarshal([]byte(wire), &response); err != nil {
		t.Fatalf("decoding test response: %v", err)
	}
	return &response
}

func TestJournalRoundTrip(t *testing.T) {
	var buffer bytes.Buffer
	writer, err := NewWriter(&buffer)
	if err != nil {
		t.Fatalf("creating writer: %v", err)
	}

	first := testResponse(t, "s1")
	first.Notifications = map[ref.RoomID][]messaging.RawEvent{
		ref.MustParseRoomID("!room:x.org"): {
			{Type: "m.room.message", Raw: json.RawMessage(`{"type":"m.room.message","content":{"body":"ping"}}`)},
		},
	}
	records := []*Record{
		{Since: "", ReceivedUnixMS: 1000, Response: first},
		{Since: "s1", ReceivedUnixMS: 2000, Response: testResponse(t, "s2")},
	}
	for _, record := range records {
		if err := writer.Append(record); err != nil {
			t.Fatalf("appending: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}

	reader, err := NewReader(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("creating reader: %v", err)
	}
	defer reader.Close()

	for i, want := range records {
		got, err := reader.Next()
		if err != nil {
			t.Fatalf("reading record %d: %v", i, err)
		}
		if got.Since != want.Since || got.ReceivedUnixMS != want.ReceivedUnixMS {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
		if got.Response.NextBatch != want.Response.NextBatch {
			t.Errorf("record %d next_batch = %q, want %q", i, got.Response.NextBatch, want.Response.NextBatch)
		}
	}

	// Notifications travel through the journal even though they are
	// not part of the sync wire format.
	reader2, err := NewReader(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("creating second reader: %v", err)
	}
	defer reader2.Close()
	record, err := reader2.Next()
	if err != nil {
		t.Fatalf("re-reading first record: %v", err)
	}
	events := record.Response.Notifications[ref.MustParseRoomID("!room:x.org")]
	if len(events) != 1 || events[0].Type != "m.room.message" {
		t.Errorf("notifications did not round-trip: %+v", record.Response.Notifications)
	}

	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF at end of journal", err)
	}
}

func TestJournalPreservesEventBytes(t *testing.T) {
	wireEvent := `{"content": {"body":"hi"},  "type": "m.room.message"}`
	response := &messaging.SyncResponse{NextBatch: "s1"}
	if err := json.Unmarshal([]byte(`{"next_batch":"s1","account_data":{"events":[`+wireEvent+`]},"rooms":{}}`), response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	var buffer bytes.Buffer
	writer, err := NewWriter(&buffer)
	if err != nil {
		t.Fatalf("creating writer: %v", err)
	}
	if err := writer.Append(&Record{Response: response}); err != nil {
		t.Fatalf("appending: %v", err)
	}
	writer.Close()

	reader, err := NewReader(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("creating reader: %v", err)
	}
	defer reader.Close()
	record, err := reader.Next()
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	got := record.Response.AccountData.Events
	if len(got) != 1 || string(got[0].Raw) != wireEvent {
		t.Errorf("event bytes altered through journal:\n got %s\nwant %s", got[0].Raw, wireEvent)
	}
}

func TestJournalDetectsCorruption(t *testing.T) {
	var buffer bytes.Buffer
	writer, err := NewWriter(&buffer)
	if err != nil {
		t.Fatalf("creating writer: %v", err)
	}
	if err := writer.Append(&Record{Response: testResponse(t, "s1")}); err != nil {
		t.Fatalf("appending: %v", err)
	}
	writer.Close()

	t.Run("flipped byte", func(t *testing.T) {
		damaged := bytes.Clone(buffer.Bytes())
		damaged[len(damaged)-1] ^= 0xFF
		reader, err := NewReader(bytes.NewReader(damaged))
		if err != nil {
			t.Fatalf("creating reader: %v", err)
		}
		defer reader.Close()
		if _, err := reader.Next(); !errors.Is(err, ErrCorrupt) {
			t.Errorf("err = %v, want ErrCorrupt", err)
		}
	})

	t.Run("truncated frame", func(t *testing.T) {
		truncated := buffer.Bytes()[:len(buffer.Bytes())-7]
		reader, err := NewReader(bytes.NewReader(truncated))
		if err != nil {
			t.Fatalf("creating reader: %v", err)
		}
		defer reader.Close()
		if _, err := reader.Next(); !errors.Is(err, ErrCorrupt) {
			t.Errorf("err = %v, want ErrCorrupt", err)
		}
	})

	t.Run("wrong magic", func(t *testing.T) {
		if _, err := NewReader(bytes.NewReader([]byte("notajournal"))); err == nil {
			t.Error("expected header validation to fail")
		}
	})
}

func TestJournalFileAppendAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.journal")

	writer, err := Create(path)
	if err != nil {
		t.Fatalf("creating journal: %v", err)
	}
	if err := writer.Append(&Record{Since: "", Response: testResponse(t, "s1")}); err != nil {
		t.Fatalf("appending: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	// Reopening must append, not rewrite the header.
	writer, err = Create(path)
	if err != nil {
		t.Fatalf("reopening journal: %v", err)
	}
	if err := writer.Append(&Record{Since: "s1", Response: testResponse(t, "s2")}); err != nil {
		t.Fatalf("appending after reopen: %v", err)
	}
	writer.Close()

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	defer reader.Close()
	var cursors []string
	for {
		record, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading: %v", err)
		}
		cursors = append(cursors, record.Response.NextBatch)
	}
	if len(cursors) != 2 || cursors[0] != "s1" || cursors[1] != "s2" {
		t.Errorf("cursors = %v, want [s1 s2]", cursors)
	}
}

type recordingSink struct {
	batches []*messaging.SyncResponse
}

func (s *recordingSink) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	s.batches = append(s.batches, response)
}

func TestSinkJournalsAndForwards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.journal")
	writer, err := Create(path)
	if err != nil {
		t.Fatalf("creating journal: %v", err)
	}

	inner := &recordingSink{}
	cursor := ""
	sink := NewSink(writer, inner, func() string { return cursor }, slog.New(slog.DiscardHandler))

	sink.HandleSync(context.Background(), testResponse(t, "s1"))
	cursor = "s1"
	sink.HandleSync(context.Background(), testResponse(t, "s2"))
	writer.Close()

	if len(inner.batches) != 2 {
		t.Fatalf("inner sink saw %d batches, want 2", len(inner.batches))
	}

	replay := &recordingSink{}
	replayed, err := Replay(context.Background(), path, replay)
	if err != nil {
		t.Fatalf("replaying: %v", err)
	}
	if replayed != 2 || len(replay.batches) != 2 {
		t.Fatalf("replayed %d batches (%d delivered), want 2", replayed, len(replay.batches))
	}
	if replay.batches[0].NextBatch != "s1" || replay.batches[1].NextBatch != "s2" {
		t.Errorf("replay order = %s, %s", replay.batches[0].NextBatch, replay.batches[1].NextBatch)
	}
}

func TestReplayMissingFile(t *testing.T) {
	_, err := Replay(context.Background(), filepath.Join(t.TempDir(), "absent.journal"), &recordingSink{})
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want wrapped os.ErrNotExist", err)
	}
}
