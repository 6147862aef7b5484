// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumen-chat/lumen/lib/clock"
)

// maxSyncRetries is the number of consecutive /sync failures allowed
// before Run returns an error.
const maxSyncRetries = 5

// defaultLongPollTimeout is the server-side long-poll hold time in
// milliseconds for normal /sync calls. 30 seconds matches the Matrix
// client-server spec recommendation.
const defaultLongPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds used after a
// /sync error. Short so the retry completes quickly.
const retryTimeout = 1000

// retryBackoff is the client-side pause between consecutive failed
// /sync attempts, multiplied by the attempt number.
const retryBackoff = time.Second

// BatchSink consumes sync responses in arrival order. The Syncer calls
// HandleSync synchronously, so one batch is fully consumed before the
// next long-poll begins — consumers that dispatch events never see
// overlapping passes.
type BatchSink interface {
	HandleSync(ctx context.Context, response *SyncResponse)
}

// SyncerConfig configures a Syncer.
type SyncerConfig struct {
	// Session is the authenticated session to sync on.
	Session *Session
	// Sink receives each sync response. Required.
	Sink BatchSink
	// Since is the sync token to resume from. Empty for initial sync.
	Since string
	// TimeoutMS is the server-side long-poll hold in milliseconds.
	// Zero uses the 30-second default.
	TimeoutMS int
	// Filter is an inline JSON filter or server-side filter ID.
	Filter string
	// Clock is used for retry backoff. If nil, the real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Syncer runs the /sync long-poll loop. It owns the sync cursor: the
// since token advances only after a response has been handed to the
// sink, so a crash-and-resume never skips a batch. The consumer is
// deliberately stateless across batches — re-dispatching a recorded
// batch is always possible because nothing here feeds hidden state
// into the sink.
//
// Syncer is not safe for concurrent Run calls.
type Syncer struct {
	session   *Session
	sink      BatchSink
	nextBatch string
	timeoutMS int
	filter    string
	clock     clock.Clock
	logger    *slog.Logger
}

// NewSyncer creates a Syncer from the config.
func NewSyncer(config SyncerConfig) (*Syncer, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("messaging: Syncer requires a Session")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("messaging: Syncer requires a Sink")
	}
	timeoutMS := config.TimeoutMS
	if timeoutMS == 0 {
		timeoutMS = defaultLongPollTimeout
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		session:   config.Session,
		sink:      config.Sink,
		nextBatch: config.Since,
		timeoutMS: timeoutMS,
		filter:    config.Filter,
		clock:     clk,
		logger:    logger,
	}, nil
}

// Since returns the current sync cursor. Persist it to resume after a
// restart without replaying already-handled batches.
func (s *Syncer) Since() string { return s.nextBatch }

// Run long-polls /sync until ctx is cancelled (returns ctx.Err()) or
// maxSyncRetries consecutive sync calls fail (returns the last error).
// Each response is handed to the sink before the next poll starts.
func (s *Syncer) Run(ctx context.Context) error {
	var syncRetries int

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// On retry after an error, use a short server-side timeout so
		// the attempt completes quickly; otherwise hold the long poll.
		syncTimeout := s.timeoutMS
		if syncRetries > 0 {
			syncTimeout = retryTimeout
		}

		response, err := s.session.Sync(ctx, SyncOptions{
			Since:      s.nextBatch,
			SetTimeout: true,
			Timeout:    syncTimeout,
			Filter:     s.filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			syncRetries++
			// TCP-level errors (connection reset, EOF) often indicate
			// a poisoned connection in Go's HTTP pool. Drop idle
			// connections so the next attempt opens a fresh socket.
			s.session.CloseIdleConnections()
			if syncRetries > maxSyncRetries {
				return fmt.Errorf("messaging: sync failed %d consecutive times: %w", syncRetries, err)
			}
			s.logger.Warn("sync error, retrying",
				"attempt", syncRetries,
				"max_attempts", maxSyncRetries,
				"error", err,
			)
			s.clock.Sleep(time.Duration(syncRetries) * retryBackoff)
			continue
		}
		syncRetries = 0

		s.sink.HandleSync(ctx, response)
		s.nextBatch = response.NextBatch
	}
}
