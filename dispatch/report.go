// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
)

// reporter runs handler invocations and records their outcomes. The
// boundary is exactly one invocation: an error or panic is logged once
// with the handler's tag and never propagates, so sibling handlers and
// the rest of the batch always run.
type reporter struct {
	logger *slog.Logger
}

func (r *reporter) invoke(ctx context.Context, entry *handlerEntry, inv invocation, envelope Envelope, category Category) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("event handler panicked",
				"event_type", envelope.Type,
				"category", category.String(),
				"panic", p,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := entry.call(ctx, inv); err != nil {
		r.logger.Error("event handler failed",
			"event_type", envelope.Type,
			"category", category.String(),
			"error", err,
		)
	}
}
