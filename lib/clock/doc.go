// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock time behind an interface so that
// time-dependent code (the sync loop's retry backoff) can be tested
// deterministically.
//
// Production code injects [Real]. Tests inject [Fake], advance it
// explicitly with Advance, and use WaitForSleepers to synchronize with
// goroutines that are about to block on the clock.
package clock
