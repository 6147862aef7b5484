// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Lumen packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls. These are the only place
// in the test suite where real wall-clock timeouts are used; all other
// time-dependent code takes a clock.Clock and is driven by a fake in
// tests.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// event bodies or transaction IDs.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
