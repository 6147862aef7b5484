// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records sync batches to an append-only file and
// replays them later. A journal makes dispatch runs reproducible: the
// dispatcher is stateless across batches, so feeding a recorded
// journal back through it reproduces the original handler sequence.
//
// Each record is CBOR-encoded (canonical field order), compressed as
// an independent zstd frame, and framed with a length prefix and a
// BLAKE3 checksum. Frames are self-contained, so a journal truncated
// by a crash loses at most its final record and replay detects the
// damage instead of decoding garbage.
package journal
