// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/lumen-chat/lumen/messaging"
)

// magic opens every journal file. The trailing digit is the format
// version.
var magic = []byte("lumenj1\n")

// checksumSize is the BLAKE3 digest length in the frame header.
const checksumSize = 32

// maxFrameBytes bounds a single compressed frame. Matches the response
// cap in the messaging client: a frame past this is corruption, not
// data.
const maxFrameBytes = 64 << 20

// ErrCorrupt reports a frame that failed its length, checksum or
// decode validation. Wrapped errors carry the detail.
var ErrCorrupt = errors.New("journal: corrupt frame")

// Record is one journaled sync batch together with the cursor that
// produced it, so replay can resume syncing from where the recording
// stopped.
type Record struct {
	// Since is the cursor the batch was requested with. Empty for the
	// initial sync.
	Since string `cbor:"since,omitempty"`
	// ReceivedUnixMS is when the batch arrived, in Unix milliseconds.
	ReceivedUnixMS int64 `cbor:"received_unix_ms"`
	// Response is the full sync response as received.
	Response *messaging.SyncResponse `cbor:"response"`
}

// encMode is the canonical CBOR encoder: deterministic field order so
// identical records produce identical bytes.
var encMode, decMode = func() (cbor.EncMode, cbor.DecMode) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("journal: building CBOR encoder: %v", err))
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("journal: building CBOR decoder: %v", err))
	}
	return enc, dec
}()

// Writer appends records to a journal stream. Safe for concurrent
// Append calls.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	encoder *zstd.Encoder
}

// NewWriter starts a journal on w by writing the magic header.
func NewWriter(w io.Writer) (*Writer, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("journal: creating zstd encoder: %w", err)
	}
	if _, err := w.Write(magic); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("journal: writing header: %w", err)
	}
	return &Writer{w: w, encoder: encoder}, nil
}

// Create opens (or creates) a journal file for appending. A fresh file
// gets the magic header; a non-empty one is assumed to carry it
// already.
func Create(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("journal: stat %s: %w", path, err)
	}

	encoder, encErr := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if encErr != nil {
		file.Close()
		return nil, fmt.Errorf("journal: creating zstd encoder: %w", encErr)
	}
	if info.Size() == 0 {
		if _, err := file.Write(magic); err != nil {
			encoder.Close()
			file.Close()
			return nil, fmt.Errorf("journal: writing header: %w", err)
		}
	}
	return &Writer{w: file, closer: file, encoder: encoder}, nil
}

// Append writes one record as a self-contained frame.
func (w *Writer) Append(record *Record) error {
	encoded, err := encMode.Marshal(record)
	if err != nil {
		return fmt.Errorf("journal: encoding record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	compressed := w.encoder.EncodeAll(encoded, nil)
	if len(compressed) > maxFrameBytes {
		return fmt.Errorf("journal: frame of %d bytes exceeds limit", len(compressed))
	}

	var header [4 + checksumSize]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(compressed)))
	sum := blake3.Sum256(compressed)
	copy(header[4:], sum[:])

	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("journal: writing frame header: %w", err)
	}
	if _, err := w.w.Write(compressed); err != nil {
		return fmt.Errorf("journal: writing frame body: %w", err)
	}
	return nil
}

// Close releases the compressor and closes the underlying file when
// the Writer owns one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.encoder.Close()
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader iterates a journal stream record by record.
type Reader struct {
	r       *bufio.Reader
	closer  io.Closer
	decoder *zstd.Decoder
}

// NewReader validates the magic header and positions the reader at the
// first frame.
func NewReader(r io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(r)
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(buffered, header); err != nil {
		return nil, fmt.Errorf("journal: reading header: %w", err)
	}
	if !bytes.Equal(header, magic) {
		return nil, fmt.Errorf("journal: not a journal file (header %q)", header)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("journal: creating zstd decoder: %w", err)
	}
	return &Reader{r: buffered, decoder: decoder}, nil
}

// Open opens a journal file for reading.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.closer = file
	return reader, nil
}

// Next returns the next record, or io.EOF at a clean end of journal.
// A truncated or corrupted frame returns an error wrapping ErrCorrupt.
func (r *Reader) Next() (*Record, error) {
	var header [4 + checksumSize]byte
	if _, err := io.ReadFull(r.r, header[:4]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated frame header: %v", ErrCorrupt, err)
	}
	length := binary.BigEndian.Uint32(header[:4])
	if length == 0 || length > maxFrameBytes {
		return nil, fmt.Errorf("%w: implausible frame length %d", ErrCorrupt, length)
	}
	if _, err := io.ReadFull(r.r, header[4:]); err != nil {
		return nil, fmt.Errorf("%w: truncated checksum: %v", ErrCorrupt, err)
	}

	compressed := make([]byte, length)
	if _, err := io.ReadFull(r.r, compressed); err != nil {
		return nil, fmt.Errorf("%w: truncated frame body: %v", ErrCorrupt, err)
	}
	sum := blake3.Sum256(compressed)
	if !bytes.Equal(sum[:], header[4:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	encoded, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing: %v", ErrCorrupt, err)
	}
	var record Record
	if err := decMode.Unmarshal(encoded, &record); err != nil {
		return nil, fmt.Errorf("%w: decoding record: %v", ErrCorrupt, err)
	}
	return &record, nil
}

// Close releases the decompressor and closes the underlying file when
// the Reader owns one.
func (r *Reader) Close() error {
	r.decoder.Close()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Sink journals every batch before forwarding it, so the recording is
// durable even when a downstream handler crashes the process.
type Sink struct {
	writer *Writer
	next   messaging.BatchSink
	since  func() string
	logger *slog.Logger
	now    func() time.Time
}

// NewSink wraps next with journaling. since reports the cursor the
// current batch was requested with (typically Syncer.Since); it may be
// nil. An append failure is logged and the batch still forwarded: a
// full disk must not stall the live event stream.
func NewSink(writer *Writer, next messaging.BatchSink, since func() string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: writer, next: next, since: since, logger: logger, now: time.Now}
}

// HandleSync implements messaging.BatchSink.
func (s *Sink) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	record := &Record{ReceivedUnixMS: s.now().UnixMilli(), Response: response}
	if s.since != nil {
		record.Since = s.since()
	}
	if err := s.writer.Append(record); err != nil {
		s.logger.Error("journal append failed", "error", err)
	}
	s.next.HandleSync(ctx, response)
}

// Replay feeds every record in the journal at path through sink, in
// recording order. Returns the number of batches replayed.
func Replay(ctx context.Context, path string, sink messaging.BatchSink) (int, error) {
	reader, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	replayed := 0
	for {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		record, err := reader.Next()
		if err == io.EOF {
			return replayed, nil
		}
		if err != nil {
			return replayed, err
		}
		sink.HandleSync(ctx, record.Response)
		replayed++
	}
}
