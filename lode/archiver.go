package lode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/aetheric/metrics"
	"github.com/justapithecus/aetheric/types"
)

// DefaultFlushCount is the number of buffered records that triggers a flush.
const DefaultFlushCount = 64

// ErrArchiverClosed is returned by appends after Close.
var ErrArchiverClosed = errors.New("archiver closed")

// Archiver buffers a session's records and writes them in batches.
//
// Records keep their append order: each gets the next sequence number and
// batches are written in order. A failed flush drops the batch and is
// counted; the archive is best effort and never stops a session.
type Archiver struct {
	client     Client
	cfg        Config
	flushCount int
	metrics    *metrics.Collector
	now        func() time.Time

	mu      sync.Mutex
	pending []map[string]any
	seq     int64
	closed  bool
}

// NewArchiver wraps client. flushCount <= 0 selects DefaultFlushCount.
func NewArchiver(client Client, cfg Config, flushCount int, collector *metrics.Collector) *Archiver {
	if flushCount <= 0 {
		flushCount = DefaultFlushCount
	}
	return &Archiver{
		client:     client,
		cfg:        cfg,
		flushCount: flushCount,
		metrics:    collector,
		now:        time.Now,
	}
}

// ArchiveASCII buffers an ASCII message record.
func (a *Archiver) ArchiveASCII(ctx context.Context, f types.ASCIIFrame) error {
	return a.append(ctx, func(seq int64, at time.Time) map[string]any {
		return ASCIIRecord(a.cfg, seq, f, at)
	})
}

// ArchiveBinary buffers a binary message record.
func (a *Archiver) ArchiveBinary(ctx context.Context, f types.BinaryFrame) error {
	return a.append(ctx, func(seq int64, at time.Time) map[string]any {
		return BinaryRecord(a.cfg, seq, f, at)
	})
}

// ArchiveDiscard buffers a discard record.
func (a *Archiver) ArchiveDiscard(ctx context.Context, ev types.DiscardEvent) error {
	return a.append(ctx, func(seq int64, at time.Time) map[string]any {
		return DiscardRecord(a.cfg, seq, ev, at)
	})
}

// ArchiveSummary buffers the session summary and flushes immediately.
func (a *Archiver) ArchiveSummary(ctx context.Context, outcome string, s metrics.Snapshot) error {
	if err := a.append(ctx, func(seq int64, at time.Time) map[string]any {
		return SummaryRecord(a.cfg, seq, outcome, s, at)
	}); err != nil {
		return err
	}
	return a.Flush(ctx)
}

func (a *Archiver) append(ctx context.Context, build func(seq int64, at time.Time) map[string]any) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrArchiverClosed
	}
	a.seq++
	a.pending = append(a.pending, build(a.seq, a.now()))
	full := len(a.pending) >= a.flushCount
	a.mu.Unlock()

	if full {
		return a.Flush(ctx)
	}
	return nil
}

// Flush writes buffered records. Returns the write error, if any; the batch
// is dropped either way.
func (a *Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := a.client.WriteRecords(ctx, batch); err != nil {
		a.metrics.IncArchiveWriteFailure()
		return err
	}
	a.metrics.IncArchiveWriteSuccess()
	return nil
}

// Pending returns the number of buffered records.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Close flushes remaining records and closes the client. Idempotent.
func (a *Archiver) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	flushErr := a.Flush(ctx)
	return errors.Join(flushErr, a.client.Close())
}
