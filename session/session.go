// Package session drives one collector connection end to end.
//
// A session dials the server, authenticates, and feeds every received chunk
// to a proto.Parser in arrival order. A single reader goroutine owns the
// socket reads and hands fresh buffers to the processing loop over a
// channel, so chunks are never reordered or processed concurrently.
//
// Stop policy: once MinMessages frames have completed the session sends
// STATUS once; the first quiet period after that ends the session cleanly.
// A quiet period before STATUS is a transport failure.
//
// Teardown always runs: the parser is closed (an open spool is released and
// its temp file left for out-of-band cleanup), the session row is finalized,
// a summary is archived, and the adapter is notified.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/aetheric/adapter"
	"github.com/justapithecus/aetheric/admission"
	"github.com/justapithecus/aetheric/errkind"
	"github.com/justapithecus/aetheric/iox"
	"github.com/justapithecus/aetheric/lode"
	"github.com/justapithecus/aetheric/log"
	"github.com/justapithecus/aetheric/metrics"
	"github.com/justapithecus/aetheric/proto"
	"github.com/justapithecus/aetheric/store"
)

// Outcome classifies how a session ended.
type Outcome string

const (
	// OutcomeCompleted is a clean end: quiet after STATUS, or end of a replay.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRemoteClosed means the server closed the connection.
	OutcomeRemoteClosed Outcome = "remote_closed"
	// OutcomeTransportError is a socket failure or an early timeout.
	OutcomeTransportError Outcome = "transport_error"
	// OutcomeParseError is an internal invariant violation in the parser.
	OutcomeParseError Outcome = "parse_error"
	// OutcomeStorageError means a completed frame could not be persisted.
	OutcomeStorageError Outcome = "storage_error"
	// OutcomeCanceled means the context was canceled.
	OutcomeCanceled Outcome = "canceled"
)

// IsSuccess reports whether the outcome is a normal end of session.
func (o Outcome) IsSuccess() bool {
	return o == OutcomeCompleted || o == OutcomeRemoteClosed
}

// Defaults applied when the corresponding Options field is zero.
const (
	DefaultDialTimeout = 10 * time.Second
	DefaultReadTimeout = 5 * time.Second
	DefaultMinMessages = 600
)

const (
	teardownTimeout = 30 * time.Second
	chunkQueueDepth = 16
)

// ArchiveOpener creates the archive client for a session.
type ArchiveOpener func(cfg lode.Config) (lode.Client, error)

// Options configures a session.
type Options struct {
	// Addr is the server host:port (Run only).
	Addr string
	// Token is sent in the AUTH greeting (Run only).
	Token string
	// DialTimeout bounds connection setup. Zero means DefaultDialTimeout.
	DialTimeout time.Duration
	// ReadTimeout is the quiet period per read. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration
	// MinMessages completed frames trigger the STATUS request. Zero sends
	// STATUS right after the greeting.
	MinMessages int64
	// Dial overrides net.Dialer (for tests).
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	// Remote labels an Ingest source. Defaults to "replay".
	Remote string
	// ReadSize is the buffer size per read. Zero means DefaultReadSize.
	ReadSize int

	// SpoolDir receives binary payloads (required). Created if missing.
	SpoolDir string
	// Store is the metadata database (required).
	Store *store.Store
	// Admitter gates binary frames. Nil admits everything.
	Admitter admission.Admitter
	// MaxASCIILength bounds ASCII payloads. Zero means unbounded.
	MaxASCIILength int
	// Sidecars writes a manifest next to every committed payload.
	Sidecars bool

	// OpenArchive, when set, archives every record of the session.
	OpenArchive ArchiveOpener
	// ArchiveDataset is the Lode dataset ID. Empty means lode.DefaultDataset.
	ArchiveDataset string
	// ArchiveFlushCount is the archive batch size.
	ArchiveFlushCount int
	// ArchiveBackend labels metrics (fs, s3, memory).
	ArchiveBackend string
	// ArchivePath is reported in the completion event.
	ArchivePath string
	// MirrorPayloads copies committed payloads into the archive when the
	// archive client supports file writes.
	MirrorPayloads bool

	// Adapter, when set, is notified on completion. The caller closes it.
	Adapter adapter.Adapter

	// SessionID overrides the generated session ID.
	SessionID string
	// Logger is the base logger. Nil creates one at LogLevel on stderr.
	Logger *log.Logger
	// LogLevel is used when Logger is nil.
	LogLevel string
	// Collector overrides the per-session metrics collector.
	Collector *metrics.Collector
}

func (o *Options) validate() error {
	if o.Store == nil {
		return fmt.Errorf("%w: store is required", ErrInvalidOptions)
	}
	if o.SpoolDir == "" {
		return fmt.Errorf("%w: spool directory is required", ErrInvalidOptions)
	}
	return nil
}

// Result summarizes a finished session.
type Result struct {
	SessionID    string           `json:"session_id" yaml:"session_id"`
	Remote       string           `json:"remote" yaml:"remote"`
	Outcome      Outcome          `json:"outcome" yaml:"outcome"`
	Message      string           `json:"message,omitempty" yaml:"message,omitempty"`
	StatusSent   bool             `json:"status_sent" yaml:"status_sent"`
	ASCII        int64            `json:"ascii" yaml:"ascii"`
	Binary       int64            `json:"binary" yaml:"binary"`
	Discarded    int64            `json:"discarded" yaml:"discarded"`
	BytesSpooled int64            `json:"bytes_spooled" yaml:"bytes_spooled"`
	StartedAt    time.Time        `json:"started_at" yaml:"started_at"`
	Duration     time.Duration    `json:"duration" yaml:"duration"`
	Metrics      metrics.Snapshot `json:"metrics" yaml:"metrics"`
}

// Run dials opts.Addr and collects until the stop policy ends the session.
//
// The returned Result is non-nil whenever the session started, including
// on failure. The error is a *TransportError for socket failures and a
// *proto.ParseError for fatal parser or persistence failures.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidOptions)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	dial := opts.Dial
	if dial == nil {
		d := &net.Dialer{Timeout: orDefault(opts.DialTimeout, DefaultDialTimeout)}
		dial = d.DialContext
	}
	conn, err := dial(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	defer iox.DiscardClose(conn)

	s, err := newSession(ctx, opts, conn.RemoteAddr().String())
	if err != nil {
		return nil, err
	}
	return s.serve(ctx, conn, conn)
}

// Ingest runs the collector pipeline over r, for example a captured stream.
// No greeting or STATUS is sent and end of input completes the session.
//
// If r is an io.Closer it is closed when the session ends, so a Read blocked
// on a pipe returns after cancellation. Otherwise the reader goroutine exits
// only when its pending Read returns.
func Ingest(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	remote := opts.Remote
	if remote == "" {
		remote = "replay"
	}
	s, err := newSession(ctx, opts, remote)
	if err != nil {
		return nil, err
	}
	return s.serve(ctx, r, nil)
}

type session struct {
	opts      Options
	id        string
	remote    string
	startedAt time.Time

	logger   *log.Logger
	metrics  *metrics.Collector
	archiver *lode.Archiver
	parser   *proto.Parser

	statusSent bool
}

func newSession(ctx context.Context, opts Options, remote string) (*session, error) {
	s := &session{
		opts:      opts,
		id:        opts.SessionID,
		remote:    remote,
		startedAt: time.Now(),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}

	meta := log.SessionMeta{SessionID: s.id, Remote: remote}
	if opts.Logger != nil {
		s.logger = opts.Logger.With(map[string]any{"session_id": s.id, "remote": remote})
	} else {
		s.logger = log.NewLogger(meta, opts.LogLevel)
	}
	s.metrics = opts.Collector
	if s.metrics == nil {
		s.metrics = metrics.NewCollector(s.id, remote, opts.ArchiveBackend)
	}

	if err := os.MkdirAll(opts.SpoolDir, 0o755); err != nil {
		return nil, errkind.Wrap(err, "spool", opts.SpoolDir)
	}
	if err := opts.Store.StartSession(ctx, s.id, remote, s.startedAt); err != nil {
		return nil, err
	}

	rec := &recorder{
		sessionID: s.id,
		spoolDir:  opts.SpoolDir,
		sidecars:  opts.Sidecars,
		store:     opts.Store,
		logger:    s.logger,
		metrics:   s.metrics,
		now:       time.Now,
	}
	if opts.OpenArchive != nil {
		s.openArchive(rec)
	}

	s.parser = proto.NewParser(rec, proto.Options{
		Admitter:       opts.Admitter,
		Logger:         s.logger,
		Collector:      s.metrics,
		MaxASCIILength: opts.MaxASCIILength,
	})
	return s, nil
}

// openArchive is best effort: a session without an archive still collects.
func (s *session) openArchive(rec *recorder) {
	cfg := lode.Config{
		Dataset:   s.opts.ArchiveDataset,
		Day:       lode.DeriveDay(s.startedAt),
		SessionID: s.id,
	}
	if cfg.Dataset == "" {
		cfg.Dataset = lode.DefaultDataset
	}
	client, err := s.opts.OpenArchive(cfg)
	if err != nil {
		s.metrics.IncArchiveWriteFailure()
		s.logger.Warn("archive unavailable, continuing without it", map[string]any{
			"error":      err.Error(),
			"error_kind": errkind.Name(err),
		})
		return
	}
	s.archiver = lode.NewArchiver(client, cfg, s.opts.ArchiveFlushCount, s.metrics)
	rec.archiver = s.archiver
	if s.opts.MirrorPayloads {
		if fw, ok := client.(lode.FileWriter); ok {
			rec.mirror = fw
		}
	}
}

func (s *session) serve(ctx context.Context, src io.Reader, conn net.Conn) (*Result, error) {
	s.metrics.IncSessionStarted()
	s.logger.Info("session started", map[string]any{
		"spool_dir":    s.opts.SpoolDir,
		"min_messages": s.opts.MinMessages,
	})
	outcome, err := s.loop(ctx, src, conn)
	return s.finish(ctx, outcome, err), err
}

func (s *session) loop(ctx context.Context, src io.Reader, conn net.Conn) (Outcome, error) {
	if conn != nil {
		if _, err := io.WriteString(conn, proto.Greeting(s.opts.Token)); err != nil {
			return OutcomeTransportError, &TransportError{Op: "greet", Err: err}
		}
		if err := s.maybeRequestStatus(conn); err != nil {
			return OutcomeTransportError, err
		}
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Closing the source is what unblocks a pending Read.
	if c, ok := src.(io.Closer); ok {
		defer iox.DiscardClose(c)
	}
	chunks := make(chan chunk, chunkQueueDepth)
	timeout := time.Duration(0)
	if conn != nil {
		timeout = orDefault(s.opts.ReadTimeout, DefaultReadTimeout)
	}
	go readChunks(readCtx, src, s.opts.ReadSize, timeout, chunks)

	for {
		select {
		case <-ctx.Done():
			return OutcomeCanceled, ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				return s.endOfStream(io.EOF, conn)
			}
			if len(c.data) > 0 {
				if err := s.parser.Feed(ctx, c.data); err != nil {
					return s.parseOutcome(ctx, err), err
				}
				if conn != nil {
					if err := s.maybeRequestStatus(conn); err != nil {
						return OutcomeTransportError, err
					}
				}
			}
			if c.err != nil {
				return s.endOfStream(c.err, conn)
			}
		}
	}
}

func (s *session) maybeRequestStatus(conn net.Conn) error {
	if s.statusSent || s.metrics.Messages() < s.opts.MinMessages {
		return nil
	}
	if _, err := io.WriteString(conn, proto.StatusRequest); err != nil {
		return &TransportError{Op: "status", Err: err}
	}
	s.statusSent = true
	s.logger.Info("status requested", map[string]any{"messages": s.metrics.Messages()})
	return nil
}

func (s *session) endOfStream(err error, conn net.Conn) (Outcome, error) {
	switch {
	case errors.Is(err, io.EOF) && conn == nil:
		return OutcomeCompleted, nil
	case errors.Is(err, io.EOF):
		return OutcomeRemoteClosed, nil
	case isTimeout(err) && s.statusSent:
		return OutcomeCompleted, nil
	default:
		return OutcomeTransportError, &TransportError{Op: "read", Err: err}
	}
}

func (s *session) parseOutcome(ctx context.Context, err error) Outcome {
	switch {
	case ctx.Err() != nil:
		return OutcomeCanceled
	case proto.IsHandlerError(err):
		return OutcomeStorageError
	default:
		return OutcomeParseError
	}
}

func (s *session) finish(ctx context.Context, outcome Outcome, runErr error) *Result {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	if err := s.parser.Close(); err != nil {
		s.logger.Warn("spool release failed", map[string]any{"error": err.Error()})
	}
	if outcome.IsSuccess() {
		s.metrics.IncSessionCompleted()
	} else {
		s.metrics.IncSessionFailed()
	}
	snap := s.metrics.Snapshot()

	if err := s.opts.Store.EndSession(tctx, s.id, store.SessionEnd{
		EndedAt:      time.Now(),
		Outcome:      string(outcome),
		ASCII:        snap.ASCIIFrames,
		Binary:       snap.BinaryFrames,
		Discarded:    snap.Discards,
		BytesSpooled: snap.BytesSpooled,
	}); err != nil {
		s.logger.Error("session row finalize failed", map[string]any{"error": err.Error()})
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveSummary(tctx, string(outcome), snap); err != nil {
			s.logger.Warn("archive summary failed", map[string]any{
				"error":      err.Error(),
				"error_kind": errkind.Name(err),
			})
		}
		if err := s.archiver.Close(tctx); err != nil {
			s.logger.Warn("archive close failed", map[string]any{"error": err.Error()})
		}
	}

	res := &Result{
		SessionID:    s.id,
		Remote:       s.remote,
		Outcome:      outcome,
		StatusSent:   s.statusSent,
		ASCII:        snap.ASCIIFrames,
		Binary:       snap.BinaryFrames,
		Discarded:    snap.Discards,
		BytesSpooled: snap.BytesSpooled,
		StartedAt:    s.startedAt,
		Duration:     time.Since(s.startedAt),
		Metrics:      snap,
	}
	if runErr != nil {
		res.Message = runErr.Error()
	}

	s.notify(tctx, res)

	fields := map[string]any{
		"outcome":       string(outcome),
		"ascii":         res.ASCII,
		"binary":        res.Binary,
		"discarded":     res.Discarded,
		"bytes_spooled": res.BytesSpooled,
		"duration":      res.Duration.String(),
	}
	if outcome.IsSuccess() {
		s.logger.Info("session finished", fields)
	} else {
		fields["error"] = res.Message
		s.logger.Error("session failed", fields)
	}
	return res
}

func (s *session) notify(ctx context.Context, res *Result) {
	if s.opts.Adapter == nil {
		return
	}
	event := &adapter.SessionCompletedEvent{
		EventType:    adapter.EventTypeSessionCompleted,
		SessionID:    res.SessionID,
		Remote:       res.Remote,
		Day:          lode.DeriveDay(res.StartedAt),
		Outcome:      string(res.Outcome),
		Message:      res.Message,
		DBPath:       s.opts.Store.Path(),
		SpoolDir:     s.opts.SpoolDir,
		ArchivePath:  s.opts.ArchivePath,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ASCIICount:   res.ASCII,
		BinaryCount:  res.Binary,
		DiscardCount: res.Discarded,
		BytesSpooled: res.BytesSpooled,
		DurationMs:   res.Duration.Milliseconds(),
	}
	if err := s.opts.Adapter.Publish(ctx, event); err != nil {
		s.logger.Warn("adapter publish failed", map[string]any{"error": err.Error()})
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
