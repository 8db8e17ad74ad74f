package proto

import (
	"context"
	"errors"

	"github.com/justapithecus/aetheric/admission"
	"github.com/justapithecus/aetheric/errkind"
	"github.com/justapithecus/aetheric/framebuf"
	"github.com/justapithecus/aetheric/log"
	"github.com/justapithecus/aetheric/metrics"
	"github.com/justapithecus/aetheric/spool"
	"github.com/justapithecus/aetheric/types"
)

var errNoSpoolTarget = errors.New("proto: no spool target configured")

// StateKind enumerates parser states. Exactly one is active at a time.
type StateKind int

const (
	// StateIdle waits for a frame marker.
	StateIdle StateKind = iota
	// StateASCII has consumed '$' and is looking for ';'.
	StateASCII
	// StateBinary is streaming payload bytes into an open spool.
	StateBinary
	// StateDiscarding drops payload bytes of a rejected binary frame.
	StateDiscarding
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateASCII:
		return "ascii_accumulating"
	case StateBinary:
		return "binary_streaming"
	case StateDiscarding:
		return "discarding"
	default:
		return "unknown"
	}
}

// State is the parser's current state. Remaining is meaningful only for
// StateBinary and StateDiscarding.
type State struct {
	Kind      StateKind
	Remaining uint64
}

// Options configures a Parser.
type Options struct {
	// Admitter gates binary frames. Nil admits every frame.
	Admitter admission.Admitter
	// Logger receives diagnostics. Nil disables logging.
	Logger *log.Logger
	// Collector receives counters. Nil disables metrics.
	Collector *metrics.Collector
	// MaxASCIILength bounds an ASCII payload. Zero means unbounded.
	MaxASCIILength int
}

// Parser reconstructs frames from an arbitrarily chunked byte stream.
//
// A Parser serves exactly one connection and is not safe for concurrent use.
// Chunks must be fed in arrival order.
type Parser struct {
	handler  Handler
	discards DiscardHandler
	admitter admission.Admitter
	logger   *log.Logger
	metrics  *metrics.Collector
	maxASCII int

	buf   framebuf.Buffer
	state State

	// scanned is how much of the buffered ASCII payload is known to hold
	// no end marker.
	scanned int
	// resync counts bytes skipped since the last recognized marker.
	resync int

	spool    *spool.Writer
	declared uint64
	closed   bool
}

// NewParser creates a Parser delivering frames to h. If h also implements
// DiscardHandler it receives discard events.
func NewParser(h Handler, opts Options) *Parser {
	p := &Parser{
		handler:  h,
		admitter: opts.Admitter,
		logger:   opts.Logger,
		metrics:  opts.Collector,
		maxASCII: opts.MaxASCIILength,
	}
	if dh, ok := h.(DiscardHandler); ok {
		p.discards = dh
	}
	if p.admitter == nil {
		p.admitter = admission.Always(true)
	}
	return p
}

// State returns the current parser state.
func (p *Parser) State() State {
	return p.state
}

// Buffered returns the number of bytes held in the frame buffer.
func (p *Parser) Buffered() int {
	return p.buf.Len()
}

// Feed processes one chunk. The parser takes ownership of chunk; the caller
// must not modify it afterwards.
//
// Malformed input never returns an error. A non-nil error is a *ParseError
// and the connection must be abandoned.
func (p *Parser) Feed(ctx context.Context, chunk []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ParseError)
			if !ok {
				panic(r)
			}
			err = pe
		}
	}()
	if p.closed {
		return &ParseError{Kind: ParseErrorClosed, Msg: "feed after close"}
	}
	p.metrics.AddBytesReceived(len(chunk))

	if p.state.Kind == StateDiscarding {
		chunk = p.discardRaw(chunk)
	}
	p.buf.Append(chunk)
	return p.drain(ctx)
}

// Close tears the parser down. An open spool is released but its temp file
// is left on disk for out-of-band cleanup.
func (p *Parser) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.spool.IsOpen() {
		p.logger.Warn("releasing partial binary frame on teardown", map[string]any{
			"tmp_path":        p.spool.TempPath(),
			"written":         p.spool.Written(),
			"declared_length": p.declared,
		})
		err = p.spool.Release()
	}
	p.spool = nil
	p.buf.Reset()
	p.state = State{Kind: StateIdle}
	return err
}

// discardRaw drops the leading bytes of chunk still owed to the current
// discard and returns the rest. The frame buffer is bypassed entirely.
func (p *Parser) discardRaw(chunk []byte) []byte {
	n := uint64(len(chunk))
	if n > p.state.Remaining {
		n = p.state.Remaining
	}
	p.state.Remaining -= n
	p.metrics.AddBytesDiscarded(int(n))
	if p.state.Remaining == 0 {
		p.toIdle()
	}
	return chunk[n:]
}

// drain runs the state machine until it needs more data.
func (p *Parser) drain(ctx context.Context) error {
	for {
		var (
			progressed bool
			err        error
		)
		switch p.state.Kind {
		case StateIdle:
			progressed, err = p.stepIdle(ctx)
		case StateASCII:
			progressed, err = p.stepASCII(ctx)
		case StateBinary:
			progressed, err = p.stepBinary(ctx)
		case StateDiscarding:
			progressed = p.stepDiscard()
		}
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
}

func (p *Parser) stepIdle(ctx context.Context) (bool, error) {
	first, ok := p.buf.PeekFirstByte()
	if !ok {
		return false, nil
	}

	switch first {
	case ASCIIStart:
		p.endResync()
		p.mustConsume(1)
		p.scanned = 0
		p.state = State{Kind: StateASCII}
		return true, nil

	case BinaryHeader:
		if !p.buf.HasAtLeast(HeaderSize) {
			return false, nil
		}
		p.endResync()
		hdr, err := p.buf.Peek(HeaderSize)
		if err != nil {
			return false, invariantError("peek binary header", err)
		}
		declared := DecodeLength(hdr[1:])
		p.mustConsume(HeaderSize)
		return true, p.beginBinary(ctx, declared)

	default:
		p.mustConsume(1)
		p.resync++
		p.metrics.AddResyncBytes(1)
		return true, nil
	}
}

func (p *Parser) endResync() {
	if p.resync == 0 {
		return
	}
	p.logger.Debug("resynchronized", map[string]any{"skipped_bytes": p.resync})
	p.resync = 0
}

func (p *Parser) stepASCII(ctx context.Context) (bool, error) {
	k := p.buf.FindByteFrom(ASCIIEnd, p.scanned)

	if p.maxASCII > 0 && (k > p.maxASCII || (k < 0 && p.buf.Len() > p.maxASCII)) {
		p.rejectASCII(ctx, p.maxASCII, types.ReasonTooLong)
		p.mustConsume(p.maxASCII)
		p.toIdle()
		return true, nil
	}
	if k < 0 {
		p.scanned = p.buf.Len()
		return false, nil
	}

	payload, err := p.buf.Peek(k)
	if err != nil {
		return false, invariantError("peek ascii payload", err)
	}
	p.mustConsume(k + 1)
	p.toIdle()

	if reason := validateASCII(payload); reason != "" {
		p.emitDiscard(ctx, types.DiscardEvent{
			Preview:        preview(payload),
			Kind:           types.PayloadASCII,
			DeclaredLength: uint64(k),
			Reason:         reason,
		})
		return true, nil
	}

	p.metrics.IncASCIIFrame()
	if err := p.handler.OnASCII(ctx, types.ASCIIFrame{Text: string(payload)}); err != nil {
		return false, handlerError("ascii frame handler", err)
	}
	return true, nil
}

func (p *Parser) rejectASCII(ctx context.Context, n int, reason string) {
	head, _ := p.buf.Peek(min(n, PreviewSize))
	p.emitDiscard(ctx, types.DiscardEvent{
		Preview:        head,
		Kind:           types.PayloadASCII,
		DeclaredLength: uint64(n),
		Reason:         reason,
	})
}

// validateASCII returns the discard reason for payload, or "" if valid.
func validateASCII(payload []byte) string {
	if len(payload) < MinASCIILength {
		return types.ReasonTooShort
	}
	for _, b := range payload {
		if !IsPrintable(b) {
			return types.ReasonNonPrintable
		}
	}
	return ""
}

func (p *Parser) beginBinary(ctx context.Context, declared uint64) error {
	p.declared = declared

	if !p.admitter.Admit(ctx, declared) {
		p.metrics.IncAdmissionDenied()
		p.logger.Warn("binary frame not admitted", map[string]any{
			"declared_length": declared,
		})
		p.enterDiscard(ctx, declared, types.ReasonInsufficientDisk)
		return nil
	}

	tmpPath, err := p.handler.OnBinaryStart(ctx, declared)
	if err == nil {
		p.spool, err = spool.Open(tmpPath)
	}
	if err != nil {
		p.metrics.IncSpoolOpenFailure()
		p.logger.Warn("spool open failed", map[string]any{
			"declared_length": declared,
			"tmp_path":        tmpPath,
			"error":           err.Error(),
			"error_kind":      errkind.Name(err),
		})
		p.spool = nil
		p.enterDiscard(ctx, declared, types.ReasonSpoolOpenFailed)
		return nil
	}

	p.state = State{Kind: StateBinary, Remaining: declared}
	return nil
}

func (p *Parser) stepBinary(ctx context.Context) (bool, error) {
	if p.state.Remaining > 0 {
		if p.buf.Len() == 0 {
			return false, nil
		}
		toWrite := min(uint64(p.buf.Len()), p.state.Remaining)
		n := int(toWrite)

		err := p.buf.ForEachSlice(n, func(s []byte) error {
			_, werr := p.spool.Write(s)
			return werr
		})
		if errors.Is(err, spool.ErrNotOpen) {
			return false, invariantError("write binary payload", err)
		}
		p.mustConsume(n)
		p.state.Remaining -= toWrite

		if err != nil {
			p.metrics.IncSpoolWriteFailure()
			p.abandonSpool(err)
			p.enterDiscard(ctx, p.state.Remaining, types.ReasonSpoolWriteFailed)
			return true, nil
		}
		p.metrics.AddBytesSpooled(n)
		if p.state.Remaining > 0 {
			return true, nil
		}
	}

	res, err := p.spool.Finalize()
	p.spool = nil
	p.toIdle()
	if errors.Is(err, spool.ErrNotOpen) {
		return false, invariantError("finalize binary payload", err)
	}
	if err != nil {
		p.metrics.IncSpoolWriteFailure()
		p.logger.Warn("spool commit failed", map[string]any{
			"declared_length": p.declared,
			"error":           err.Error(),
			"error_kind":      errkind.Name(err),
		})
		p.emitDiscard(ctx, types.DiscardEvent{
			Kind:           types.PayloadBinary,
			DeclaredLength: p.declared,
			Reason:         types.ReasonSpoolCommitFailed,
		})
		return true, nil
	}

	p.metrics.IncBinaryFrame()
	frame := types.BinaryFrame{
		FinalPath:   res.FinalPath,
		ChecksumHex: res.ChecksumHex,
		Size:        res.Size,
	}
	if err := p.handler.OnBinaryComplete(ctx, frame); err != nil {
		return false, handlerError("binary frame handler", err)
	}
	return true, nil
}

func (p *Parser) abandonSpool(cause error) {
	fields := map[string]any{
		"declared_length": p.declared,
		"tmp_path":        p.spool.TempPath(),
		"written":         p.spool.Written(),
		"error":           cause.Error(),
		"error_kind":      errkind.Name(cause),
	}
	if err := p.spool.Abandon(); err != nil {
		fields["abandon_error"] = err.Error()
	}
	p.logger.Warn("spool write failed, abandoning frame", fields)
	p.spool = nil
}

// enterDiscard drains up to remaining payload bytes already buffered,
// reports one discard event and leaves the rest to Discarding.
func (p *Parser) enterDiscard(ctx context.Context, remaining uint64, reason string) {
	drained := min(uint64(p.buf.Len()), remaining)
	n := int(drained)
	head, _ := p.buf.Peek(min(n, PreviewSize))
	p.mustConsume(n)
	p.metrics.AddBytesDiscarded(n)

	p.emitDiscard(ctx, types.DiscardEvent{
		Preview:        head,
		Kind:           types.PayloadBinary,
		DeclaredLength: p.declared,
		Reason:         reason,
	})

	if remaining -= drained; remaining > 0 {
		p.state = State{Kind: StateDiscarding, Remaining: remaining}
		return
	}
	p.toIdle()
}

// stepDiscard handles bytes buffered while a discard is owed. Feed normally
// intercepts them first; this covers a discard entered mid-drain.
func (p *Parser) stepDiscard() bool {
	if p.buf.Len() == 0 {
		return false
	}
	n := min(uint64(p.buf.Len()), p.state.Remaining)
	p.mustConsume(int(n))
	p.metrics.AddBytesDiscarded(int(n))
	p.state.Remaining -= n
	if p.state.Remaining == 0 {
		p.toIdle()
	}
	return true
}

func (p *Parser) emitDiscard(ctx context.Context, ev types.DiscardEvent) {
	p.metrics.IncDiscard(string(ev.Kind), ev.Reason)
	p.logger.Debug("frame discarded", map[string]any{
		"kind":            ev.Kind,
		"reason":          ev.Reason,
		"declared_length": ev.DeclaredLength,
		"preview":         string(ev.Preview),
	})
	if p.discards != nil {
		p.discards.OnDiscard(ctx, ev)
	}
}

func (p *Parser) toIdle() {
	p.state = State{Kind: StateIdle}
	p.scanned = 0
}

// mustConsume consumes bytes the caller has already checked are buffered.
// A failure is an invariant violation and is recovered by Feed.
func (p *Parser) mustConsume(n int) {
	if err := p.buf.Consume(n); err != nil {
		panic(invariantError("consume", err))
	}
}

func preview(payload []byte) []byte {
	n := min(len(payload), PreviewSize)
	out := make([]byte, n)
	copy(out, payload[:n])
	return out
}
