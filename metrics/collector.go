// Package metrics provides per-session counters for the collector.
//
// The Collector accumulates counters during a single connection. It is a leaf
// package with no internal dependencies. All increment methods are
// nil-receiver safe so components can be wired without a collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Sessions
	SessionsStarted   int64
	SessionsCompleted int64
	SessionsFailed    int64

	// Frames
	ASCIIFrames      int64
	BinaryFrames     int64
	BytesSpooled     int64
	BytesReceived    int64
	ResyncBytes      int64
	Discards         int64
	DiscardsByKind   map[string]int64
	DiscardsByReason map[string]int64
	BytesDiscarded   int64

	// Binary pipeline
	AdmissionDenied    int64
	SpoolOpenFailures  int64
	SpoolWriteFailures int64

	// Persistence
	StoreWriteSuccess   int64
	StoreWriteFailure   int64
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64

	// Dimensions (informational, set at construction)
	SessionID      string
	Remote         string
	ArchiveBackend string
}

// Collector accumulates counters during a single session.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsCompleted int64
	sessionsFailed    int64

	asciiFrames      int64
	binaryFrames     int64
	bytesSpooled     int64
	bytesReceived    int64
	resyncBytes      int64
	discards         int64
	discardsByKind   map[string]int64
	discardsByReason map[string]int64
	bytesDiscarded   int64

	admissionDenied    int64
	spoolOpenFailures  int64
	spoolWriteFailures int64

	storeWriteSuccess   int64
	storeWriteFailure   int64
	archiveWriteSuccess int64
	archiveWriteFailure int64

	sessionID      string
	remote         string
	archiveBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, remote, archiveBackend string) *Collector {
	return &Collector{
		discardsByKind:   make(map[string]int64),
		discardsByReason: make(map[string]int64),
		sessionID:        sessionID,
		remote:           remote,
		archiveBackend:   archiveBackend,
	}
}

// add must only be called on a non-nil receiver.
func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Sessions ---

// IncSessionStarted records a connection start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStarted, 1)
}

// IncSessionCompleted records a clean session end.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsCompleted, 1)
}

// IncSessionFailed records a session ended by a transport or internal error.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.add(&c.sessionsFailed, 1)
}

// --- Frames ---

// IncASCIIFrame records a delivered ASCII frame.
func (c *Collector) IncASCIIFrame() {
	if c == nil {
		return
	}
	c.add(&c.asciiFrames, 1)
}

// IncBinaryFrame records a committed binary frame.
func (c *Collector) IncBinaryFrame() {
	if c == nil {
		return
	}
	c.add(&c.binaryFrames, 1)
}

// AddBytesSpooled records payload bytes written to spool files.
func (c *Collector) AddBytesSpooled(n int) {
	if c == nil {
		return
	}
	c.add(&c.bytesSpooled, int64(n))
}

// AddBytesReceived records raw bytes read from the transport.
func (c *Collector) AddBytesReceived(n int) {
	if c == nil {
		return
	}
	c.add(&c.bytesReceived, int64(n))
}

// AddResyncBytes records bytes skipped while searching for a frame marker.
func (c *Collector) AddResyncBytes(n int) {
	if c == nil {
		return
	}
	c.add(&c.resyncBytes, int64(n))
}

// AddBytesDiscarded records payload bytes dropped while discarding.
func (c *Collector) AddBytesDiscarded(n int) {
	if c == nil {
		return
	}
	c.add(&c.bytesDiscarded, int64(n))
}

// IncDiscard records one discard event.
func (c *Collector) IncDiscard(kind, reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.discards++
	c.discardsByKind[kind]++
	c.discardsByReason[reason]++
	c.mu.Unlock()
}

// --- Binary pipeline ---

// IncAdmissionDenied records a binary frame rejected by admission control.
func (c *Collector) IncAdmissionDenied() {
	if c == nil {
		return
	}
	c.add(&c.admissionDenied, 1)
}

// IncSpoolOpenFailure records a failure to open a spool file.
func (c *Collector) IncSpoolOpenFailure() {
	if c == nil {
		return
	}
	c.add(&c.spoolOpenFailures, 1)
}

// IncSpoolWriteFailure records a write or commit failure on an open spool.
func (c *Collector) IncSpoolWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.spoolWriteFailures, 1)
}

// --- Persistence ---
// Store counters are per row; archive counters are per flush.

// IncStoreWriteSuccess records a successful metadata insert.
func (c *Collector) IncStoreWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.storeWriteSuccess, 1)
}

// IncStoreWriteFailure records a failed metadata insert.
func (c *Collector) IncStoreWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.storeWriteFailure, 1)
}

// IncArchiveWriteSuccess records a successful archive flush.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteSuccess, 1)
}

// IncArchiveWriteFailure records a failed archive flush.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.discardsByKind))
	for k, v := range c.discardsByKind {
		byKind[k] = v
	}
	byReason := make(map[string]int64, len(c.discardsByReason))
	for k, v := range c.discardsByReason {
		byReason[k] = v
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsCompleted: c.sessionsCompleted,
		SessionsFailed:    c.sessionsFailed,

		ASCIIFrames:      c.asciiFrames,
		BinaryFrames:     c.binaryFrames,
		BytesSpooled:     c.bytesSpooled,
		BytesReceived:    c.bytesReceived,
		ResyncBytes:      c.resyncBytes,
		Discards:         c.discards,
		DiscardsByKind:   byKind,
		DiscardsByReason: byReason,
		BytesDiscarded:   c.bytesDiscarded,

		AdmissionDenied:    c.admissionDenied,
		SpoolOpenFailures:  c.spoolOpenFailures,
		SpoolWriteFailures: c.spoolWriteFailures,

		StoreWriteSuccess:   c.storeWriteSuccess,
		StoreWriteFailure:   c.storeWriteFailure,
		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,

		SessionID:      c.sessionID,
		Remote:         c.remote,
		ArchiveBackend: c.archiveBackend,
	}
}

// Messages returns the number of frames delivered so far (ASCII + binary).
func (c *Collector) Messages() int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asciiFrames + c.binaryFrames
}
