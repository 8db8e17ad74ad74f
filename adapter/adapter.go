// Package adapter defines the notification boundary for finished sessions.
//
// Adapters publish session completion notifications to downstream systems.
// The session driver owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"time"
)

// EventTypeSessionCompleted is the event_type of every published event.
const EventTypeSessionCompleted = "session_completed"

// SessionCompletedEvent is the payload published when a session ends.
type SessionCompletedEvent struct {
	EventType    string `json:"event_type"` // always "session_completed"
	SessionID    string `json:"session_id"`
	Remote       string `json:"remote"`
	Day          string `json:"day"`
	Outcome      string `json:"outcome"` // completed, remote_closed, transport_error, ...
	Message      string `json:"message,omitempty"`
	DBPath       string `json:"db_path"`
	SpoolDir     string `json:"spool_dir"`
	ArchivePath  string `json:"archive_path,omitempty"`
	Timestamp    string `json:"timestamp"` // RFC 3339
	ASCIICount   int64  `json:"ascii_count"`
	BinaryCount  int64  `json:"binary_count"`
	DiscardCount int64  `json:"discard_count"`
	BytesSpooled int64  `json:"bytes_spooled"`
	DurationMs   int64  `json:"duration_ms"`
}

// Adapter publishes session completion events to a downstream system.
type Adapter interface {
	// Publish sends a session completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the delay before retry attempt n (n >= 1):
// 500ms, 1s, 2s, ...
func Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return time.Duration(1<<uint(n-1)) * 500 * time.Millisecond
}

// Wait sleeps for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
