// Package admission gates binary frames on available disk space.
//
// The parser asks exactly once per binary header, before any spool file is
// opened. Any failure to determine free space denies the frame.
package admission

import (
	"context"
	"errors"

	"github.com/justapithecus/aetheric/log"
)

// DefaultSafetyMargin is the free space kept in reserve on the spool volume (100 MiB).
const DefaultSafetyMargin uint64 = 100 * 1024 * 1024

// ErrUnsupported is returned by FreeBytes on platforms without a free-space query.
var ErrUnsupported = errors.New("admission: free space query unsupported on this platform")

// Admitter decides whether a binary payload of the declared size may be spooled.
// Implementations may block; ctx bounds the wait.
type Admitter interface {
	Admit(ctx context.Context, declaredSize uint64) bool
}

// Func adapts a function to the Admitter interface.
type Func func(ctx context.Context, declaredSize uint64) bool

// Admit implements Admitter.
func (f Func) Admit(ctx context.Context, declaredSize uint64) bool {
	return f(ctx, declaredSize)
}

// Always returns an Admitter with a fixed answer. Intended for tests and replay.
func Always(admit bool) Admitter {
	return Func(func(context.Context, uint64) bool { return admit })
}

// DiskChecker admits payloads that fit on the volume hosting Dir while
// leaving Margin bytes free.
type DiskChecker struct {
	// Dir is a path on the spool volume.
	Dir string
	// Margin is the reserve subtracted from free space.
	Margin uint64
	// Logger receives query failures. Optional.
	Logger *log.Logger

	// freeBytes is swapped in tests.
	freeBytes func(path string) (uint64, error)
}

// NewDiskChecker creates a checker for dir with the default safety margin.
func NewDiskChecker(dir string, logger *log.Logger) *DiskChecker {
	return &DiskChecker{Dir: dir, Margin: DefaultSafetyMargin, Logger: logger}
}

// Admit implements Admitter. It returns false on any query failure.
func (d *DiskChecker) Admit(ctx context.Context, declaredSize uint64) bool {
	if ctx.Err() != nil {
		return false
	}
	query := d.freeBytes
	if query == nil {
		query = FreeBytes
	}
	free, err := query(d.Dir)
	if err != nil {
		d.Logger.Warn("disk space query failed; denying payload", map[string]any{
			"dir":   d.Dir,
			"error": err.Error(),
		})
		return false
	}
	return CanFit(declaredSize, free, d.Margin)
}

// CanFit reports whether size bytes fit in free bytes while keeping margin
// in reserve. Free space below the margin admits nothing, not even an empty
// payload.
func CanFit(size, free, margin uint64) bool {
	if free < margin {
		return false
	}
	return size <= free-margin
}

var _ Admitter = (*DiskChecker)(nil)
