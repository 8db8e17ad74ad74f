package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/justapithecus/aetheric/errkind"
	"github.com/justapithecus/aetheric/iox"
	"github.com/justapithecus/aetheric/lode"
	"github.com/justapithecus/aetheric/log"
	"github.com/justapithecus/aetheric/metrics"
	"github.com/justapithecus/aetheric/proto"
	"github.com/justapithecus/aetheric/spool"
	"github.com/justapithecus/aetheric/store"
	"github.com/justapithecus/aetheric/types"
)

// recorder receives parser callbacks for one session.
//
// The metadata store is authoritative: an insert failure for a completed
// frame is returned to the parser and ends the session. Archive, sidecar and
// mirror failures are logged and counted only.
type recorder struct {
	sessionID string
	spoolDir  string
	sidecars  bool

	store    *store.Store
	archiver *lode.Archiver
	mirror   lode.FileWriter
	logger   *log.Logger
	metrics  *metrics.Collector

	now func() time.Time
}

// OnASCII persists a delivered ASCII frame.
func (r *recorder) OnASCII(ctx context.Context, f types.ASCIIFrame) error {
	if _, err := r.store.InsertASCII(ctx, r.sessionID, f); err != nil {
		r.metrics.IncStoreWriteFailure()
		return fmt.Errorf("persist ascii frame: %w", err)
	}
	r.metrics.IncStoreWriteSuccess()
	if r.archiver != nil {
		r.warnArchive("ascii", r.archiver.ArchiveASCII(ctx, f))
	}
	return nil
}

// OnBinaryStart allocates a fresh temp path in the spool directory.
func (r *recorder) OnBinaryStart(_ context.Context, declaredLength uint64) (string, error) {
	return spool.TempPath(r.spoolDir, declaredLength), nil
}

// OnBinaryComplete persists a committed binary frame.
func (r *recorder) OnBinaryComplete(ctx context.Context, f types.BinaryFrame) error {
	if _, err := r.store.InsertBinary(ctx, r.sessionID, f); err != nil {
		r.metrics.IncStoreWriteFailure()
		return fmt.Errorf("persist binary frame: %w", err)
	}
	r.metrics.IncStoreWriteSuccess()

	if r.sidecars {
		m := spool.Manifest{
			SessionID:   r.sessionID,
			DeclaredLen: f.Size,
			Size:        f.Size,
			Checksum:    f.ChecksumHex,
			CommittedAt: r.now().UTC(),
		}
		if err := spool.WriteManifest(f.FinalPath, m); err != nil {
			r.logger.Warn("manifest sidecar write failed", map[string]any{
				"path":       f.FinalPath,
				"error":      err.Error(),
				"error_kind": errkind.Name(err),
			})
		}
	}

	if r.archiver != nil {
		r.warnArchive("binary", r.archiver.ArchiveBinary(ctx, f))
	}
	if r.mirror != nil {
		r.warnArchive("payload", r.mirrorPayload(ctx, f.FinalPath))
	}
	return nil
}

// OnDiscard records a discard event. Failures cannot reach the parser, so
// they are logged and counted.
func (r *recorder) OnDiscard(ctx context.Context, ev types.DiscardEvent) {
	if err := r.store.InsertDiscard(ctx, r.sessionID, ev); err != nil {
		r.metrics.IncStoreWriteFailure()
		r.logger.Error("discard insert failed", map[string]any{
			"reason": ev.Reason,
			"error":  err.Error(),
		})
	} else {
		r.metrics.IncStoreWriteSuccess()
	}
	if r.archiver != nil {
		r.warnArchive("discard", r.archiver.ArchiveDiscard(ctx, ev))
	}
}

func (r *recorder) mirrorPayload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)
	return r.mirror.PutFile(ctx, filepath.Base(path), f)
}

func (r *recorder) warnArchive(what string, err error) {
	if err != nil {
		r.logger.Warn("archive write failed", map[string]any{
			"record":     what,
			"error":      err.Error(),
			"error_kind": errkind.Name(err),
		})
	}
}

var (
	_ proto.Handler        = (*recorder)(nil)
	_ proto.DiscardHandler = (*recorder)(nil)
)
