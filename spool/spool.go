// Package spool streams binary payloads to temporary files and commits
// them by atomic rename.
//
// A Writer owns an open temp file whose name ends in TempSuffix together
// with a running SHA-256. Each Write appends to the file and feeds the hash
// in the same pass. Finalize closes the file, renames it to the path without
// the suffix and returns the digest. Abandon closes and deletes the temp file.
// Release only closes it, leaving the partial file for out-of-band cleanup.
package spool

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/aetheric/iox"
)

// TempSuffix marks a spool file that has not been committed.
const TempSuffix = ".part"

// ErrNotOpen is returned when a Writer is used after Finalize, Abandon or
// Release. Reaching it means the caller's state tracking is wrong.
var ErrNotOpen = errors.New("spool: writer is not open")

// OpenError reports a failure to create the temp file.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("spool: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// IsOpenError reports whether err is an *OpenError.
func IsOpenError(err error) bool {
	var openErr *OpenError
	return errors.As(err, &openErr)
}

// Result describes a committed payload.
type Result struct {
	FinalPath   string
	ChecksumHex string
	Size        uint64
}

// Writer is an open spool session.
type Writer struct {
	tmpPath string
	file    *os.File
	hash    hash.Hash
	written uint64
}

// TempPath returns a fresh temp path in dir for a payload of declaredLen bytes:
// <unix-ms>-<uuid>-<len>.bin.part
func TempPath(dir string, declaredLen uint64) string {
	name := fmt.Sprintf("%d-%s-%d.bin", time.Now().UnixMilli(), uuid.NewString(), declaredLen)
	return filepath.Join(dir, name+TempSuffix)
}

// FinalPath strips TempSuffix from tmpPath. ok is false if the suffix is absent.
func FinalPath(tmpPath string) (final string, ok bool) {
	final, ok = strings.CutSuffix(tmpPath, TempSuffix)
	if !ok || final == "" || strings.HasSuffix(final, string(filepath.Separator)) {
		return "", false
	}
	return final, true
}

// Open creates (or truncates) tmpPath for writing. tmpPath must end in TempSuffix.
func Open(tmpPath string) (*Writer, error) {
	if _, ok := FinalPath(tmpPath); !ok {
		return nil, &OpenError{Path: tmpPath, Err: fmt.Errorf("path must end in %q", TempSuffix)}
	}
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &OpenError{Path: tmpPath, Err: err}
	}
	return &Writer{
		tmpPath: tmpPath,
		file:    f,
		hash:    sha256.New(),
	}, nil
}

// TempPath returns the path of the file being written.
func (w *Writer) TempPath() string {
	return w.tmpPath
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() uint64 {
	return w.written
}

// Write appends p to the file and the running hash.
func (w *Writer) Write(p []byte) (int, error) {
	if w == nil || w.file == nil {
		return 0, ErrNotOpen
	}
	n, err := w.file.Write(p)
	w.hash.Write(p[:n])
	w.written += uint64(n)
	if err != nil {
		return n, fmt.Errorf("spool: write %s: %w", w.tmpPath, err)
	}
	return n, nil
}

// Finalize closes the file, computes the digest and renames temp to final.
// On any failure the temp file is removed and the writer is closed.
func (w *Writer) Finalize() (Result, error) {
	if w == nil || w.file == nil {
		return Result{}, ErrNotOpen
	}
	f := w.file
	w.file = nil

	if err := f.Close(); err != nil {
		_ = iox.RemoveIfExists(w.tmpPath)
		return Result{}, fmt.Errorf("spool: close %s: %w", w.tmpPath, err)
	}

	final, _ := FinalPath(w.tmpPath)
	if err := os.Rename(w.tmpPath, final); err != nil {
		_ = iox.RemoveIfExists(w.tmpPath)
		return Result{}, fmt.Errorf("spool: commit %s: %w", final, err)
	}

	return Result{
		FinalPath:   final,
		ChecksumHex: hex.EncodeToString(w.hash.Sum(nil)),
		Size:        w.written,
	}, nil
}

// Abandon closes the writer and deletes the temp file.
func (w *Writer) Abandon() error {
	if w == nil || w.file == nil {
		return ErrNotOpen
	}
	f := w.file
	w.file = nil
	closeErr := f.Close()
	if err := iox.RemoveIfExists(w.tmpPath); err != nil {
		return fmt.Errorf("spool: remove %s: %w", w.tmpPath, err)
	}
	return closeErr
}

// Release closes the writer and leaves the temp file on disk. Used on
// connection teardown so partially received data survives for inspection.
func (w *Writer) Release() error {
	if w == nil || w.file == nil {
		return ErrNotOpen
	}
	f := w.file
	w.file = nil
	return f.Close()
}

// ChecksumFile returns the hex SHA-256 of the file at path.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsOpen reports whether the writer still holds its file.
func (w *Writer) IsOpen() bool {
	return w != nil && w.file != nil
}
