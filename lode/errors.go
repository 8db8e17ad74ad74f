// Package lode archives collector records to a Lode dataset.
//
// Archive failures are wrapped in errkind.StorageError so callers can match
// errkind sentinels such as errkind.ErrDiskFull with errors.Is.
package lode

import "github.com/justapithecus/aetheric/errkind"

// WrapWriteError classifies and wraps an archive write error.
func WrapWriteError(err error, path string) error {
	return errkind.Wrap(err, "write", path)
}

// WrapReadError classifies and wraps an archive read error.
func WrapReadError(err error, path string) error {
	return errkind.Wrap(err, "read", path)
}

// WrapInitError classifies and wraps an archive initialization error.
func WrapInitError(err error, dataset string) error {
	return errkind.Wrap(err, "init", dataset)
}
