//go:build linux || darwin || freebsd

package admission

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// FreeBytes returns the bytes available to an unprivileged user on the
// volume hosting path.
func FreeBytes(path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(abs, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil //nolint:unconvert // field widths differ per platform
}
