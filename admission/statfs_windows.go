//go:build windows

package admission

import (
	"path/filepath"

	"golang.org/x/sys/windows"
)

// FreeBytes returns the bytes available to the caller on the volume hosting path.
func FreeBytes(path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	p, err := windows.UTF16PtrFromString(abs)
	if err != nil {
		return 0, err
	}
	var avail, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &avail, &total, &free); err != nil {
		return 0, err
	}
	return avail, nil
}
