//go:build !linux && !darwin && !freebsd && !windows

package admission

// FreeBytes is unsupported here; admission therefore denies every payload.
func FreeBytes(string) (uint64, error) {
	return 0, ErrUnsupported
}
