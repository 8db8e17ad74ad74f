package admission

import (
	"context"
	"errors"
	"testing"
)

func TestCanFit(t *testing.T) {
	const mib = 1024 * 1024
	tests := []struct {
		name   string
		size   uint64
		free   uint64
		margin uint64
		want   bool
	}{
		{"fits with room", 10 * mib, 500 * mib, 100 * mib, true},
		{"exactly at margin", 400 * mib, 500 * mib, 100 * mib, true},
		{"one byte over", 400*mib + 1, 500 * mib, 100 * mib, false},
		{"free below margin", 1, 50 * mib, 100 * mib, false},
		{"free below margin, empty payload", 0, 100*mib - 1, 100 * mib, false},
		{"free equals margin, empty payload", 0, 100 * mib, 100 * mib, true},
		{"free equals margin, one byte", 1, 100 * mib, 100 * mib, false},
		{"zero size", 0, 200 * mib, 100 * mib, true},
		{"no margin", 10, 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanFit(tt.size, tt.free, tt.margin); got != tt.want {
				t.Errorf("CanFit(%d, %d, %d) = %v, want %v", tt.size, tt.free, tt.margin, got, tt.want)
			}
		})
	}
}

func TestDiskChecker_UsesMargin(t *testing.T) {
	d := &DiskChecker{
		Dir:       "/spool",
		Margin:    100,
		freeBytes: func(string) (uint64, error) { return 1000, nil },
	}
	if !d.Admit(t.Context(), 900) {
		t.Error("Admit(900) = false, want true")
	}
	if d.Admit(t.Context(), 901) {
		t.Error("Admit(901) = true, want false")
	}
}

func TestDiskChecker_EmptyPayloadAtMargin(t *testing.T) {
	d := &DiskChecker{
		Dir:       "/spool",
		Margin:    100,
		freeBytes: func(string) (uint64, error) { return 100, nil },
	}
	if !d.Admit(t.Context(), 0) {
		t.Error("Admit(0) with free == margin = false, want true")
	}
	if d.Admit(t.Context(), 1) {
		t.Error("Admit(1) with free == margin = true, want false")
	}
}

func TestDiskChecker_DeniesOnQueryFailure(t *testing.T) {
	d := &DiskChecker{
		Dir:       "/spool",
		freeBytes: func(string) (uint64, error) { return 0, errors.New("statfs: no such file") },
	}
	if d.Admit(t.Context(), 0) {
		t.Error("Admit should deny when the free space query fails")
	}
}

func TestDiskChecker_DeniesOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	d := &DiskChecker{freeBytes: func(string) (uint64, error) { return 1 << 40, nil }}
	if d.Admit(ctx, 1) {
		t.Error("Admit should deny when the context is done")
	}
}

func TestDiskChecker_RealVolume(t *testing.T) {
	d := NewDiskChecker(t.TempDir(), nil)
	d.Margin = 0
	// Zero bytes always fits unless the platform cannot answer at all.
	if _, err := FreeBytes(d.Dir); errors.Is(err, ErrUnsupported) {
		t.Skip("free space query unsupported")
	}
	if !d.Admit(t.Context(), 0) {
		t.Error("Admit(0) on a real temp dir = false, want true")
	}
	if d.Admit(t.Context(), ^uint64(0)) {
		t.Error("Admit(max uint64) = true, want false")
	}
}

func TestAlways(t *testing.T) {
	if !Always(true).Admit(t.Context(), 1<<39) {
		t.Error("Always(true) denied")
	}
	if Always(false).Admit(t.Context(), 0) {
		t.Error("Always(false) admitted")
	}
}
