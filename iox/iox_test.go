package iox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type countingCloser struct{ calls int }

func (c *countingCloser) Close() error {
	c.calls++
	return errors.New("close failed")
}

func TestDiscardClose(t *testing.T) {
	c := &countingCloser{}
	DiscardClose(c)
	if c.calls != 1 {
		t.Errorf("Close calls = %d, want 1", c.calls)
	}
}

func TestCloseFunc_Deferred(t *testing.T) {
	c := &countingCloser{}
	cleanup := CloseFunc(c)
	if c.calls != 0 {
		t.Fatalf("Close calls before cleanup = %d, want 0", c.calls)
	}
	cleanup()
	if c.calls != 1 {
		t.Errorf("Close calls = %d, want 1", c.calls)
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.bin.part")
	if err := os.WriteFile(path, []byte{0xAA}, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	if err := RemoveIfExists(path); err != nil {
		t.Errorf("RemoveIfExists(missing) error = %v, want nil", err)
	}
	if err := RemoveIfExists(""); err != nil {
		t.Errorf("RemoveIfExists(\"\") error = %v, want nil", err)
	}
}
