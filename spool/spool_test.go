package spool

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestFinalPath(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"/data/bin/1-abc-10.bin.part", "/data/bin/1-abc-10.bin", true},
		{"relative.part", "relative", true},
		{"/data/bin/file.bin", "", false},
		{".part", "", false},
		{"/data/bin/.part", "", false},
	}
	for _, tt := range tests {
		got, ok := FinalPath(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FinalPath(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTempPath_Shape(t *testing.T) {
	p := TempPath("/spool", 42)
	if filepath.Dir(p) != "/spool" {
		t.Errorf("TempPath dir = %q, want /spool", filepath.Dir(p))
	}
	if !strings.HasSuffix(p, "-42.bin"+TempSuffix) {
		t.Errorf("TempPath = %q, want suffix -42.bin.part", p)
	}
	if TempPath("/spool", 42) == p {
		t.Error("TempPath should be unique per call")
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	tmp := TempPath(dir, 11)

	w, err := Open(tmp)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	payload := []byte("hello world")
	for _, part := range [][]byte{payload[:3], payload[3:4], payload[4:]} {
		if _, err := w.Write(part); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if w.Written() != uint64(len(payload)) {
		t.Errorf("Written() = %d, want %d", w.Written(), len(payload))
	}

	res, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if res.ChecksumHex != sha256Hex(payload) {
		t.Errorf("ChecksumHex = %s, want %s", res.ChecksumHex, sha256Hex(payload))
	}
	if res.Size != uint64(len(payload)) {
		t.Errorf("Size = %d, want %d", res.Size, len(payload))
	}
	if strings.HasSuffix(res.FinalPath, TempSuffix) {
		t.Errorf("FinalPath %q still carries temp suffix", res.FinalPath)
	}

	got, err := os.ReadFile(res.FinalPath)
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("final content = %q, want %q", got, payload)
	}
	if _, err := os.Stat(tmp); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("temp file should be gone after rename, stat err = %v", err)
	}
}

func TestWriter_EmptyPayload(t *testing.T) {
	w, err := Open(TempPath(t.TempDir(), 0))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	res, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if res.ChecksumHex != sha256Hex(nil) {
		t.Errorf("ChecksumHex = %s, want sha256 of empty input", res.ChecksumHex)
	}
	info, err := os.Stat(res.FinalPath)
	if err != nil || info.Size() != 0 {
		t.Errorf("final file stat = %v, %v; want empty file", info, err)
	}
}

func TestOpen_RejectsPathWithoutSuffix(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "payload.bin"))
	if !IsOpenError(err) {
		t.Fatalf("Open error = %v, want *OpenError", err)
	}
}

func TestOpen_MissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "x.bin.part"))
	if !IsOpenError(err) {
		t.Fatalf("Open error = %v, want *OpenError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open error should wrap fs.ErrNotExist, got %v", err)
	}
}

func TestWriter_Abandon(t *testing.T) {
	tmp := TempPath(t.TempDir(), 3)
	w, err := Open(tmp)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, _ = w.Write([]byte("abc"))
	if err := w.Abandon(); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}
	if _, err := os.Stat(tmp); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("temp file should be deleted, stat err = %v", err)
	}
	final, _ := FinalPath(tmp)
	if _, err := os.Stat(final); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("final file must not exist, stat err = %v", err)
	}
}

func TestWriter_ReleaseKeepsTempFile(t *testing.T) {
	tmp := TempPath(t.TempDir(), 10)
	w, err := Open(tmp)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, _ = w.Write([]byte("part"))
	if err := w.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	got, err := os.ReadFile(tmp)
	if err != nil {
		t.Fatalf("temp file should survive Release: %v", err)
	}
	if string(got) != "part" {
		t.Errorf("temp content = %q, want %q", got, "part")
	}
}

func TestWriter_UseAfterCloseIsNotOpen(t *testing.T) {
	w, err := Open(TempPath(t.TempDir(), 1))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if w.IsOpen() {
		t.Error("IsOpen() = true after Finalize")
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Write after Finalize = %v, want ErrNotOpen", err)
	}
	if _, err := w.Finalize(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("second Finalize = %v, want ErrNotOpen", err)
	}
	if err := w.Abandon(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Abandon after Finalize = %v, want ErrNotOpen", err)
	}
	if err := w.Release(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Release after Finalize = %v, want ErrNotOpen", err)
	}

	var nilWriter *Writer
	if _, err := nilWriter.Write([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Write on nil writer = %v, want ErrNotOpen", err)
	}
}

func TestChecksumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	data := bytes.Repeat([]byte{0xAB, 0x00, 0x7F}, 100_000)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ChecksumFile(path)
	if err != nil {
		t.Fatalf("ChecksumFile failed: %v", err)
	}
	if got != sha256Hex(data) {
		t.Errorf("ChecksumFile = %s, want %s", got, sha256Hex(data))
	}
}

func TestManifest_WriteRead(t *testing.T) {
	final := filepath.Join(t.TempDir(), "1-x-4.bin")
	in := Manifest{
		SessionID:   "sess-1",
		DeclaredLen: 4,
		Size:        4,
		Checksum:    sha256Hex([]byte("abcd")),
	}
	if err := WriteManifest(final, in); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	got, err := ReadManifest(final)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if got.SessionID != in.SessionID || got.Checksum != in.Checksum || got.Size != 4 {
		t.Errorf("manifest = %+v, want %+v", got, in)
	}
	if got.ChecksumAlg != "sha256" {
		t.Errorf("ChecksumAlg = %q, want sha256", got.ChecksumAlg)
	}
}

func TestReadManifest_Missing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "nothing.bin"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadManifest error = %v, want fs.ErrNotExist", err)
	}
}
