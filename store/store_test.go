package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/aetheric/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.Context(), filepath.Join(t.TempDir(), "nested", "ae.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	for _, name := range []string{TableSessions, TableASCII, TableBinary, TableDiscarded} {
		ok, err := s.HasTable(ctx, name)
		if err != nil {
			t.Fatalf("HasTable(%s) failed: %v", name, err)
		}
		if !ok {
			t.Errorf("HasTable(%s) = false, want true", name)
		}
	}
	if ok, _ := s.HasTable(ctx, "bad_frames"); ok {
		t.Error("HasTable(bad_frames) = true, want false")
	}
	if err := s.RequireTables(ctx); err != nil {
		t.Errorf("RequireTables() = %v, want nil", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ae.db")
	ctx := t.Context()

	s1, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := s1.InsertASCII(ctx, "s1", types.ASCIIFrame{Text: "HELLO"}); err != nil {
		t.Fatalf("InsertASCII failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer func() { _ = s2.Close() }()
	c, err := s2.Counts(ctx, "")
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if c.ASCII != 1 {
		t.Errorf("ASCII count after reopen = %d, want 1", c.ASCII)
	}
}

func TestInsertAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	for _, text := range []string{"HELLO", "WORLD!"} {
		if _, err := s.InsertASCII(ctx, "s1", types.ASCIIFrame{Text: text}); err != nil {
			t.Fatalf("InsertASCII failed: %v", err)
		}
	}
	if _, err := s.InsertASCII(ctx, "s2", types.ASCIIFrame{Text: "OTHER"}); err != nil {
		t.Fatalf("InsertASCII failed: %v", err)
	}
	id, err := s.InsertBinary(ctx, "s1", types.BinaryFrame{FinalPath: "/data/bin/a.bin", ChecksumHex: "abc", Size: 42})
	if err != nil {
		t.Fatalf("InsertBinary failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("InsertBinary id = %d, want > 0", id)
	}
	err = s.InsertDiscard(ctx, "s1", types.DiscardEvent{
		Kind: types.PayloadASCII, DeclaredLength: 2, Reason: types.ReasonTooShort, Preview: []byte("AB"),
	})
	if err != nil {
		t.Fatalf("InsertDiscard failed: %v", err)
	}
	// A nil preview must still satisfy the NOT NULL column.
	err = s.InsertDiscard(ctx, "s1", types.DiscardEvent{
		Kind: types.PayloadBinary, DeclaredLength: 1 << 30, Reason: types.ReasonInsufficientDisk,
	})
	if err != nil {
		t.Fatalf("InsertDiscard with nil preview failed: %v", err)
	}

	all, err := s.Counts(ctx, "")
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if all != (Counts{ASCII: 3, Binary: 1, Discarded: 2}) {
		t.Errorf("Counts(all) = %+v", all)
	}
	if all.Total() != 4 {
		t.Errorf("Total() = %d, want 4", all.Total())
	}

	s1, err := s.Counts(ctx, "s1")
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if s1 != (Counts{ASCII: 2, Binary: 1, Discarded: 2}) {
		t.Errorf("Counts(s1) = %+v", s1)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := s.StartSession(ctx, "s1", "127.0.0.1:9000", start); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	end := SessionEnd{EndedAt: start.Add(time.Minute), Outcome: "completed", ASCII: 5, Binary: 2, Discarded: 1, BytesSpooled: 99}
	if err := s.EndSession(ctx, "s1", end); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	sessions, err := s.Sessions(ctx, 10)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Sessions = %d, want 1", len(sessions))
	}
	got := sessions[0]
	if got.ID != "s1" || got.Remote != "127.0.0.1:9000" || got.Outcome != "completed" {
		t.Errorf("session = %+v", got)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, start)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(end.EndedAt) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, end.EndedAt)
	}
	if got.ASCII != 5 || got.Binary != 2 || got.Discarded != 1 || got.BytesSpooled != 99 {
		t.Errorf("session counters = %+v", got)
	}
}

func TestEndSession_Unknown(t *testing.T) {
	s := openTestStore(t)
	err := s.EndSession(t.Context(), "nope", SessionEnd{EndedAt: time.Now()})
	if err == nil {
		t.Fatal("EndSession(unknown) = nil, want error")
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	for _, text := range []string{"HELLO", "LONGER TEXT"} {
		if _, err := s.InsertASCII(ctx, "s1", types.ASCIIFrame{Text: text}); err != nil {
			t.Fatalf("InsertASCII failed: %v", err)
		}
	}
	for _, size := range []uint64{10, 30} {
		if _, err := s.InsertBinary(ctx, "s1", types.BinaryFrame{FinalPath: "x", Size: size}); err != nil {
			t.Fatalf("InsertBinary failed: %v", err)
		}
	}
	for range 3 {
		if err := s.InsertDiscard(ctx, "s1", types.DiscardEvent{Kind: types.PayloadASCII, Reason: types.ReasonTooShort}); err != nil {
			t.Fatalf("InsertDiscard failed: %v", err)
		}
	}

	st, err := s.Stats(ctx, 5)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.ASCIILength.Min != 5 || st.ASCIILength.Max != 11 || st.ASCIILength.Avg != 8 {
		t.Errorf("ASCIILength = %+v, want 5/11/8", st.ASCIILength)
	}
	if st.BinaryBytes != 40 || st.BinaryLength.Max != 30 {
		t.Errorf("BinaryBytes = %d, BinaryLength = %+v", st.BinaryBytes, st.BinaryLength)
	}
	if st.DiscardsByReason[types.ReasonTooShort] != 3 {
		t.Errorf("DiscardsByReason = %v", st.DiscardsByReason)
	}
}

func TestStats_Empty(t *testing.T) {
	s := openTestStore(t)
	st, err := s.Stats(t.Context(), 0)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Counts.Total() != 0 || st.ASCIILength.Max != 0 || len(st.Sessions) != 0 {
		t.Errorf("empty Stats = %+v", st)
	}
}

func TestRows(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	if _, err := s.InsertASCII(ctx, "s1", types.ASCIIFrame{Text: "HELLO"}); err != nil {
		t.Fatalf("InsertASCII failed: %v", err)
	}
	if _, err := s.InsertBinary(ctx, "s1", types.BinaryFrame{FinalPath: "a", ChecksumHex: "ff", Size: 1}); err != nil {
		t.Fatalf("InsertBinary failed: %v", err)
	}
	if _, err := s.InsertBinary(ctx, "s1", types.BinaryFrame{FinalPath: "b", Size: 2}); err != nil {
		t.Fatalf("InsertBinary failed: %v", err)
	}

	var ascii []ASCIIRow
	if err := s.EachASCII(ctx, func(r ASCIIRow) error {
		ascii = append(ascii, r)
		return nil
	}); err != nil {
		t.Fatalf("EachASCII failed: %v", err)
	}
	if len(ascii) != 1 || ascii[0].Payload != "HELLO" || ascii[0].PayloadLen != 5 {
		t.Errorf("ascii rows = %+v", ascii)
	}

	stop := errors.New("stop")
	if err := s.EachASCII(ctx, func(ASCIIRow) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("EachASCII error = %v, want stop", err)
	}

	bin, err := s.BinaryRows(ctx)
	if err != nil {
		t.Fatalf("BinaryRows failed: %v", err)
	}
	if len(bin) != 2 {
		t.Fatalf("binary rows = %d, want 2", len(bin))
	}
	if bin[0].Checksum != "ff" || bin[1].Checksum != "" {
		t.Errorf("checksums = %q, %q; want ff and empty (NULL)", bin[0].Checksum, bin[1].Checksum)
	}
}

func TestOpenReadOnly(t *testing.T) {
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "ae.db")

	if _, err := OpenReadOnly(ctx, path); err == nil {
		t.Fatal("OpenReadOnly(missing) = nil, want error")
	}

	rw, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := rw.InsertASCII(ctx, "s1", types.ASCIIFrame{Text: "HELLO"}); err != nil {
		t.Fatalf("InsertASCII failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ro, err := OpenReadOnly(ctx, path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer func() { _ = ro.Close() }()

	c, err := ro.Counts(ctx, "")
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if c.ASCII != 1 {
		t.Errorf("ASCII = %d, want 1", c.ASCII)
	}
	if _, err := ro.InsertASCII(ctx, "s1", types.ASCIIFrame{Text: "WORLD"}); err == nil {
		t.Error("InsertASCII on read-only store succeeded, want error")
	}
}
