package lode

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/aetheric/errkind"
	"github.com/justapithecus/aetheric/metrics"
	"github.com/justapithecus/aetheric/types"
)

// FailingStore is a lode.Store that returns configurable errors.
type FailingStore struct {
	PutErr  error
	ListErr error

	PutCalls int
	PutPaths []string
}

func (s *FailingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.PutCalls++
	s.PutPaths = append(s.PutPaths, path)
	return s.PutErr
}

func (s *FailingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *FailingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.ListErr
}

func (s *FailingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *FailingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)

// sharedFactory lets write and read datasets share one in-memory store.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func testConfig(sessionID string) Config {
	return Config{Dataset: DefaultDataset, Day: "2026-10-19", SessionID: sessionID}
}

func TestDeriveDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := DeriveDay(time.Date(2026, 10, 20, 3, 0, 0, 0, loc))
	if got != "2026-10-19" {
		t.Errorf("DeriveDay = %q, want 2026-10-19", got)
	}
}

func TestLodeClient_WriteAndReadBack(t *testing.T) {
	store := lode.NewMemory()
	cfg := testConfig("s-1")
	client, err := NewLodeClientWithFactory(cfg, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	batch := []map[string]any{
		ASCIIRecord(cfg, 1, types.ASCIIFrame{Text: "hello"}, at),
		DiscardRecord(cfg, 2, types.DiscardEvent{
			Preview: []byte("abc"), Kind: types.PayloadASCII, DeclaredLength: 3, Reason: types.ReasonTooShort,
		}, at),
	}
	if err := client.WriteRecords(t.Context(), batch); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}

	ds, err := NewReadDataset("", sharedFactory(store))
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}
	all, err := ReadSessionRecords(t.Context(), ds, "s-1", "")
	if err != nil {
		t.Fatalf("ReadSessionRecords failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d records, want 2", len(all))
	}
	ascii, err := ReadSessionRecords(t.Context(), ds, "s-1", RecordKindASCII)
	if err != nil {
		t.Fatalf("ReadSessionRecords failed: %v", err)
	}
	if len(ascii) != 1 || toString(ascii[0]["payload"]) != "hello" {
		t.Errorf("ascii records = %v", ascii)
	}
	if got := ToInt64(ascii[0]["seq"]); got != 1 {
		t.Errorf("seq = %d, want 1", got)
	}
}

func TestLodeClient_EmptyBatchIsNoop(t *testing.T) {
	fs := &FailingStore{PutErr: errors.New("must not be called")}
	client, err := NewLodeClientWithFactory(testConfig("s-1"), sharedFactory(fs))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	if err := client.WriteRecords(t.Context(), nil); err != nil {
		t.Errorf("WriteRecords(nil) = %v, want nil", err)
	}
	if fs.PutCalls != 0 {
		t.Errorf("PutCalls = %d, want 0", fs.PutCalls)
	}
}

func TestLodeClient_MissingRecordKind(t *testing.T) {
	client, err := NewLodeClientWithFactory(testConfig("s-1"), lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	err = client.WriteRecords(t.Context(), []map[string]any{{"day": "x"}})
	if !errors.Is(err, ErrMissingRecordKind) {
		t.Errorf("err = %v, want ErrMissingRecordKind", err)
	}
}

func TestLodeClient_WriteFailureIsClassified(t *testing.T) {
	fs := &FailingStore{PutErr: errors.New("write: no space left on device")}
	cfg := testConfig("s-1")
	client, err := NewLodeClientWithFactory(cfg, sharedFactory(fs))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	err = client.WriteRecords(t.Context(), []map[string]any{
		ASCIIRecord(cfg, 1, types.ASCIIFrame{Text: "hello"}, time.Now()),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errkind.ErrDiskFull) {
		t.Errorf("err = %v, want ErrDiskFull", err)
	}
	var se *errkind.StorageError
	if !errors.As(err, &se) || se.Op != "write" {
		t.Errorf("err = %#v, want StorageError with op write", err)
	}
}

func TestLodeClient_PutFile(t *testing.T) {
	store := lode.NewMemory()
	cfg := testConfig("s-7")
	client, err := NewLodeClientWithFactory(cfg, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	if err := client.PutFile(t.Context(), "blob.bin", strings.NewReader("payload")); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}

	rc, err := store.Get(t.Context(), "datasets/aetheric/partitions/day=2026-10-19/session_id=s-7/files/blob.bin")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("data = %q, want payload", data)
	}
}

func TestLodeClient_PutFileRejectsBadNames(t *testing.T) {
	client, err := NewLodeClientWithFactory(testConfig("s-1"), lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	for _, name := range []string{"", "a/b", `a\b`, "..", "x..y"} {
		err := client.PutFile(t.Context(), name, strings.NewReader("x"))
		if !errors.Is(err, ErrInvalidFilename) {
			t.Errorf("PutFile(%q) = %v, want ErrInvalidFilename", name, err)
		}
	}
}

func TestLodeClient_PutFileFactoryError(t *testing.T) {
	factory := func() (lode.Store, error) { return nil, errors.New("permission denied") }
	client := newClient(nil, testConfig("s-1"), factory)
	err := client.PutFile(t.Context(), "x.bin", strings.NewReader("x"))
	var se *errkind.StorageError
	if !errors.As(err, &se) || se.Op != "init" {
		t.Fatalf("err = %v, want init StorageError", err)
	}
	if !errors.Is(err, errkind.ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestOpenClient_FS(t *testing.T) {
	root := t.TempDir() + "/archive"
	client, err := OpenClient(t.Context(), testConfig("s-1"), Location{Backend: BackendFS, Path: root})
	if err != nil {
		t.Fatalf("OpenClient failed: %v", err)
	}
	if client.Config().SessionID != "s-1" {
		t.Errorf("Config().SessionID = %q", client.Config().SessionID)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("archive root not created: %v", err)
	}
}

func TestLocation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		loc     Location
		wantErr bool
	}{
		{"fs", Location{Backend: BackendFS, Path: "/tmp/a"}, false},
		{"fs without path", Location{Backend: BackendFS}, true},
		{"s3", Location{Backend: BackendS3, Path: "bucket/prefix"}, false},
		{"s3 without bucket", Location{Backend: BackendS3}, true},
		{"s3 bad endpoint", Location{Backend: BackendS3, Path: "b", Endpoint: "minio:9000"}, true},
		{"s3 endpoint", Location{Backend: BackendS3, Path: "b", Endpoint: "http://minio:9000"}, false},
		{"unknown", Location{Backend: "gcs", Path: "b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocation_S3(t *testing.T) {
	got := Location{Backend: BackendS3, Path: "s3://bkt/ae/raw/", Region: "eu-west-1", UsePathStyle: true}.S3()
	want := S3Config{Bucket: "bkt", Prefix: "ae/raw", Region: "eu-west-1", UsePathStyle: true}
	if got != want {
		t.Errorf("S3() = %+v, want %+v", got, want)
	}
}

func TestQueryLatestSummary(t *testing.T) {
	store := lode.NewMemory()
	factory := sharedFactory(store)
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for i, sid := range []string{"s-1", "s-10", "s-2"} {
		cfg := testConfig(sid)
		client, err := NewLodeClientWithFactory(cfg, factory)
		if err != nil {
			t.Fatalf("NewLodeClientWithFactory failed: %v", err)
		}
		snap := metrics.Snapshot{ASCIIFrames: int64(i + 1), Remote: "127.0.0.1:1"}
		rec := SummaryRecord(cfg, 1, "completed", snap, at)
		if err := client.WriteRecords(t.Context(), []map[string]any{rec}); err != nil {
			t.Fatalf("WriteRecords failed: %v", err)
		}
	}

	ds, err := NewReadDataset(DefaultDataset, factory)
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}

	latest, err := QueryLatestSummary(t.Context(), ds, "")
	if err != nil {
		t.Fatalf("QueryLatestSummary failed: %v", err)
	}
	if toString(latest["session_id"]) != "s-2" {
		t.Errorf("latest session = %v, want s-2", latest["session_id"])
	}

	one, err := QueryLatestSummary(t.Context(), ds, "s-1")
	if err != nil {
		t.Fatalf("QueryLatestSummary(s-1) failed: %v", err)
	}
	if got := ToInt64(one["ascii_frames"]); got != 1 {
		t.Errorf("ascii_frames = %d, want 1", got)
	}
	if toString(one["outcome"]) != "completed" {
		t.Errorf("outcome = %v", one["outcome"])
	}

	if _, err := QueryLatestSummary(t.Context(), ds, "s-404"); !errors.Is(err, ErrNoSummaryFound) {
		t.Errorf("err = %v, want ErrNoSummaryFound", err)
	}
}

func TestQueryLatestSummary_EmptyDataset(t *testing.T) {
	ds, err := NewReadDataset(DefaultDataset, lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}
	if _, err := QueryLatestSummary(t.Context(), ds, ""); !errors.Is(err, ErrNoSummaryFound) {
		t.Errorf("err = %v, want ErrNoSummaryFound", err)
	}
}

func TestMatchesPartitionValue(t *testing.T) {
	tests := []struct {
		path  string
		key   string
		value string
		want  bool
	}{
		{"datasets/a/partitions/session_id=s-1/x.jsonl", "session_id", "s-1", true},
		{"datasets/a/partitions/session_id=s-10/x.jsonl", "session_id", "s-1", false},
		{"datasets/a/partitions/record_kind=discard/x.jsonl", "record_kind", "discard", true},
		{"", "session_id", "s-1", false},
	}
	for _, tt := range tests {
		if got := matchesPartitionValue(tt.path, tt.key, tt.value); got != tt.want {
			t.Errorf("matchesPartitionValue(%q, %q, %q) = %v, want %v", tt.path, tt.key, tt.value, got, tt.want)
		}
	}
}

func TestS3Config_Validate(t *testing.T) {
	c := S3Config{}
	if err := c.Validate(); err == nil {
		t.Error("expected error for empty bucket")
	}
	c.Bucket = "b"
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/a/b", "bucket", "a/b"},
		{"bucket/a/", "bucket", "a"},
		{"s3://bucket/a/b", "bucket", "a/b"},
		{"s3://bucket", "bucket", ""},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q, want %q, %q", tt.in, b, p, tt.bucket, tt.prefix)
		}
	}
}

func TestSnapshotMatchesFilter_NoManifest(t *testing.T) {
	snap := &lode.DatasetSnapshot{}
	if !snapshotMatchesFilter(snap, "session_id", "") {
		t.Error("empty filter value should match every snapshot")
	}
	if snapshotMatchesFilter(snap, "session_id", "s-1") {
		t.Error("snapshot without a manifest matched session_id=s-1")
	}
}
