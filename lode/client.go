package lode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"
)

// DefaultDataset is the dataset every collector record is written to.
const DefaultDataset = "aetheric"

// DeriveDay computes the partition day from the session start time
// (YYYY-MM-DD, UTC).
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config identifies where a session's records land.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Day is the partition day derived from the session start.
	Day string
	// SessionID is the partition key for the session.
	SessionID string
}

// ErrMissingRecordKind is returned when a record lacks record_kind.
var ErrMissingRecordKind = errors.New("record rejected: missing record_kind")

// ErrInvalidFilename is returned by PutFile for names that would escape
// the session's files/ prefix.
var ErrInvalidFilename = errors.New("invalid archive filename")

// Client abstracts the archive backend.
type Client interface {
	// WriteRecords writes one batch, preserving order within it.
	WriteRecords(ctx context.Context, records []map[string]any) error
	// Close releases client resources.
	Close() error
}

// FileWriter stores raw files next to a session's records, bypassing the
// dataset's segment and manifest machinery.
type FileWriter interface {
	PutFile(ctx context.Context, filename string, r io.Reader) error
}

// LodeClient writes records to a Lode dataset with a
// day/session_id/record_kind Hive layout and a JSONL codec.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{dataset: ds, config: cfg, storeFactory: factory}
}

// Config returns the client's partition configuration.
func (c *LodeClient) Config() Config {
	return c.config
}

// WriteRecords writes a batch as one Lode snapshot.
func (c *LodeClient) WriteRecords(ctx context.Context, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	batch := make([]any, 0, len(records))
	for _, r := range records {
		if kind, _ := r["record_kind"].(string); kind == "" {
			return ErrMissingRecordKind
		}
		batch = append(batch, r)
	}
	if _, err := c.dataset.Write(ctx, batch, lode.Metadata{}); err != nil {
		return WrapWriteError(err, "datasets/"+c.config.Dataset)
	}
	return nil
}

// PutFile streams r to the session's files/ prefix.
func (c *LodeClient) PutFile(ctx context.Context, filename string, r io.Reader) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.Dataset)
	}
	path := c.filePath(filename)
	if err := store.Put(ctx, path, r); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// filePath is datasets/<dataset>/partitions/day=<d>/session_id=<s>/files/<name>.
func (c *LodeClient) filePath(filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/day=%s/session_id=%s/files/%s",
		c.config.Dataset, c.config.Day, c.config.SessionID, filename)
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	return nil
}

var (
	_ Client     = (*LodeClient)(nil)
	_ FileWriter = (*LodeClient)(nil)
)

// StubClient records writes in memory.
type StubClient struct {
	mu      sync.Mutex
	Batches [][]map[string]any
	Files   map[string][]byte
	Closed  bool
	// WriteErr, when set, fails every WriteRecords call.
	WriteErr error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{Files: map[string][]byte{}}
}

// WriteRecords implements Client.
func (c *StubClient) WriteRecords(_ context.Context, records []map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Batches = append(c.Batches, records)
	return nil
}

// PutFile implements FileWriter.
func (c *StubClient) PutFile(_ context.Context, filename string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Files[filename] = data
	return nil
}

// Records returns every written record in order.
func (c *StubClient) Records() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, b := range c.Batches {
		out = append(out, b...)
	}
	return out
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var (
	_ Client     = (*StubClient)(nil)
	_ FileWriter = (*StubClient)(nil)
)
