package lode

import (
	"context"
	"fmt"
	"os"

	"github.com/justapithecus/lode/lode"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"day", "session_id", "record_kind"}

// Archive backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Location says where an archive lives.
type Location struct {
	// Backend is BackendFS or BackendS3.
	Backend string
	// Path is a root directory for fs, or bucket[/prefix] for s3.
	Path string

	// S3 only.
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// S3 returns the S3 settings encoded in l.
func (l Location) S3() S3Config {
	bucket, prefix := ParseS3Path(l.Path)
	return S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       l.Region,
		Endpoint:     l.Endpoint,
		UsePathStyle: l.UsePathStyle,
	}
}

// Validate checks that l names a usable backend.
func (l Location) Validate() error {
	switch l.Backend {
	case BackendFS:
		if l.Path == "" {
			return fmt.Errorf("archive path is required for the %s backend", BackendFS)
		}
		return nil
	case BackendS3:
		s3cfg := l.S3()
		return s3cfg.Validate()
	default:
		return fmt.Errorf("unsupported archive backend %q (must be fs or s3)", l.Backend)
	}
}

// StoreFactory builds the Lode store factory for l. The fs root is
// created when create is set.
func (l Location) StoreFactory(ctx context.Context, create bool) (lode.StoreFactory, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l.Backend == BackendS3 {
		return NewS3Factory(ctx, l.S3())
	}
	if create {
		if err := os.MkdirAll(l.Path, 0o755); err != nil {
			return nil, err
		}
	}
	return lode.NewFSFactory(l.Path), nil
}

// OpenClient returns a writing client for one session at l.
func OpenClient(ctx context.Context, cfg Config, l Location) (*LodeClient, error) {
	factory, err := l.StoreFactory(ctx, true)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return NewLodeClientWithFactory(cfg, factory)
}

// OpenReadDataset returns a read-only view of dataset at l.
func OpenReadDataset(ctx context.Context, dataset string, l Location) (lode.Dataset, error) {
	factory, err := l.StoreFactory(ctx, false)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(dataset, factory)
}

// NewReadDataset builds a Dataset with the write path's codec and layout.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return newDataset(dataset, factory)
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}
