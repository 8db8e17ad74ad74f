package spool

import (
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ManifestSuffix is appended to a committed payload path to name its sidecar.
const ManifestSuffix = ".meta"

// Manifest is the msgpack sidecar written next to a committed payload.
// The validator cross-checks it against the metadata store.
type Manifest struct {
	SessionID   string    `msgpack:"session_id"`
	DeclaredLen uint64    `msgpack:"declared_len"`
	Size        uint64    `msgpack:"size"`
	Checksum    string    `msgpack:"checksum"`
	ChecksumAlg string    `msgpack:"checksum_alg"`
	CommittedAt time.Time `msgpack:"committed_at"`
}

// ManifestPath returns the sidecar path for a committed payload.
func ManifestPath(finalPath string) string {
	return finalPath + ManifestSuffix
}

// WriteManifest writes m next to finalPath.
func WriteManifest(finalPath string, m Manifest) error {
	if m.ChecksumAlg == "" {
		m.ChecksumAlg = "sha256"
	}
	data, err := msgpack.Marshal(&m)
	if err != nil {
		return fmt.Errorf("spool: encode manifest: %w", err)
	}
	if err := os.WriteFile(ManifestPath(finalPath), data, 0o644); err != nil {
		return fmt.Errorf("spool: write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the sidecar for finalPath.
// The returned error wraps fs.ErrNotExist when no sidecar was written.
func ReadManifest(finalPath string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(finalPath))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("spool: decode manifest: %w", err)
	}
	return &m, nil
}
