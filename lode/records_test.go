package lode

import (
	"testing"
	"time"

	"github.com/justapithecus/aetheric/metrics"
	"github.com/justapithecus/aetheric/types"
)

func TestRecords_CarryPartitionKeys(t *testing.T) {
	cfg := testConfig("s-3")
	at := time.Now()
	recs := []map[string]any{
		ASCIIRecord(cfg, 1, types.ASCIIFrame{Text: "hello"}, at),
		BinaryRecord(cfg, 2, types.BinaryFrame{FinalPath: "/p", ChecksumHex: "ff", Size: 1}, at),
		DiscardRecord(cfg, 3, types.DiscardEvent{Kind: types.PayloadASCII}, at),
		SummaryRecord(cfg, 4, "completed", metrics.Snapshot{}, at),
	}
	for _, r := range recs {
		for _, key := range partitionKeys {
			if v, _ := r[key].(string); v == "" {
				t.Errorf("record %v missing partition key %s", r["record_kind"], key)
			}
		}
	}
}

func TestBinaryRecord_Fields(t *testing.T) {
	r := BinaryRecord(testConfig("s"), 1, types.BinaryFrame{FinalPath: "/p", ChecksumHex: "ff", Size: 42}, time.Now())
	if r["payload_len"] != uint64(42) || r["checksum"] != "ff" || r["checksum_algo"] != "sha256" {
		t.Errorf("record = %v", r)
	}
}

func TestDiscardRecord_Fields(t *testing.T) {
	ev := types.DiscardEvent{Preview: []byte("ab"), Kind: types.PayloadBinary, DeclaredLength: 7, Reason: types.ReasonInsufficientDisk}
	r := DiscardRecord(testConfig("s"), 1, ev, time.Now())
	if r["payload_type"] != "binary" || r["payload_total_len"] != uint64(7) || r["discard_reason"] != types.ReasonInsufficientDisk {
		t.Errorf("record = %v", r)
	}
}
