package lode

import (
	"time"

	"github.com/justapithecus/aetheric/metrics"
	"github.com/justapithecus/aetheric/types"
)

// Record kinds. record_kind is also the last Hive partition key.
const (
	RecordKindASCII   = "ascii_message"
	RecordKindBinary  = "binary_message"
	RecordKindDiscard = "discard"
	RecordKindSummary = "session_summary"
)

// Lode's HiveLayout reads partition values from record fields, so every
// record is a map carrying day, session_id and record_kind.

func baseRecord(cfg Config, kind string, seq int64, at time.Time) map[string]any {
	return map[string]any{
		"record_kind": kind,
		"day":         cfg.Day,
		"session_id":  cfg.SessionID,
		"seq":         seq,
		"ts":          at.UTC().Format(time.RFC3339Nano),
	}
}

// ASCIIRecord converts a delivered ASCII frame.
func ASCIIRecord(cfg Config, seq int64, f types.ASCIIFrame, at time.Time) map[string]any {
	m := baseRecord(cfg, RecordKindASCII, seq, at)
	m["payload"] = f.Text
	m["payload_len"] = len(f.Text)
	return m
}

// BinaryRecord converts a committed binary frame. The payload itself stays
// on disk; see LodeClient.PutFile for mirroring it.
func BinaryRecord(cfg Config, seq int64, f types.BinaryFrame, at time.Time) map[string]any {
	m := baseRecord(cfg, RecordKindBinary, seq, at)
	m["payload_path"] = f.FinalPath
	m["payload_len"] = f.Size
	m["checksum"] = f.ChecksumHex
	m["checksum_algo"] = "sha256"
	return m
}

// DiscardRecord converts a discard event. The preview is base64 in JSON.
func DiscardRecord(cfg Config, seq int64, ev types.DiscardEvent, at time.Time) map[string]any {
	m := baseRecord(cfg, RecordKindDiscard, seq, at)
	m["payload_preview"] = ev.Preview
	m["payload_type"] = string(ev.Kind)
	m["payload_total_len"] = ev.DeclaredLength
	m["discard_reason"] = ev.Reason
	return m
}

// SummaryRecord converts the final metrics snapshot of a session.
func SummaryRecord(cfg Config, seq int64, outcome string, s metrics.Snapshot, at time.Time) map[string]any {
	m := baseRecord(cfg, RecordKindSummary, seq, at)
	m["outcome"] = outcome
	m["remote"] = s.Remote
	m["archive_backend"] = s.ArchiveBackend
	m["ascii_frames"] = s.ASCIIFrames
	m["binary_frames"] = s.BinaryFrames
	m["bytes_received"] = s.BytesReceived
	m["bytes_spooled"] = s.BytesSpooled
	m["bytes_discarded"] = s.BytesDiscarded
	m["resync_bytes"] = s.ResyncBytes
	m["discards"] = s.Discards
	m["discards_by_kind"] = s.DiscardsByKind
	m["discards_by_reason"] = s.DiscardsByReason
	m["admission_denied"] = s.AdmissionDenied
	m["spool_open_failures"] = s.SpoolOpenFailures
	m["spool_write_failures"] = s.SpoolWriteFailures
	m["store_write_success"] = s.StoreWriteSuccess
	m["store_write_failure"] = s.StoreWriteFailure
	// The summary write itself is not yet counted.
	m["archive_write_success"] = s.ArchiveWriteSuccess
	m["archive_write_failure"] = s.ArchiveWriteFailure
	return m
}
