// Package validator cross-checks a collector database against the spooled
// payloads on disk, after the fact.
package validator

import "time"

// Mode selects how much binary data is checksummed.
type Mode string

const (
	// ModeFull checksums every binary payload.
	ModeFull Mode = "full"
	// ModeFast checksums an evenly strided sample.
	ModeFast Mode = "fast"
)

// ShaMode selects whether checksums are verified at all.
type ShaMode string

const (
	ShaVerify ShaMode = "verify"
	ShaSkip   ShaMode = "skip"
)

// Problem codes recorded in examples.
const (
	ProblemLenMismatch      = "len_mismatch"
	ProblemTooShort         = "too_short"
	ProblemNonPrintable     = "non_printable_or_marker"
	ProblemFileMissing      = "file_missing"
	ProblemSizeMismatch     = "size_mismatch"
	ProblemChecksumMismatch = "checksum_mismatch"
	ProblemManifestMismatch = "manifest_mismatch"
)

const maxExamples = 5

// Example is a sample invalid row.
type Example struct {
	ID     int64  `json:"id" yaml:"id"`
	Reason string `json:"reason" yaml:"reason"`
	Sample string `json:"sample,omitempty" yaml:"sample,omitempty"`
}

// ASCIIStats summarizes msgascii. Length fields are nil when no row is valid.
type ASCIIStats struct {
	Rows     int64     `json:"rows" yaml:"rows"`
	Invalid  int64     `json:"invalid" yaml:"invalid"`
	MinLen   *int64    `json:"min_len" yaml:"min_len"`
	MaxLen   *int64    `json:"max_len" yaml:"max_len"`
	AvgLen   *float64  `json:"avg_len" yaml:"avg_len"`
	Examples []Example `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// BinaryStats summarizes msgbinary and the payload files it points to.
type BinaryStats struct {
	Rows               int64     `json:"rows" yaml:"rows"`
	FilesMissing       int64     `json:"files_missing" yaml:"files_missing"`
	SizeMismatch       int64     `json:"size_mismatch" yaml:"size_mismatch"`
	ChecksumMismatch   int64     `json:"checksum_mismatch" yaml:"checksum_mismatch"`
	ManifestsChecked   int64     `json:"manifests_checked" yaml:"manifests_checked"`
	ManifestMismatch   int64     `json:"manifest_mismatch" yaml:"manifest_mismatch"`
	MinBytes           *int64    `json:"min_bytes" yaml:"min_bytes"`
	MaxBytes           *int64    `json:"max_bytes" yaml:"max_bytes"`
	AvgBytes           *float64  `json:"avg_bytes" yaml:"avg_bytes"`
	SampledForChecksum int64     `json:"sampled_for_checksum" yaml:"sampled_for_checksum"`
	Examples           []Example `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// CrossStats relates the tables to each other and to expectations.
type CrossStats struct {
	TotalMessages    int64    `json:"total_messages" yaml:"total_messages"`
	ExpectedMin      *int64   `json:"expected_min,omitempty" yaml:"expected_min,omitempty"`
	MeetsExpectedMin *bool    `json:"meets_expected_min" yaml:"meets_expected_min"`
	DiscardCount     int64    `json:"discard_count" yaml:"discard_count"`
	DiscardRatio     *float64 `json:"discard_ratio" yaml:"discard_ratio"`
	OrphanTempFiles  int64    `json:"orphan_temp_files" yaml:"orphan_temp_files"`
}

// Report is the result of one validation run.
type Report struct {
	Mode       Mode        `json:"mode" yaml:"mode"`
	Sha        ShaMode     `json:"sha" yaml:"sha"`
	DBPath     string      `json:"db_path" yaml:"db_path"`
	DataDir    string      `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	ASCII      ASCIIStats  `json:"ascii" yaml:"ascii"`
	Binary     BinaryStats `json:"binary" yaml:"binary"`
	Cross      CrossStats  `json:"cross" yaml:"cross"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time   `json:"finished_at" yaml:"finished_at"`
	DurationMs int64       `json:"duration_ms" yaml:"duration_ms"`
	Pass       bool        `json:"pass" yaml:"pass"`
	Warnings   []string    `json:"warnings" yaml:"warnings"`
}

func (r *Report) pass() bool {
	meets := r.Cross.MeetsExpectedMin == nil || *r.Cross.MeetsExpectedMin
	return r.ASCII.Invalid == 0 &&
		r.Binary.FilesMissing == 0 &&
		r.Binary.SizeMismatch == 0 &&
		r.Binary.ChecksumMismatch == 0 &&
		r.Binary.ManifestMismatch == 0 &&
		meets
}
