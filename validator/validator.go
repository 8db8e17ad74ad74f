package validator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/justapithecus/aetheric/log"
	"github.com/justapithecus/aetheric/proto"
	"github.com/justapithecus/aetheric/spool"
	"github.com/justapithecus/aetheric/store"
)

// Options configures a validation run.
type Options struct {
	DBPath string
	// DataDir is scanned for leftover temp files. Optional.
	DataDir string
	Mode    Mode
	Sha     ShaMode
	// Sample is the number of binary rows checksummed in ModeFast.
	Sample int
	// ExpectedMin, when positive, is the minimum number of messages.
	ExpectedMin int64
	Logger      *log.Logger
}

// Run validates the database at opts.DBPath.
// An error is returned only when validation could not run; data problems
// are reported with Report.Pass false.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}
	if opts.Sha == "" {
		opts.Sha = ShaVerify
	}
	if opts.Mode != ModeFull && opts.Mode != ModeFast {
		return nil, fmt.Errorf("validator: unknown mode %q", opts.Mode)
	}
	if opts.Sha != ShaVerify && opts.Sha != ShaSkip {
		return nil, fmt.Errorf("validator: unknown sha mode %q", opts.Sha)
	}

	started := time.Now()
	db, err := store.OpenReadOnly(ctx, opts.DBPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	if err := db.RequireTables(ctx); err != nil {
		return nil, err
	}

	rep := &Report{
		Mode:      opts.Mode,
		Sha:       opts.Sha,
		DBPath:    opts.DBPath,
		DataDir:   opts.DataDir,
		StartedAt: started.UTC(),
		Warnings:  []string{},
	}

	if rep.ASCII, err = validateASCII(ctx, db); err != nil {
		return nil, err
	}
	if rep.Binary, err = validateBinary(ctx, db, opts); err != nil {
		return nil, err
	}
	if err := crossCheck(ctx, db, opts, rep); err != nil {
		return nil, err
	}

	finished := time.Now()
	rep.FinishedAt = finished.UTC()
	rep.DurationMs = finished.Sub(started).Milliseconds()
	rep.Pass = rep.pass()

	opts.Logger.Info("validation finished", map[string]any{
		"pass":           rep.Pass,
		"total_messages": rep.Cross.TotalMessages,
		"ascii_invalid":  rep.ASCII.Invalid,
		"files_missing":  rep.Binary.FilesMissing,
		"duration_ms":    rep.DurationMs,
	})
	return rep, nil
}

func validateASCII(ctx context.Context, db *store.Store) (ASCIIStats, error) {
	var (
		st  ASCIIStats
		agg lengthAgg
	)
	err := db.EachASCII(ctx, func(row store.ASCIIRow) error {
		st.Rows++
		reason := asciiProblem(row)
		if reason != "" {
			st.Invalid++
			if len(st.Examples) < maxExamples {
				st.Examples = append(st.Examples, Example{ID: row.ID, Reason: reason, Sample: truncate(row.Payload, 32)})
			}
			return nil
		}
		agg.add(int64(len(row.Payload)))
		return nil
	})
	if err != nil {
		return ASCIIStats{}, err
	}
	st.MinLen, st.MaxLen, st.AvgLen = agg.result()
	return st, nil
}

func asciiProblem(row store.ASCIIRow) string {
	switch {
	case int64(len(row.Payload)) != row.PayloadLen:
		return ProblemLenMismatch
	case len(row.Payload) < proto.MinASCIILength:
		return ProblemTooShort
	}
	for i := 0; i < len(row.Payload); i++ {
		if !proto.IsPrintable(row.Payload[i]) {
			return ProblemNonPrintable
		}
	}
	return ""
}

func validateBinary(ctx context.Context, db *store.Store, opts Options) (BinaryStats, error) {
	rows, err := db.BinaryRows(ctx)
	if err != nil {
		return BinaryStats{}, err
	}
	st := BinaryStats{Rows: int64(len(rows))}
	var agg lengthAgg

	example := func(id int64, reason, sample string) {
		if len(st.Examples) < maxExamples {
			st.Examples = append(st.Examples, Example{ID: id, Reason: reason, Sample: sample})
		}
	}

	present := make([]bool, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return BinaryStats{}, err
		}
		info, err := os.Stat(row.PayloadPath)
		if err != nil {
			st.FilesMissing++
			example(row.ID, ProblemFileMissing, row.PayloadPath)
			continue
		}
		present[i] = true
		if info.Size() != row.PayloadLen {
			st.SizeMismatch++
			example(row.ID, ProblemSizeMismatch, row.PayloadPath)
		}
		agg.add(info.Size())

		m, err := spool.ReadManifest(row.PayloadPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			st.ManifestsChecked++
			st.ManifestMismatch++
			example(row.ID, ProblemManifestMismatch, err.Error())
		default:
			st.ManifestsChecked++
			if m.Size != uint64(row.PayloadLen) || (row.Checksum != "" && m.Checksum != row.Checksum) {
				st.ManifestMismatch++
				example(row.ID, ProblemManifestMismatch, row.PayloadPath)
			}
		}
	}
	st.MinBytes, st.MaxBytes, st.AvgBytes = agg.result()

	if opts.Sha == ShaSkip {
		return st, nil
	}
	for _, i := range sampleIndexes(len(rows), opts.Mode, opts.Sample) {
		if err := ctx.Err(); err != nil {
			return BinaryStats{}, err
		}
		st.SampledForChecksum++
		row := rows[i]
		if row.Checksum == "" || !present[i] {
			continue
		}
		digest, err := spool.ChecksumFile(row.PayloadPath)
		if err != nil {
			continue
		}
		if digest != row.Checksum {
			st.ChecksumMismatch++
			example(row.ID, ProblemChecksumMismatch, row.PayloadPath)
		}
	}
	return st, nil
}

// sampleIndexes picks the rows to checksum. ModeFast with 0 < sample < total
// takes every (total/sample)-th row, at most sample rows.
func sampleIndexes(total int, mode Mode, sample int) []int {
	if mode != ModeFast || sample <= 0 || sample >= total {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	stride := max(1, total/sample)
	idx := make([]int, 0, sample)
	for i := 0; i < total && len(idx) < sample; i += stride {
		idx = append(idx, i)
	}
	return idx
}

func crossCheck(ctx context.Context, db *store.Store, opts Options, rep *Report) error {
	rep.Cross.TotalMessages = rep.ASCII.Rows + rep.Binary.Rows

	if opts.ExpectedMin > 0 {
		want := opts.ExpectedMin
		meets := rep.Cross.TotalMessages >= want
		rep.Cross.ExpectedMin = &want
		rep.Cross.MeetsExpectedMin = &meets
	}

	ok, err := db.HasTable(ctx, store.TableDiscarded)
	if err != nil {
		return err
	}
	if ok {
		counts, err := db.Counts(ctx, "")
		if err != nil {
			return err
		}
		rep.Cross.DiscardCount = counts.Discarded
		if denom := rep.Cross.TotalMessages + counts.Discarded; denom > 0 {
			ratio := float64(counts.Discarded) / float64(denom)
			rep.Cross.DiscardRatio = &ratio
		} else {
			zero := 0.0
			rep.Cross.DiscardRatio = &zero
		}
	} else {
		rep.Warnings = append(rep.Warnings, "no msgdiscarded table; discard ratio unavailable")
	}

	if opts.DataDir != "" {
		n, err := countTempFiles(opts.DataDir)
		if err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("scan %s: %v", opts.DataDir, err))
		} else if n > 0 {
			rep.Cross.OrphanTempFiles = n
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("%d partial payload file(s) left by interrupted sessions in %s", n, opts.DataDir))
		}
	}
	return nil
}

func countTempFiles(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), spool.TempSuffix) {
			n++
		}
	}
	return n, nil
}

type lengthAgg struct {
	n, sum, lo, hi int64
}

func (a *lengthAgg) add(v int64) {
	if a.n == 0 || v < a.lo {
		a.lo = v
	}
	if a.n == 0 || v > a.hi {
		a.hi = v
	}
	a.n++
	a.sum += v
}

func (a *lengthAgg) result() (lo, hi *int64, avg *float64) {
	if a.n == 0 {
		return nil, nil, nil
	}
	l, h := a.lo, a.hi
	mean := math.Round(float64(a.sum)/float64(a.n)*100) / 100
	return &l, &h, &mean
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
