package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Counts holds row counts per message table.
type Counts struct {
	ASCII     int64 `json:"ascii" yaml:"ascii"`
	Binary    int64 `json:"binary" yaml:"binary"`
	Discarded int64 `json:"discarded" yaml:"discarded"`
}

// Total returns the number of delivered messages.
func (c Counts) Total() int64 {
	return c.ASCII + c.Binary
}

// Counts returns row counts. An empty sessionID counts every session.
func (s *Store) Counts(ctx context.Context, sessionID string) (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		dst   *int64
	}{
		{TableASCII, &c.ASCII},
		{TableBinary, &c.Binary},
		{TableDiscarded, &c.Discarded},
	}
	for _, tgt := range targets {
		q := "SELECT COUNT(*) FROM " + tgt.table
		var args []any
		if sessionID != "" {
			q += " WHERE session_id = ?"
			args = append(args, sessionID)
		}
		if err := s.db.QueryRowContext(ctx, q, args...).Scan(tgt.dst); err != nil {
			return Counts{}, fmt.Errorf("store: count %s: %w", tgt.table, err)
		}
	}
	return c, nil
}

// LengthRange summarizes payload lengths of one table.
type LengthRange struct {
	Min int64   `json:"min" yaml:"min"`
	Max int64   `json:"max" yaml:"max"`
	Avg float64 `json:"avg" yaml:"avg"`
}

// Stats is an aggregate view of the database.
type Stats struct {
	Counts           Counts           `json:"counts" yaml:"counts"`
	ASCIILength      LengthRange      `json:"ascii_length" yaml:"ascii_length"`
	BinaryLength     LengthRange      `json:"binary_length" yaml:"binary_length"`
	BinaryBytes      int64            `json:"binary_bytes" yaml:"binary_bytes"`
	DiscardsByReason map[string]int64 `json:"discards_by_reason" yaml:"discards_by_reason"`
	Sessions         []Session        `json:"sessions" yaml:"sessions"`
}

// Session is one row of the sessions table.
type Session struct {
	ID           string     `json:"session_id" yaml:"session_id"`
	Remote       string     `json:"remote" yaml:"remote"`
	StartedAt    time.Time  `json:"started_at" yaml:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Outcome      string     `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	ASCII        int64      `json:"ascii" yaml:"ascii"`
	Binary       int64      `json:"binary" yaml:"binary"`
	Discarded    int64      `json:"discarded" yaml:"discarded"`
	BytesSpooled int64      `json:"bytes_spooled" yaml:"bytes_spooled"`
}

// Stats returns aggregate statistics. recentSessions bounds the number of
// session rows returned, newest first.
func (s *Store) Stats(ctx context.Context, recentSessions int) (*Stats, error) {
	counts, err := s.Counts(ctx, "")
	if err != nil {
		return nil, err
	}
	st := &Stats{Counts: counts, DiscardsByReason: map[string]int64{}}

	if st.ASCIILength, _, err = s.lengthRange(ctx, TableASCII); err != nil {
		return nil, err
	}
	if st.BinaryLength, st.BinaryBytes, err = s.lengthRange(ctx, TableBinary); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT discard_reason, COUNT(*) FROM msgdiscarded GROUP BY discard_reason`)
	if err != nil {
		return nil, fmt.Errorf("store: discard reasons: %w", err)
	}
	for rows.Next() {
		var reason string
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("store: discard reasons: %w", err)
		}
		st.DiscardsByReason[reason] = n
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("store: discard reasons: %w", err)
	}

	if st.Sessions, err = s.Sessions(ctx, recentSessions); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) lengthRange(ctx context.Context, table string) (LengthRange, int64, error) {
	var (
		minLen, maxLen, sum sql.NullInt64
		avg                 sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(payload_len), MAX(payload_len), AVG(payload_len), SUM(payload_len) FROM "+table).
		Scan(&minLen, &maxLen, &avg, &sum)
	if err != nil {
		return LengthRange{}, 0, fmt.Errorf("store: length range %s: %w", table, err)
	}
	return LengthRange{Min: minLen.Int64, Max: maxLen.Int64, Avg: avg.Float64}, sum.Int64, nil
}

// Sessions returns up to limit sessions, newest first. limit <= 0 returns all.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	q := `SELECT session_id, remote, started_at, ended_at, outcome,
	             ascii_count, binary_count, discard_count, bytes_spooled
	        FROM sessions ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: sessions: %w", err)
	}

	var out []Session
	for rows.Next() {
		var (
			sess           Session
			started        string
			ended, outcome sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.Remote, &started, &ended, &outcome,
			&sess.ASCII, &sess.Binary, &sess.Discarded, &sess.BytesSpooled); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("store: sessions: %w", err)
		}
		sess.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if ended.Valid {
			if t, err := time.Parse(time.RFC3339Nano, ended.String); err == nil {
				sess.EndedAt = &t
			}
		}
		sess.Outcome = outcome.String
		out = append(out, sess)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("store: sessions: %w", err)
	}
	return out, nil
}

// ASCIIRow is one row of msgascii.
type ASCIIRow struct {
	ID         int64
	Payload    string
	PayloadLen int64
	SessionID  string
}

// EachASCII calls fn for every ASCII row in id order, stopping at the first
// error fn returns.
func (s *Store) EachASCII(ctx context.Context, fn func(ASCIIRow) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, payload_len, session_id FROM msgascii ORDER BY id`)
	if err != nil {
		return fmt.Errorf("store: ascii rows: %w", err)
	}
	for rows.Next() {
		var r ASCIIRow
		if err := rows.Scan(&r.ID, &r.Payload, &r.PayloadLen, &r.SessionID); err != nil {
			_ = rows.Close()
			return fmt.Errorf("store: ascii rows: %w", err)
		}
		if err := fn(r); err != nil {
			_ = rows.Close()
			return err
		}
	}
	return closeRows(rows)
}

// BinaryRow is one row of msgbinary. Checksum is empty when NULL.
type BinaryRow struct {
	ID          int64
	PayloadPath string
	PayloadLen  int64
	Checksum    string
	SessionID   string
}

// BinaryRows returns every binary row in id order.
func (s *Store) BinaryRows(ctx context.Context) ([]BinaryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload_path, payload_len, checksum, session_id FROM msgbinary ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: binary rows: %w", err)
	}
	var out []BinaryRow
	for rows.Next() {
		var (
			r        BinaryRow
			checksum sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PayloadPath, &r.PayloadLen, &checksum, &r.SessionID); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("store: binary rows: %w", err)
		}
		r.Checksum = checksum.String
		out = append(out, r)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("store: binary rows: %w", err)
	}
	return out, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}
