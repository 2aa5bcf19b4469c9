package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/chord/internal/ir"
)

const runColumns = `id, seq, kind, target, ir_hash, status, error, result, result_hash`

// ReadRuns returns the most recent limit runs, ordered seq ASC, id ASC
// COLLATE BINARY. A limit of zero or less returns every run.
//
// Returns an empty slice (not nil) when the log is empty.
func (s *Store) ReadRuns(ctx context.Context, limit int) ([]ir.RunRecord, error) {
	return s.QueryRuns(ctx, Query{Limit: limit})
}

// ReadRunsFor returns every run of one kind and target in seq order.
func (s *Store) ReadRunsFor(ctx context.Context, kind ir.RunKind, target string) ([]ir.RunRecord, error) {
	return s.QueryRuns(ctx, Query{Filter: ByTarget(kind, target)})
}

// ReadRun retrieves a single run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// LastSeq returns the highest seq in the log, or 0 when it is empty. The
// runtime clock resumes from it so seqs stay increasing across processes.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// CountRuns returns the number of runs in the log.
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ir.RunRecord, error) {
	var (
		rec        ir.RunRecord
		kind       string
		resultJSON string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&kind,
		&rec.Target,
		&rec.DocHash,
		&rec.Status,
		&rec.Error,
		&resultJSON,
		&rec.ResultHash,
	)
	if err == sql.ErrNoRows {
		return ir.RunRecord{}, err
	}
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	rec.Kind = ir.RunKind(kind)
	rec.Result, err = unmarshalResult(resultJSON)
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("run %s: %w", rec.ID, err)
	}
	return rec, nil
}
