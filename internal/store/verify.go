package store

import (
	"context"
	"fmt"

	"github.com/roach88/chord/internal/ir"
)

// Mismatch describes a stored run whose result no longer hashes to its
// recorded result_hash.
type Mismatch struct {
	RunID    string
	Seq      int64
	Recorded string
	Computed string
}

// VerifyRuns recomputes the result hash of every run and reports the runs
// whose stored result does not match. The returned slice is empty, not nil,
// when the log is intact.
func (s *Store) VerifyRuns(ctx context.Context) ([]Mismatch, error) {
	runs, err := s.ReadRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("verify runs: %w", err)
	}

	mismatches := []Mismatch{}
	for _, rec := range runs {
		computed, err := ir.ResultHash(rec.Result)
		if err != nil {
			return nil, fmt.Errorf("verify run %s: %w", rec.ID, err)
		}
		if computed != rec.ResultHash {
			mismatches = append(mismatches, Mismatch{
				RunID:    rec.ID,
				Seq:      rec.Seq,
				Recorded: rec.ResultHash,
				Computed: computed,
			})
		}
	}
	return mismatches, nil
}

// ListTargets returns the distinct "kind:target" pairs in the log, sorted.
func (s *Store) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT kind || ':' || target AS t
		FROM runs
		ORDER BY t COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	targets := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}
	return targets, nil
}
