package store

import (
	"context"
	"fmt"

	"github.com/roach88/chord/internal/ir"
)

// WriteRun appends a run record. Uses ON CONFLICT(id) DO NOTHING, so
// writing the same run twice is a no-op. The result is stored as canonical
// JSON.
func (s *Store) WriteRun(ctx context.Context, rec ir.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("write run: empty id")
	}
	resultJSON, err := marshalResult(rec.Result)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, kind, target, ir_hash, status, error, result, result_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		string(rec.Kind),
		rec.Target,
		rec.DocHash,
		rec.Status,
		rec.Error,
		resultJSON,
		rec.ResultHash,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}
