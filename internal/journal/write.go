package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calmloop/settle/internal/driver"
)

// AppendInjection writes one completed injection and all its deliveries in
// a single transaction (CP-6). Uses ON CONFLICT(token) DO NOTHING for
// idempotency - a token already journaled is silently ignored, and its
// deliveries are assumed to have committed with it.
func (s *Store) AppendInjection(ctx context.Context, rec driver.InjectionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append injection: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO injections (token, seq, kind, detail, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		rec.Token,
		rec.Seq,
		rec.Kind,
		rec.Detail,
		rec.Outcome,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("append injection: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append injection: rows affected: %w", err)
	}
	if affected == 0 {
		return nil
	}

	for _, d := range rec.Deliveries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deliveries (token, seq, "window", action, code, x, y)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(token, seq) DO NOTHING
		`,
			d.Token,
			d.Seq,
			d.Window,
			d.Action,
			d.Code,
			d.X,
			d.Y,
		)
		if err != nil {
			return fmt.Errorf("append delivery: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append injection: commit: %w", err)
	}

	return nil
}

// AppendWait writes one completed wait. Uses ON CONFLICT(seq) DO NOTHING
// for idempotency. The stalled list is stored as a JSON array.
func (s *Store) AppendWait(ctx context.Context, rec driver.WaitRecord) error {
	stalled := ""
	if len(rec.Stalled) > 0 {
		b, err := json.Marshal(rec.Stalled)
		if err != nil {
			return fmt.Errorf("append wait: marshal stalled: %w", err)
		}
		stalled = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO waits (token, seq, kind, passes, outcome, stalled, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		rec.Token,
		rec.Seq,
		rec.Kind,
		rec.Passes,
		rec.Outcome,
		stalled,
		rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("append wait: %w", err)
	}

	return nil
}
