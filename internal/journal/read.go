package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calmloop/settle/internal/driver"
)

// ReadInjections returns the injections matching f, each with its
// deliveries attached. Results are ordered deterministically per CP-7:
// ORDER BY seq ASC, token ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadInjections(ctx context.Context, f Filter) ([]driver.InjectionRecord, error) {
	where, params, err := f.compile()
	if err != nil {
		return nil, fmt.Errorf("read injections: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.token, i.seq, i.kind, i.detail, i.outcome, i.error
		FROM injections i`+where+`
		ORDER BY i.seq ASC, i.token COLLATE BINARY ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query injections: %w", err)
	}
	defer rows.Close()

	var injections []driver.InjectionRecord
	index := make(map[string]int)
	for rows.Next() {
		var rec driver.InjectionRecord
		if err := rows.Scan(&rec.Token, &rec.Seq, &rec.Kind, &rec.Detail, &rec.Outcome, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan injection: %w", err)
		}
		index[rec.Token] = len(injections)
		injections = append(injections, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate injections: %w", err)
	}

	if len(injections) == 0 {
		return []driver.InjectionRecord{}, nil
	}

	// Second query over the same filter attaches deliveries in seq order.
	drows, err := s.db.QueryContext(ctx, `
		SELECT d.token, d.seq, d."window", d.action, d.code, d.x, d.y
		FROM deliveries d
		JOIN injections i ON d.token = i.token`+where+`
		ORDER BY d.seq ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer drows.Close()

	for drows.Next() {
		var d driver.DeliveryRecord
		if err := drows.Scan(&d.Token, &d.Seq, &d.Window, &d.Action, &d.Code, &d.X, &d.Y); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		if i, ok := index[d.Token]; ok {
			injections[i].Deliveries = append(injections[i].Deliveries, d)
		}
	}
	if err := drows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}

	return injections, nil
}

// ReadInjection retrieves a single injection by token, with deliveries.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInjection(ctx context.Context, token string) (driver.InjectionRecord, error) {
	var rec driver.InjectionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT token, seq, kind, detail, outcome, error
		FROM injections
		WHERE token = ?
	`, token).Scan(&rec.Token, &rec.Seq, &rec.Kind, &rec.Detail, &rec.Outcome, &rec.Error)
	if err != nil {
		return driver.InjectionRecord{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT token, seq, "window", action, code, x, y
		FROM deliveries
		WHERE token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return driver.InjectionRecord{}, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d driver.DeliveryRecord
		if err := rows.Scan(&d.Token, &d.Seq, &d.Window, &d.Action, &d.Code, &d.X, &d.Y); err != nil {
			return driver.InjectionRecord{}, fmt.Errorf("scan delivery: %w", err)
		}
		rec.Deliveries = append(rec.Deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return driver.InjectionRecord{}, fmt.Errorf("iterate deliveries: %w", err)
	}

	return rec, nil
}

// ReadWaits returns the waits matching f in seq order.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadWaits(ctx context.Context, f WaitFilter) ([]driver.WaitRecord, error) {
	where, params, err := f.compile()
	if err != nil {
		return nil, fmt.Errorf("read waits: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT w.token, w.seq, w.kind, w.passes, w.outcome, w.stalled, w.elapsed_ms
		FROM waits w`+where+`
		ORDER BY w.seq ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query waits: %w", err)
	}
	defer rows.Close()

	waits := []driver.WaitRecord{}
	for rows.Next() {
		var rec driver.WaitRecord
		var stalled string
		var elapsedMS int64
		if err := rows.Scan(&rec.Token, &rec.Seq, &rec.Kind, &rec.Passes, &rec.Outcome, &stalled, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan wait: %w", err)
		}
		if stalled != "" {
			if err := json.Unmarshal([]byte(stalled), &rec.Stalled); err != nil {
				return nil, fmt.Errorf("unmarshal stalled for seq %d: %w", rec.Seq, err)
			}
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		waits = append(waits, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waits: %w", err)
	}

	return waits, nil
}

// CountInjections returns how many injections match f.
func (s *Store) CountInjections(ctx context.Context, f Filter) (int, error) {
	where, params, err := f.compile()
	if err != nil {
		return 0, fmt.Errorf("count injections: %w", err)
	}

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM injections i`+where,
		params...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count injections: %w", err)
	}
	return count, nil
}

// CountDeliveries returns how many deliveries landed on the named window,
// or on any window when name is empty.
func (s *Store) CountDeliveries(ctx context.Context, window string) (int, error) {
	var count int
	var err error
	if window == "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM deliveries`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM deliveries WHERE "window" = ?`, window).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return count, nil
}
