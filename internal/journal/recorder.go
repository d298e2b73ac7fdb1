package journal

import (
	"context"
	"log/slog"

	"github.com/calmloop/settle/internal/driver"
)

// Recorder adapts a Store to driver.Recorder. Driver callbacks cannot
// return errors, so write failures are logged and the run continues.
type Recorder struct {
	store *Store
	ctx   context.Context
}

// NewRecorder creates a recorder appending to store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store, ctx: context.Background()}
}

// RecordInjection implements driver.Recorder.
func (r *Recorder) RecordInjection(rec driver.InjectionRecord) {
	if err := r.store.AppendInjection(r.ctx, rec); err != nil {
		slog.Error("journal injection write failed", "token", rec.Token, "err", err)
	}
}

// RecordWait implements driver.Recorder.
func (r *Recorder) RecordWait(rec driver.WaitRecord) {
	if err := r.store.AppendWait(r.ctx, rec); err != nil {
		slog.Error("journal wait write failed", "seq", rec.Seq, "err", err)
	}
}
