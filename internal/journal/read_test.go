package journal

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/calmloop/settle/internal/driver"
)

func TestReadInjections_EmptyDatabase(t *testing.T) {
	s := createTestJournal(t)

	got, err := s.ReadInjections(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ReadInjections() failed: %v", err)
	}
	if got == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, expected 0", len(got))
	}
}

func TestReadInjections_OrderedBySeq(t *testing.T) {
	s := createTestJournal(t)
	ctx := context.Background()

	// Insert out of order; reads must come back in seq order.
	for _, rec := range []driver.InjectionRecord{
		testInjection("tok-3", 30, driver.KindText),
		testInjection("tok-1", 10, driver.KindPointer),
		testInjection("tok-2", 20, driver.KindKey),
	} {
		if err := s.AppendInjection(ctx, rec); err != nil {
			t.Fatalf("AppendInjection() failed: %v", err)
		}
	}

	got, err := s.ReadInjections(ctx, Filter{})
	if err != nil {
		t.Fatalf("ReadInjections() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, expected 3", len(got))
	}
	for i, token := range []string{"tok-1", "tok-2", "tok-3"} {
		if got[i].Token != token {
			t.Errorf("got[%d].Token = %q, expected %q", i, got[i].Token, token)
		}
	}
}

func TestReadInjections_AttachesOwnDeliveries(t *testing.T) {
	s := createTestJournal(t)
	ctx := context.Background()

	first := testInjection("tok-1", 1, driver.KindPointer)
	first.Deliveries = []driver.DeliveryRecord{
		{Token: "tok-1", Seq: 2, Window: "panel", Action: "outside"},
		{Token: "tok-1", Seq: 3, Window: "dialog", Action: "down"},
	}
	second := testInjection("tok-2", 5, driver.KindKey)
	second.Deliveries = []driver.DeliveryRecord{
		{Token: "tok-2", Seq: 6, Window: "dialog", Action: "down", Code: "a"},
	}
	for _, rec := range []driver.InjectionRecord{first, second} {
		if err := s.AppendInjection(ctx, rec); err != nil {
			t.Fatalf("AppendInjection() failed: %v", err)
		}
	}

	got, err := s.ReadInjections(ctx, Filter{})
	if err != nil {
		t.Fatalf("ReadInjections() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, expected 2", len(got))
	}
	if len(got[0].Deliveries) != 2 {
		t.Errorf("tok-1 deliveries = %d, expected 2", len(got[0].Deliveries))
	}
	if len(got[1].Deliveries) != 1 {
		t.Errorf("tok-2 deliveries = %d, expected 1", len(got[1].Deliveries))
	}
	if got[0].Deliveries[0].Window != "panel" || got[0].Deliveries[1].Window != "dialog" {
		t.Errorf("tok-1 deliveries out of seq order: %+v", got[0].Deliveries)
	}
	if got[1].Deliveries[0].Code != "a" {
		t.Errorf("tok-2 delivery code = %q, expected %q", got[1].Deliveries[0].Code, "a")
	}
}

func TestReadInjection_ByToken(t *testing.T) {
	s := createTestJournal(t)
	ctx := context.Background()

	rec := testInjection("tok-1", 1, driver.KindPointer)
	rec.Deliveries = []driver.DeliveryRecord{
		{Token: "tok-1", Seq: 2, Window: "dialog", Action: "down", X: 50, Y: 50},
	}
	if err := s.AppendInjection(ctx, rec); err != nil {
		t.Fatalf("AppendInjection() failed: %v", err)
	}

	got, err := s.ReadInjection(ctx, "tok-1")
	if err != nil {
		t.Fatalf("ReadInjection() failed: %v", err)
	}
	if got.Kind != driver.KindPointer || len(got.Deliveries) != 1 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Deliveries[0].X != 50 || got.Deliveries[0].Y != 50 {
		t.Errorf("delivery coordinates = (%g,%g), expected (50,50)",
			got.Deliveries[0].X, got.Deliveries[0].Y)
	}

	if _, err := s.ReadInjection(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing token error = %v, expected sql.ErrNoRows", err)
	}
}

func TestReadWaits_RoundTrip(t *testing.T) {
	s := createTestJournal(t)
	ctx := context.Background()

	rec := driver.WaitRecord{
		Token:   "tok-1",
		Seq:     7,
		Kind:    driver.WaitUntilIdleKind,
		Passes:  3,
		Outcome: driver.OutcomeIdleTimeout,
		Stalled: []string{"anim", "net"},
		Elapsed: 120 * time.Millisecond,
	}
	if err := s.AppendWait(ctx, rec); err != nil {
		t.Fatalf("AppendWait() failed: %v", err)
	}

	got, err := s.ReadWaits(ctx, WaitFilter{})
	if err != nil {
		t.Fatalf("ReadWaits() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, expected 1", len(got))
	}
	w := got[0]
	if w.Passes != 3 || w.Outcome != driver.OutcomeIdleTimeout {
		t.Errorf("unexpected wait: %+v", w)
	}
	if len(w.Stalled) != 2 || w.Stalled[0] != "anim" || w.Stalled[1] != "net" {
		t.Errorf("stalled = %v, expected [anim net]", w.Stalled)
	}
	if w.Elapsed != 120*time.Millisecond {
		t.Errorf("elapsed = %v, expected 120ms", w.Elapsed)
	}
}

func TestCountInjections(t *testing.T) {
	s := createTestJournal(t)
	ctx := context.Background()

	for i, kind := range []string{driver.KindPointer, driver.KindPointer, driver.KindText} {
		rec := testInjection(string(rune('a'+i)), int64(i+1), kind)
		if err := s.AppendInjection(ctx, rec); err != nil {
			t.Fatalf("AppendInjection() failed: %v", err)
		}
	}

	total, err := s.CountInjections(ctx, Filter{})
	if err != nil {
		t.Fatalf("CountInjections() failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, expected 3", total)
	}

	pointers, err := s.CountInjections(ctx, Filter{Kind: driver.KindPointer})
	if err != nil {
		t.Fatalf("CountInjections(pointer) failed: %v", err)
	}
	if pointers != 2 {
		t.Errorf("pointers = %d, expected 2", pointers)
	}
}

func TestCountDeliveries_ByWindow(t *testing.T) {
	s := createTestJournal(t)
	ctx := context.Background()

	rec := testInjection("tok-1", 1, driver.KindPointer)
	rec.Deliveries = []driver.DeliveryRecord{
		{Token: "tok-1", Seq: 2, Window: "dialog", Action: "down"},
		{Token: "tok-1", Seq: 3, Window: "panel", Action: "outside"},
	}
	if err := s.AppendInjection(ctx, rec); err != nil {
		t.Fatalf("AppendInjection() failed: %v", err)
	}

	all, err := s.CountDeliveries(ctx, "")
	if err != nil {
		t.Fatalf("CountDeliveries() failed: %v", err)
	}
	if all != 2 {
		t.Errorf("all = %d, expected 2", all)
	}

	dialog, err := s.CountDeliveries(ctx, "dialog")
	if err != nil {
		t.Fatalf("CountDeliveries(dialog) failed: %v", err)
	}
	if dialog != 1 {
		t.Errorf("dialog = %d, expected 1", dialog)
	}
}
