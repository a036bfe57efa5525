package stock_test

import (
	"context"
	"testing"

	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/stock"
	"github.com/warp/rental-engine/stock/store"
)

func entry(productID string, kind stock.Kind, delta int, affectsStock, affectsAvailable bool) stock.Entry {
	return stock.Entry{
		OrderID:          "ord-1",
		ProductID:        catalog.ProductID(productID),
		Kind:             kind,
		Delta:            delta,
		AffectsStock:     affectsStock,
		AffectsAvailable: affectsAvailable,
		Applied:          true,
	}
}

func TestProjector_Create_AppliesFullContribution(t *testing.T) {
	mem := store.NewMemory()
	mem.SetCounters("chair", 10, 10)
	var p stock.Projector

	e := entry("chair", stock.KindReservation, -4, false, true)
	if err := p.Apply(context.Background(), mem, nil, &e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	onHand, available := mem.Counters("chair")
	if onHand != 10 || available != 6 {
		t.Errorf("expected (10, 6), got (%d, %d)", onHand, available)
	}
}

func TestProjector_Update_AppliesDeltaOnly(t *testing.T) {
	mem := store.NewMemory()
	mem.SetCounters("chair", 10, 6)
	var p stock.Projector

	prev := entry("chair", stock.KindReservation, -4, false, true)
	cur := entry("chair", stock.KindReservation, -7, false, true)
	if err := p.Apply(context.Background(), mem, &prev, &cur); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, available := mem.Counters("chair")
	if available != 3 {
		t.Errorf("expected available 3, got %d", available)
	}
}

func TestProjector_Delete_ReversesContribution(t *testing.T) {
	mem := store.NewMemory()
	mem.SetCounters("chair", 6, 6)
	var p stock.Projector

	prev := entry("chair", stock.KindIssue, -4, true, false)
	if err := p.Apply(context.Background(), mem, &prev, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	onHand, available := mem.Counters("chair")
	if onHand != 10 {
		t.Errorf("expected on-hand 10 after reversal, got %d", onHand)
	}
	if available != 6 {
		t.Errorf("expected available untouched at 6, got %d", available)
	}
}

func TestProjector_ProductMove_ReversesOldAppliesNew(t *testing.T) {
	// An entry whose product changed is a full reversal on the old product
	// and a full application on the new one.

	mem := store.NewMemory()
	mem.SetCounters("chair", 10, 6)
	mem.SetCounters("table", 5, 5)
	var p stock.Projector

	prev := entry("chair", stock.KindReservation, -4, false, true)
	cur := entry("table", stock.KindReservation, -4, false, true)
	if err := p.Apply(context.Background(), mem, &prev, &cur); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, chairAvail := mem.Counters("chair")
	_, tableAvail := mem.Counters("table")
	if chairAvail != 10 {
		t.Errorf("expected chair availability restored to 10, got %d", chairAvail)
	}
	if tableAvail != 1 {
		t.Errorf("expected table availability 1, got %d", tableAvail)
	}
}

func TestProjector_UnappliedEntry_ContributesNothing(t *testing.T) {
	mem := store.NewMemory()
	mem.SetCounters("chair", 10, 10)
	var p stock.Projector

	e := entry("chair", stock.KindReservation, -4, false, true)
	e.Applied = false
	if err := p.Apply(context.Background(), mem, nil, &e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	onHand, available := mem.Counters("chair")
	if onHand != 10 || available != 10 {
		t.Errorf("unapplied entry moved counters: (%d, %d)", onHand, available)
	}
}

func TestProjector_CountersNeverGoNegative(t *testing.T) {
	// Reversing a reservation that was clamped on the way down must not
	// push availability below zero, and over-reversal clamps at zero too.

	mem := store.NewMemory()
	mem.SetCounters("chair", 2, 2)
	var p stock.Projector

	e := entry("chair", stock.KindIssue, -5, true, false)
	if err := p.Apply(context.Background(), mem, nil, &e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	onHand, _ := mem.Counters("chair")
	if onHand != 0 {
		t.Errorf("expected on-hand clamped at 0, got %d", onHand)
	}
}

func TestProjector_BothNil_NoOp(t *testing.T) {
	mem := store.NewMemory()
	var p stock.Projector
	if err := p.Apply(context.Background(), mem, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
