/*
Package stock implements the order fulfillment ledger.

PURPOSE:
  Every order's effect on inventory is recorded as a small set of signed
  quantity adjustments — the ledger. Product counters (on-hand, available)
  are derived from these entries by the projector, and the reconciler keeps
  the entries converged with the order's current state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: one ledger row per (order, product, kind)
  - Kind: reservation | issue | return
  - Contribution: what an entry currently adds to each counter

THE THREE KINDS:
  Reservation: quantity held for an order, not yet physically out.
               delta = -qty, affects available only.
  Issue:       goods left the warehouse. delta = -qty, affects on-hand only.
  Return:      goods came back. delta = +qty, affects both counters.

IDENTITY INVARIANT:
  At most one entry per (order, product, kind). The reconciler treats this
  triple as the natural key and diffs against it; the stores enforce it with
  a unique index.

SEE ALSO:
  - reconciler.go: desired-state diffing per order
  - projector.go: counter maintenance from entry changes
*/
package stock

import (
	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/order"
)

// =============================================================================
// TRANSACTION KIND
// =============================================================================

type Kind string

const (
	KindReservation Kind = "reservation"
	KindIssue       Kind = "issue"
	KindReturn      Kind = "return"
)

// kindOrder fixes a deterministic processing order for diffs and tests.
var kindOrder = []Kind{KindReservation, KindIssue, KindReturn}

// =============================================================================
// ENTRY - One ledger row
// =============================================================================

// Entry is a signed quantity adjustment for one (order, product, kind).
// Entries are created, updated and deleted exclusively by the Reconciler.
type Entry struct {
	OrderID   order.ID
	ProductID catalog.ProductID
	Kind      Kind

	// Signed quantity. The reconciler applies the sign per kind; callers
	// always work with non-negative domain quantities.
	Delta int

	// Effect flags, independent of each other.
	AffectsStock     bool // contributes to on-hand
	AffectsAvailable bool // contributes to available

	// Applied=false entries are pre-staged and contribute zero to any
	// counter until flipped on.
	Applied bool
}

// EntryKey is the natural key of a ledger row.
type EntryKey struct {
	OrderID   order.ID
	ProductID catalog.ProductID
	Kind      Kind
}

func (e Entry) Key() EntryKey {
	return EntryKey{OrderID: e.OrderID, ProductID: e.ProductID, Kind: e.Kind}
}

// Contribution returns what the entry currently adds to the on-hand and
// available counters. Unapplied entries contribute zero to both.
func (e Entry) Contribution() (stockDelta, availableDelta int) {
	if !e.Applied {
		return 0, 0
	}
	if e.AffectsStock {
		stockDelta = e.Delta
	}
	if e.AffectsAvailable {
		availableDelta = e.Delta
	}
	return stockDelta, availableDelta
}

// sameEffect reports whether two entries have identical persisted fields,
// used by the diff step to avoid no-op updates.
func sameEffect(a, b Entry) bool {
	return a.Delta == b.Delta &&
		a.AffectsStock == b.AffectsStock &&
		a.AffectsAvailable == b.AffectsAvailable &&
		a.Applied == b.Applied
}
