/*
reconciler.go - Converges ledger rows with an order's current state

PURPOSE:
  Reconcile is invoked after every persisted change to an order's status,
  logistics sub-state, warehouse receipt, or item set. It is a convergence
  function, not an event replay: it computes the DESIRED set of ledger rows
  from the order snapshot, diffs against the existing rows, and performs the
  minimum creates/updates/deletes - so calling it redundantly is a no-op.

ELIGIBILITY:
  The issue/return conditions are evaluated upfront as two independent
  predicates rather than scattered if/else chains, which keeps the state
  space exhaustively testable:

    goodsIssued   = logistics == shipped OR status in {in_progress, archived}
    goodsReturned = status == archived   OR warehouse receipt is set

  Reservation rows exist for every active order with items. Declined orders
  and orders with no items release everything.

RETURN QUANTITIES:
  Returns default to the full ordered quantity. An explicit override map
  (partial returns: damaged/lost items kept out of stock) wins per product;
  products missing from the override still return in full, an override of 0
  keeps the product out entirely. Archiving with neither a prior warehouse
  receipt nor an override is an operator error - full return is not assumed.

SNAPSHOTS:
  Callers pass the prior and next order snapshots explicitly instead of
  stashing "previous status" on a shared object between save phases. prev
  is purely an optimization; prev == nil always forces a full pass.

SEE ALSO:
  - projector.go: applied on every row transition the diff performs
  - store.go: WithTx puts the whole pass in the caller's tx boundary
*/
package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/order"
)

// =============================================================================
// SNAPSHOT - Reconciliation input
// =============================================================================

// Line is one (product, quantity) pair of an order's item set. Quantities
// are non-negative in the domain; the reconciler applies signs per kind.
type Line struct {
	ProductID catalog.ProductID
	Quantity  int
}

// Snapshot is everything the reconciler reads from an order.
type Snapshot struct {
	OrderID             order.ID
	Status              order.Status
	Logistics           order.LogisticsState
	WarehouseReceivedAt *time.Time
	Items               []Line

	// ReturnQuantities overrides the returned quantity per product.
	// nil means "no override supplied"; an empty non-nil map is an explicit
	// "nothing came back" statement.
	ReturnQuantities map[catalog.ProductID]int
}

// SnapshotOf builds a Snapshot from an order. Items referencing deleted
// products (empty ProductID) are skipped: they can no longer move stock.
func SnapshotOf(o *order.Order, returnQuantities map[catalog.ProductID]int) Snapshot {
	s := Snapshot{
		OrderID:             o.ID,
		Status:              o.Status,
		Logistics:           o.Logistics,
		WarehouseReceivedAt: o.WarehouseReceivedAt,
		ReturnQuantities:    returnQuantities,
	}
	for _, it := range o.Items {
		if it.ProductID == "" {
			continue
		}
		s.Items = append(s.Items, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return s
}

// =============================================================================
// RECONCILER
// =============================================================================

type Reconciler struct {
	store     TxStore
	projector Projector
}

func NewReconciler(store TxStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile converges the order's ledger rows inside its own transaction.
// prev may be nil (forces a full pass). Safe to call redundantly.
func (r *Reconciler) Reconcile(ctx context.Context, prev *Snapshot, next Snapshot) error {
	if prev != nil && !ledgerRelevant(*prev, next) {
		return nil
	}
	return r.store.WithTx(ctx, func(s Store) error {
		return r.ReconcileIn(ctx, s, next)
	})
}

// ReconcileIn runs the convergence pass on an already-open transaction.
// Used when the order save and the reconciliation share one tx boundary.
func (r *Reconciler) ReconcileIn(ctx context.Context, s Store, next Snapshot) error {
	existing, err := s.EntriesByOrder(ctx, next.OrderID)
	if err != nil {
		return fmt.Errorf("load ledger for order %s: %w", next.OrderID, err)
	}
	have := make(map[EntryKey]Entry, len(existing))
	for _, e := range existing {
		have[e.Key()] = e
	}

	totals := productTotals(next.Items)

	// Declined orders and empty orders release everything.
	if next.Status == order.StatusDeclined || len(totals) == 0 {
		return r.deleteAll(ctx, s, have)
	}

	desired, err := desiredEntries(next, totals)
	if err != nil {
		return err
	}

	if err := r.checkAvailability(ctx, s, next.OrderID, have, desired); err != nil {
		return err
	}

	return r.applyDiff(ctx, s, have, desired)
}

// =============================================================================
// DESIRED STATE
// =============================================================================

// productTotals aggregates the item set per product. Products whose summed
// quantity is <= 0 are dropped, which the diff treats as delete-if-exists.
func productTotals(items []Line) map[catalog.ProductID]int {
	totals := make(map[catalog.ProductID]int)
	for _, it := range items {
		totals[it.ProductID] += it.Quantity
	}
	for id, qty := range totals {
		if qty <= 0 {
			delete(totals, id)
		}
	}
	return totals
}

func desiredEntries(next Snapshot, totals map[catalog.ProductID]int) (map[EntryKey]Entry, error) {
	goodsIssued := next.Logistics == order.LogisticsShipped ||
		next.Status == order.StatusInProgress ||
		next.Status == order.StatusArchived
	goodsReturned := next.Status == order.StatusArchived ||
		next.WarehouseReceivedAt != nil

	// Archival with no receipt and no override: the operator must say what
	// came back. Checked before any mutation so nothing is committed.
	if next.Status == order.StatusArchived &&
		next.WarehouseReceivedAt == nil &&
		next.ReturnQuantities == nil {
		return nil, fmt.Errorf("order %s: %w", next.OrderID, ErrReturnQuantitiesRequired)
	}

	desired := make(map[EntryKey]Entry)
	add := func(e Entry) { desired[e.Key()] = e }

	for productID, qty := range totals {
		// Reservation: held but not yet physically removed. Always present
		// while the order is active.
		add(Entry{
			OrderID: next.OrderID, ProductID: productID, Kind: KindReservation,
			Delta: -qty, AffectsStock: false, AffectsAvailable: true, Applied: true,
		})

		if goodsIssued {
			add(Entry{
				OrderID: next.OrderID, ProductID: productID, Kind: KindIssue,
				Delta: -qty, AffectsStock: true, AffectsAvailable: false, Applied: true,
			})
		}

		if goodsReturned {
			returned := qty
			if next.ReturnQuantities != nil {
				if override, ok := next.ReturnQuantities[productID]; ok {
					returned = override
				}
			}
			if returned > 0 {
				add(Entry{
					OrderID: next.OrderID, ProductID: productID, Kind: KindReturn,
					Delta: returned, AffectsStock: true, AffectsAvailable: true, Applied: true,
				})
			}
		}
	}

	return desired, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// checkAvailability rejects reservation INCREASES that exceed the product's
// available counter, before any ledger mutation. Existing reservations
// already hold their quantity, so only the growth is checked.
func (r *Reconciler) checkAvailability(ctx context.Context, s Store, orderID order.ID, have, desired map[EntryKey]Entry) error {
	for _, key := range sortedKeys(desired) {
		want := desired[key]
		if want.Kind != KindReservation {
			continue
		}
		heldBefore := 0
		if prev, ok := have[key]; ok && prev.Applied {
			heldBefore = -prev.Delta
		}
		increase := -want.Delta - heldBefore
		if increase <= 0 {
			continue
		}
		available, err := s.AvailableQuantity(ctx, want.ProductID)
		if err != nil {
			return fmt.Errorf("read availability of product %s: %w", want.ProductID, err)
		}
		if available < increase {
			return &InsufficientStockError{
				OrderID:   orderID,
				ProductID: want.ProductID,
				Requested: increase,
				Available: available,
			}
		}
	}
	return nil
}

// =============================================================================
// DIFF APPLICATION
// =============================================================================

// applyDiff converges have -> desired with the minimum set of writes.
// Rows whose product left the order have no desired counterpart of ANY kind
// and fall into the delete branch, which also covers orphan cleanup after
// item replacement.
func (r *Reconciler) applyDiff(ctx context.Context, s Store, have, desired map[EntryKey]Entry) error {
	for _, key := range sortedKeys(desired) {
		want := desired[key]
		if prev, ok := have[key]; ok {
			if sameEffect(prev, want) {
				continue
			}
			// Update in place to preserve row identity; a delete+create
			// would churn the ledger for a simple quantity change.
			if err := s.UpdateEntry(ctx, want); err != nil {
				return fmt.Errorf("update %s entry for product %s: %w", key.Kind, key.ProductID, err)
			}
			if err := r.projector.Apply(ctx, s, &prev, &want); err != nil {
				return err
			}
			continue
		}
		if err := s.InsertEntry(ctx, want); err != nil {
			return fmt.Errorf("insert %s entry for product %s: %w", key.Kind, key.ProductID, err)
		}
		if err := r.projector.Apply(ctx, s, nil, &want); err != nil {
			return err
		}
	}

	for _, key := range sortedKeys(have) {
		if _, ok := desired[key]; ok {
			continue
		}
		prev := have[key]
		if err := s.DeleteEntry(ctx, key); err != nil {
			return fmt.Errorf("delete %s entry for product %s: %w", key.Kind, key.ProductID, err)
		}
		if err := r.projector.Apply(ctx, s, &prev, nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) deleteAll(ctx context.Context, s Store, have map[EntryKey]Entry) error {
	for _, key := range sortedKeys(have) {
		prev := have[key]
		if err := s.DeleteEntry(ctx, key); err != nil {
			return fmt.Errorf("release %s entry for product %s: %w", key.Kind, key.ProductID, err)
		}
		if err := r.projector.Apply(ctx, s, &prev, nil); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// ledgerRelevant reports whether anything the ledger derives from changed.
func ledgerRelevant(prev, next Snapshot) bool {
	if prev.Status != next.Status || prev.Logistics != next.Logistics {
		return true
	}
	if (prev.WarehouseReceivedAt == nil) != (next.WarehouseReceivedAt == nil) {
		return true
	}
	if next.ReturnQuantities != nil {
		return true
	}
	if len(prev.Items) != len(next.Items) {
		return true
	}
	prevTotals := productTotals(prev.Items)
	nextTotals := productTotals(next.Items)
	if len(prevTotals) != len(nextTotals) {
		return true
	}
	for id, qty := range nextTotals {
		if prevTotals[id] != qty {
			return true
		}
	}
	return false
}

// sortedKeys yields deterministic write order: kind-major, then product.
func sortedKeys(m map[EntryKey]Entry) []EntryKey {
	keys := make([]EntryKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	rank := make(map[Kind]int, len(kindOrder))
	for i, k := range kindOrder {
		rank[k] = i
	}
	sort.Slice(keys, func(i, j int) bool {
		if rank[keys[i].Kind] != rank[keys[j].Kind] {
			return rank[keys[i].Kind] < rank[keys[j].Kind]
		}
		return keys[i].ProductID < keys[j].ProductID
	})
	return keys
}
