/*
store.go - Persistence interfaces for the ledger and product counters

PURPOSE:
  Defines the boundary between the reconciler/projector and the database.
  Unlike an audit ledger, this ledger is CONVERGED, not appended: the
  reconciler updates rows in place and deletes rows whose product left the
  order, so the interface carries Insert/Update/Delete keyed by the natural
  (order, product, kind) triple.

COUNTER CONTRACT:
  AdjustCounters must be a single conditional atomic increment at the
  storage layer - never read-modify-write in application code - and must
  clamp both counters at zero. This is the only place concurrent orders
  touching the same product can race.

TRANSACTIONS:
  WithTx gives the reconciler the same transaction boundary as the order
  save that triggered it. If fn returns an error the whole reconciliation
  rolls back; re-running it later converges to the same state.

IMPLEMENTATIONS:
  - store/sqlite: production store (shared with orders and catalog)
  - stock/store:  in-memory store for tests

SEE ALSO:
  - reconciler.go: the only writer of ledger rows
  - projector.go:  the only caller of AdjustCounters
*/
package stock

import (
	"context"

	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/order"
)

// =============================================================================
// ENTRY STORE - Ledger row persistence keyed by (order, product, kind)
// =============================================================================

type EntryStore interface {
	// EntriesByOrder returns every ledger row for the order, any kind.
	EntriesByOrder(ctx context.Context, orderID order.ID) ([]Entry, error)

	// InsertEntry persists a new row. Fails if the natural key exists.
	InsertEntry(ctx context.Context, e Entry) error

	// UpdateEntry rewrites the row with e's natural key in place,
	// preserving its identity. Returns ErrEntryNotFound if absent.
	UpdateEntry(ctx context.Context, e Entry) error

	// DeleteEntry removes the row. Returns ErrEntryNotFound if absent.
	DeleteEntry(ctx context.Context, key EntryKey) error
}

// =============================================================================
// COUNTER STORE - Atomic product counter adjustments
// =============================================================================

type CounterStore interface {
	// AdjustCounters applies both deltas to the product's counters as one
	// atomic increment relative to the stored values, clamping each result
	// at zero. Implementations must not load-then-store.
	AdjustCounters(ctx context.Context, productID catalog.ProductID, stockDelta, availableDelta int) error

	// AvailableQuantity reads the product's available counter, with
	// row-level locking where the backend supports it.
	AvailableQuantity(ctx context.Context, productID catalog.ProductID) (int, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is what a reconciliation pass operates on. Inside WithTx both
// facets hit the same database transaction.
type Store interface {
	EntryStore
	CounterStore
}

// TxStore wraps Store with a transaction boundary.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. Rolled back if fn errors.
	WithTx(ctx context.Context, fn func(Store) error) error
}
