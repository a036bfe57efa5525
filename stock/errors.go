/*
errors.go - Error types for the fulfillment ledger

PURPOSE:
  Sentinel errors for errors.Is matching plus structured errors carrying the
  context needed to diagnose a failed reconciliation. None of these leave
  the ledger in a partial state: the reconciler runs inside a storage
  transaction and is safe to re-run.

ERROR CATEGORIES:
  1. Validation errors - reservation exceeds availability, archival without
     return quantities. Surfaced to the caller before any commit.
  2. Store errors - persistence failures, wrapped with %w by the stores.

SEE ALSO:
  - reconciler.go: raises the validation errors
  - pricing: delivery pricing has its own error set (degrade-to-zero policy)
*/
package stock

import (
	"errors"
	"fmt"

	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/order"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a reservation increase exceeds
	// the product's available counter. Never silently clamped.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReturnQuantitiesRequired is returned when an order is archived with
	// no prior warehouse receipt and no explicit return quantities. Assuming
	// a full return here could misstate stock, so the caller must decide.
	ErrReturnQuantitiesRequired = errors.New("return quantities required for archival")

	// ErrEntryNotFound is returned by stores when updating or deleting a
	// ledger row that does not exist.
	ErrEntryNotFound = errors.New("ledger entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports a reservation that cannot be covered.
type InsufficientStockError struct {
	OrderID   order.ID
	ProductID catalog.ProductID
	Requested int // the reservation increase, not the full quantity
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s on order %s: requested %d, available %d",
		e.ProductID, e.OrderID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// IsClientError returns true if the error is a validation failure the
// caller can correct, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrReturnQuantitiesRequired)
}
