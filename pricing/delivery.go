/*
delivery.go - Transport allocation and delivery cost

PURPOSE:
  Given the shipment volume each transport class must carry and a single
  round-trip distance, allocate the minimum number of vehicles and price
  them: each dispatched unit costs its class's fixed per-dispatch cost plus
  cost-per-km times the distance.

ALLOCATION:
  Classes are processed by capacity DESCENDING. Each class dispatches
  ceil(required / capacity) units; the over-allocation slack
  (units * capacity - required) is donated to the still-unassigned volume of
  smaller classes before they are processed. Small loads therefore ride in
  the spare space of larger vehicles instead of dispatching their own, which
  never allocates more units than pricing each class independently would.

ROUNDING:
  The per-unit cost is rounded to 2 decimals BEFORE multiplying by the unit
  count, and the grand total is re-rounded.

ERRORS:
  A class with zero or negative capacity, or a requirement with negative
  volume, is a data error: the allocator refuses rather than producing a
  zero-cost dispatch. Callers apply the degrade-to-zero policy.

SEE ALSO:
  - order/totals.go: builds requirements from items and applies the
    degrade-to-zero policy on failure
*/
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/catalog"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoCapacity is returned when a required transport class has no
	// positive per-unit capacity configured.
	ErrNoCapacity = errors.New("transport class has no capacity")

	// ErrNoVolume is returned when a requirement carries a negative volume,
	// or by callers when a product has no per-unit volume configured.
	ErrNoVolume = errors.New("missing shipment volume")
)

// TransportDataError reports which class's configuration is unusable.
type TransportDataError struct {
	Class  catalog.TransportClass
	reason error
}

func (e *TransportDataError) Error() string {
	return fmt.Sprintf("transport class %q (%s): %v", e.Class.Label, e.Class.ID, e.reason)
}

func (e *TransportDataError) Unwrap() error { return e.reason }

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// TransportRequirement is the total volume one transport class must move.
type TransportRequirement struct {
	Class  catalog.TransportClass
	Volume decimal.Decimal // cm³
}

// Allocation is the dispatch decision for one class.
type Allocation struct {
	Class    catalog.TransportClass
	Units    int
	Required decimal.Decimal // volume assigned after donation absorption
	UnitCost decimal.Decimal // fixed + per-km * distance, rounded to 2
	Total    decimal.Decimal // UnitCost * Units
}

type DeliveryQuote struct {
	Units       int
	Total       decimal.Decimal
	DistanceKm  decimal.Decimal
	Allocations []Allocation
}

// =============================================================================
// ALLOCATOR
// =============================================================================

type DeliveryAllocator struct{}

// Allocate solves the multi-bin allocation and prices it. Requirements for
// the same class are merged; classes fully absorbed by larger vehicles'
// slack are skipped (no dispatch).
func (DeliveryAllocator) Allocate(requirements []TransportRequirement, distanceKm decimal.Decimal) (DeliveryQuote, error) {
	merged, err := mergeRequirements(requirements)
	if err != nil {
		return DeliveryQuote{}, err
	}

	// Capacity descending so slack flows downhill to smaller classes.
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Class.Capacity.GreaterThan(merged[j].Class.Capacity)
	})

	remaining := make([]decimal.Decimal, len(merged))
	for i, req := range merged {
		remaining[i] = req.Volume
	}

	quote := DeliveryQuote{DistanceKm: distanceKm, Total: decimal.Zero}
	for i, req := range merged {
		if !remaining[i].IsPositive() {
			continue
		}

		units := int(remaining[i].Div(req.Class.Capacity).Ceil().IntPart())
		capacityTotal := req.Class.Capacity.Mul(decimal.NewFromInt(int64(units)))
		spare := capacityTotal.Sub(remaining[i])

		// Donate slack to the still-unassigned volume of smaller classes.
		for j := i + 1; j < len(merged) && spare.IsPositive(); j++ {
			if !remaining[j].IsPositive() {
				continue
			}
			donated := decimal.Min(spare, remaining[j])
			remaining[j] = remaining[j].Sub(donated)
			spare = spare.Sub(donated)
		}

		unitCost := req.Class.CostPerDispatch.
			Add(req.Class.CostPerKm.Mul(distanceKm)).
			Round(2)
		total := unitCost.Mul(decimal.NewFromInt(int64(units)))

		quote.Units += units
		quote.Total = quote.Total.Add(total)
		quote.Allocations = append(quote.Allocations, Allocation{
			Class:    req.Class,
			Units:    units,
			Required: remaining[i],
			UnitCost: unitCost,
			Total:    total,
		})
	}

	quote.Total = quote.Total.Round(2)
	return quote, nil
}

func mergeRequirements(requirements []TransportRequirement) ([]TransportRequirement, error) {
	byID := make(map[catalog.TransportClassID]int)
	var merged []TransportRequirement
	for _, req := range requirements {
		if !req.Class.Capacity.IsPositive() {
			return nil, &TransportDataError{Class: req.Class, reason: ErrNoCapacity}
		}
		if req.Volume.IsNegative() {
			return nil, &TransportDataError{Class: req.Class, reason: ErrNoVolume}
		}
		if i, ok := byID[req.Class.ID]; ok {
			merged[i].Volume = merged[i].Volume.Add(req.Volume)
			continue
		}
		byID[req.Class.ID] = len(merged)
		merged = append(merged, req)
	}
	return merged, nil
}
