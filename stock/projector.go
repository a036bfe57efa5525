/*
projector.go - Derives product counters from ledger entry changes

PURPOSE:
  Whenever a ledger entry is created, updated or deleted, the projector
  applies the DELTA of its contribution to the product's on-hand and
  available counters. Counters are therefore always the sum of applied
  entry contributions, floored at zero, without ever being recomputed from
  scratch.

DELTA-BASED, NOT ABSOLUTE:
  Apply(prev, cur) computes contribution(cur) - contribution(prev) and
  hands that single pair of deltas to the CounterStore. Calling it with the
  same (prev, cur) transition exactly once per actual row change keeps the
  projection idempotent under reconciler re-runs, because the reconciler
  only reports real transitions.

PRODUCT MOVES:
  If an entry's product changed, the two products are different aggregates:
  the old product gets the full old contribution reversed and the new
  product gets the full new contribution applied. A blind delta would
  corrupt both.

SEE ALSO:
  - store.go: the atomic-increment contract AdjustCounters must honor
  - reconciler.go: drives Apply on every row transition
*/
package stock

import "context"

// =============================================================================
// PROJECTOR
// =============================================================================

// Projector turns entry transitions into counter adjustments. Stateless.
type Projector struct{}

// Apply records the transition prev -> cur against the counters.
//   - prev == nil: entry created
//   - cur  == nil: entry deleted (reverses the last-known contribution)
//   - both set, same product: incremental delta
//   - both set, different product: full reverse on old, full apply on new
func (Projector) Apply(ctx context.Context, counters CounterStore, prev, cur *Entry) error {
	if prev == nil && cur == nil {
		return nil
	}

	if prev != nil && cur != nil && prev.ProductID != cur.ProductID {
		ps, pa := prev.Contribution()
		if err := adjust(ctx, counters, prev, -ps, -pa); err != nil {
			return err
		}
		cs, ca := cur.Contribution()
		return adjust(ctx, counters, cur, cs, ca)
	}

	var prevStock, prevAvail, curStock, curAvail int
	target := cur
	if prev != nil {
		prevStock, prevAvail = prev.Contribution()
		if target == nil {
			target = prev
		}
	}
	if cur != nil {
		curStock, curAvail = cur.Contribution()
	}

	return adjust(ctx, counters, target, curStock-prevStock, curAvail-prevAvail)
}

func adjust(ctx context.Context, counters CounterStore, e *Entry, stockDelta, availableDelta int) error {
	if stockDelta == 0 && availableDelta == 0 {
		return nil
	}
	return counters.AdjustCounters(ctx, e.ProductID, stockDelta, availableDelta)
}
