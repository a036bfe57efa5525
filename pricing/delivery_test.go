package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/pricing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func transport(id string, capacity, perKm, perDispatch float64) catalog.TransportClass {
	return catalog.TransportClass{
		ID:              catalog.TransportClassID(id),
		Label:           id,
		Capacity:        decimal.NewFromFloat(capacity),
		CostPerKm:       decimal.NewFromFloat(perKm),
		CostPerDispatch: decimal.NewFromFloat(perDispatch),
	}
}

func requirement(class catalog.TransportClass, volume float64) pricing.TransportRequirement {
	return pricing.TransportRequirement{Class: class, Volume: decimal.NewFromFloat(volume)}
}

// =============================================================================
// SLACK DONATION (Scenario 3)
// =============================================================================

func TestAllocate_LargerClassSlackAbsorbsSmallerClass(t *testing.T) {
	// GIVEN: Capacities 1000/500 cm³, required volumes 1200/300 cm³
	// THEN: 2 units of the 1000 class (800 cm³ spare) absorb the 300 cm³
	//       smaller requirement; 0 dispatches of the 500 class

	truck := transport("truck", 1000, 2, 50)
	van := transport("van", 500, 1, 20)

	quote, err := pricing.DeliveryAllocator{}.Allocate([]pricing.TransportRequirement{
		requirement(truck, 1200),
		requirement(van, 300),
	}, decimal.NewFromInt(10))
	require.NoError(t, err)

	assert.Equal(t, 2, quote.Units)
	require.Len(t, quote.Allocations, 1)
	assert.Equal(t, catalog.TransportClassID("truck"), quote.Allocations[0].Class.ID)
	assert.Equal(t, 2, quote.Allocations[0].Units)

	// unit cost = 50 + 2*10 = 70; total = 140
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(140)),
		"total: got %s", quote.Total)
}

func TestAllocate_PartialAbsorption_SmallerClassStillDispatches(t *testing.T) {
	// Spare of 100 only shaves the smaller requirement from 300 to 200,
	// which still needs one van.

	truck := transport("truck", 1000, 0, 100)
	van := transport("van", 500, 0, 30)

	quote, err := pricing.DeliveryAllocator{}.Allocate([]pricing.TransportRequirement{
		requirement(truck, 900), // 1 truck, 100 spare
		requirement(van, 300),
	}, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, 2, quote.Units)
	require.Len(t, quote.Allocations, 2)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(130)),
		"total: got %s", quote.Total)
}

func TestAllocate_ExactFit_NoSpare(t *testing.T) {
	truck := transport("truck", 1000, 0, 100)
	van := transport("van", 500, 0, 30)

	quote, err := pricing.DeliveryAllocator{}.Allocate([]pricing.TransportRequirement{
		requirement(truck, 2000),
		requirement(van, 500),
	}, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, 3, quote.Units)
}

// =============================================================================
// ALLOCATION PROPERTIES
// =============================================================================

func TestAllocate_CapacityCoversRequirement(t *testing.T) {
	// For every allocation: units * capacity >= assigned volume.

	classes := []catalog.TransportClass{
		transport("a", 730, 1, 10),
		transport("b", 410, 1, 10),
		transport("c", 95, 1, 10),
	}
	volumes := []float64{2111, 830, 72}

	var reqs []pricing.TransportRequirement
	for i, c := range classes {
		reqs = append(reqs, requirement(c, volumes[i]))
	}

	quote, err := pricing.DeliveryAllocator{}.Allocate(reqs, decimal.NewFromInt(5))
	require.NoError(t, err)

	for _, a := range quote.Allocations {
		capacity := a.Class.Capacity.Mul(decimal.NewFromInt(int64(a.Units)))
		assert.True(t, capacity.GreaterThanOrEqual(a.Required),
			"class %s: %d units cover %s, required %s", a.Class.ID, a.Units, capacity, a.Required)
	}
}

func TestAllocate_NeverWorseThanIndependentAllocation(t *testing.T) {
	// Slack donation can only reduce the unit count versus pricing each
	// class on its own.

	truck := transport("truck", 1000, 1, 10)
	van := transport("van", 400, 1, 10)

	quote, err := pricing.DeliveryAllocator{}.Allocate([]pricing.TransportRequirement{
		requirement(truck, 1500), // alone: 2 units
		requirement(van, 900),    // alone: 3 units
	}, decimal.Zero)
	require.NoError(t, err)

	assert.LessOrEqual(t, quote.Units, 5)
}

func TestAllocate_MonotoneInVolume(t *testing.T) {
	// More volume never dispatches fewer units.

	truck := transport("truck", 1000, 1, 10)
	prev := 0
	for _, volume := range []float64{100, 900, 1000, 1001, 2500, 5000} {
		quote, err := pricing.DeliveryAllocator{}.Allocate(
			[]pricing.TransportRequirement{requirement(truck, volume)}, decimal.Zero)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, quote.Units, prev, "volume %v", volume)
		prev = quote.Units
	}
}

func TestAllocate_SameClassRequirementsMerged(t *testing.T) {
	truck := transport("truck", 1000, 0, 100)

	quote, err := pricing.DeliveryAllocator{}.Allocate([]pricing.TransportRequirement{
		requirement(truck, 600),
		requirement(truck, 300),
	}, decimal.Zero)
	require.NoError(t, err)

	// 900 fits one truck; separate lines would not change that.
	assert.Equal(t, 1, quote.Units)
	require.Len(t, quote.Allocations, 1)
}

// =============================================================================
// PRICING AND ROUNDING
// =============================================================================

func TestAllocate_UnitCostRoundedBeforeMultiplying(t *testing.T) {
	// per-km 0.333 x 10km + 0 = 3.33 (rounded) x 3 units = 9.99

	truck := transport("truck", 100, 0.333, 0)

	quote, err := pricing.DeliveryAllocator{}.Allocate([]pricing.TransportRequirement{
		requirement(truck, 300),
	}, decimal.NewFromInt(10))
	require.NoError(t, err)

	expected, _ := decimal.NewFromString("9.99")
	assert.True(t, quote.Total.Equal(expected), "total: got %s", quote.Total)
}

func TestAllocate_NoRequirements_ZeroQuote(t *testing.T) {
	quote, err := pricing.DeliveryAllocator{}.Allocate(nil, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, 0, quote.Units)
	assert.True(t, quote.Total.IsZero())
}

// =============================================================================
// DATA ERRORS
// =============================================================================

func TestAllocate_ZeroCapacity_Rejected(t *testing.T) {
	broken := transport("broken", 0, 1, 10)

	_, err := pricing.DeliveryAllocator{}.Allocate([]pricing.TransportRequirement{
		requirement(broken, 100),
	}, decimal.Zero)
	require.Error(t, err)

	var dataErr *pricing.TransportDataError
	require.ErrorAs(t, err, &dataErr)
	assert.ErrorIs(t, err, pricing.ErrNoCapacity)
}

func TestAllocate_NegativeVolume_Rejected(t *testing.T) {
	truck := transport("truck", 1000, 1, 10)

	_, err := pricing.DeliveryAllocator{}.Allocate([]pricing.TransportRequirement{
		requirement(truck, -5),
	}, decimal.Zero)
	require.Error(t, err)
	assert.ErrorIs(t, err, pricing.ErrNoVolume)
}
