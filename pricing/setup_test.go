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

func qual(id string, minimum, hourly float64) *catalog.Qualification {
	return &catalog.Qualification{
		ID:           catalog.QualificationID(id),
		Name:         id,
		MinimumPrice: decimal.NewFromFloat(minimum),
		HourlyRate:   decimal.NewFromFloat(hourly),
	}
}

func anyCalc(hourly float64) pricing.SetupCalculator {
	return pricing.NewSetupCalculator(catalog.Qualification{
		ID:         catalog.AnyQualification,
		Name:       "Any installer",
		HourlyRate: decimal.NewFromFloat(hourly),
	})
}

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// =============================================================================
// MINIMUM-PRICE-OR-HOURLY RULE
// =============================================================================

func TestSetupQuote_FlatMinimumDominates(t *testing.T) {
	// GIVEN: One item, 1 rigger (minimum 1000, hourly 0), 30 min install,
	//        20 min teardown
	// THEN: Installation = dismantle = 1000, services = 2000

	calc := anyCalc(0)
	quote := calc.Quote([]pricing.SetupItem{{
		Quantity:        1,
		SetupMinutes:    30,
		TeardownMinutes: 20,
		MinInstallers:   1,
		Qualification:   qual("rigger", 1000, 0),
	}})

	assert.True(t, quote.Installation.Equal(money(1000)),
		"installation: got %s", quote.Installation)
	assert.True(t, quote.Dismantle.Equal(money(1000)),
		"dismantle: got %s", quote.Dismantle)
	assert.True(t, quote.Services.Equal(money(2000)),
		"services: got %s", quote.Services)
}

func TestSetupQuote_HourlyDominatesWhenAboveMinimum(t *testing.T) {
	// 2 hours at 600/h = 1200 > minimum 1000.

	calc := anyCalc(0)
	quote := calc.Quote([]pricing.SetupItem{{
		Quantity:      1,
		SetupMinutes:  120,
		MinInstallers: 1,
		Qualification: qual("rigger", 1000, 600),
	}})

	assert.True(t, quote.Installation.Equal(money(1200)),
		"installation: got %s", quote.Installation)
	assert.True(t, quote.Dismantle.IsZero(), "no teardown work, no dismantle cost")
}

func TestSetupQuote_ZeroWorkCostsNothing(t *testing.T) {
	// An installer requirement with no minutes prices to zero; the flat
	// minimum applies only once any work exists.

	calc := anyCalc(50)
	quote := calc.Quote([]pricing.SetupItem{{
		Quantity:      2,
		MinInstallers: 1,
		Qualification: qual("rigger", 1000, 600),
	}})

	assert.True(t, quote.Installation.IsZero())
	assert.True(t, quote.Dismantle.IsZero())
	assert.True(t, quote.Services.IsZero())
}

// =============================================================================
// HEADCOUNT MODEL
// =============================================================================

func TestSetupQuote_HeadcountStacksPerQualification(t *testing.T) {
	// Two items each needing one rigger means two riggers.

	calc := anyCalc(0)
	rigger := qual("rigger", 0, 100)
	quote := calc.Quote([]pricing.SetupItem{
		{Quantity: 1, SetupMinutes: 60, MinInstallers: 1, Qualification: rigger},
		{Quantity: 1, SetupMinutes: 60, MinInstallers: 1, Qualification: rigger},
	})

	require.Len(t, quote.Crew, 1)
	assert.Equal(t, 2, quote.Crew[0].Headcount)
	// 2 riggers x 2h x 100
	assert.True(t, quote.Installation.Equal(money(400)),
		"installation: got %s", quote.Installation)
}

func TestSetupQuote_MaxInstallersFloorsCrewFromAnyPool(t *testing.T) {
	// One electrician item plus a plain item needing a crew of 3: the
	// unspecialized requirement staffs from the any pool.

	calc := anyCalc(50)
	quote := calc.Quote([]pricing.SetupItem{
		{Quantity: 1, SetupMinutes: 60, MinInstallers: 1, Qualification: qual("electrician", 0, 200)},
		{Quantity: 1, SetupMinutes: 60, MinInstallers: 3},
	})

	// 1 electrician + 3 any; the largest single requirement (3) is already
	// covered by the any pool, total crew 4.
	counts := map[catalog.QualificationID]int{}
	for _, c := range quote.Crew {
		counts[c.Qualification.ID] = c.Headcount
	}
	assert.Equal(t, 1, counts["electrician"])
	assert.Equal(t, 3, counts[catalog.AnyQualification])

	// 2h total: electrician 2h x 200 = 400, any 3 x 2h x 50 = 300
	assert.True(t, quote.Installation.Equal(money(700)),
		"installation: got %s", quote.Installation)
}

func TestSetupQuote_NamedQualificationCoversFloor(t *testing.T) {
	// The item's crew of 4 stacks onto its own qualification, so the floor
	// is already met and the any pool stays empty.

	calc := anyCalc(50)
	quote := calc.Quote([]pricing.SetupItem{
		{Quantity: 1, SetupMinutes: 60, MinInstallers: 4, Qualification: qual("electrician", 0, 200)},
	})

	counts := map[catalog.QualificationID]int{}
	for _, c := range quote.Crew {
		counts[c.Qualification.ID] = c.Headcount
	}
	assert.Equal(t, 4, counts["electrician"])
	_, hasAny := counts[catalog.AnyQualification]
	assert.False(t, hasAny, "requirement fully covered by the named qualification")
}

func TestSetupQuote_WorkWithoutInstallers_DefaultsToOne(t *testing.T) {
	// Setup time with no stated installer needs still takes one person.

	calc := anyCalc(80)
	quote := calc.Quote([]pricing.SetupItem{
		{Quantity: 1, SetupMinutes: 90},
	})

	require.Len(t, quote.Crew, 1)
	assert.Equal(t, catalog.AnyQualification, quote.Crew[0].Qualification.ID)
	assert.Equal(t, 1, quote.Crew[0].Headcount)
	// 1.5h x 80
	assert.True(t, quote.Installation.Equal(money(120)),
		"installation: got %s", quote.Installation)
}

func TestSetupQuote_NoItems_AllZero(t *testing.T) {
	calc := anyCalc(80)
	quote := calc.Quote(nil)

	assert.True(t, quote.Installation.IsZero())
	assert.True(t, quote.Dismantle.IsZero())
	assert.True(t, quote.Services.IsZero())
	assert.Empty(t, quote.Crew)
}

// =============================================================================
// QUANTITY AND ROUNDING
// =============================================================================

func TestSetupQuote_MinutesScaleWithQuantity(t *testing.T) {
	calc := anyCalc(60)
	quote := calc.Quote([]pricing.SetupItem{
		{Quantity: 4, SetupMinutes: 15, TeardownMinutes: 30},
	})

	assert.True(t, quote.InstallationHours.Equal(money(1)),
		"installation hours: got %s", quote.InstallationHours)
	assert.True(t, quote.DismantleHours.Equal(money(2)),
		"dismantle hours: got %s", quote.DismantleHours)
}

func TestSetupQuote_HoursRoundedToFourPlaces(t *testing.T) {
	calc := anyCalc(0)
	quote := calc.Quote([]pricing.SetupItem{
		{Quantity: 1, SetupMinutes: 50},
	})

	// 50/60 = 0.8333...
	expected, _ := decimal.NewFromString("0.8333")
	assert.True(t, quote.InstallationHours.Equal(expected),
		"hours: got %s", quote.InstallationHours)
}

func TestSetupQuote_MoneyRoundedToTwoPlaces(t *testing.T) {
	calc := anyCalc(100)
	quote := calc.Quote([]pricing.SetupItem{
		{Quantity: 1, SetupMinutes: 50},
	})

	// 0.8333h x 100 = 83.33
	expected, _ := decimal.NewFromString("83.33")
	assert.True(t, quote.Installation.Equal(expected),
		"installation: got %s", quote.Installation)
}
