/*
Package pricing contains the two pure pricing calculators: installer labor
(setup.go) and transport allocation (delivery.go).

setup.go - Installation and dismantle cost from labor requirements

PURPOSE:
  Aggregates per-item setup/teardown minutes and installer headcounts by
  qualification, then prices each stage with the minimum-price-or-hourly
  rule: an installer of qualification Q working h hours costs
  max(Q.MinimumPrice, Q.HourlyRate * h).

HEADCOUNT MODEL:
  Each item's MinInstallers ADDS to its qualification's counter - two
  products each needing one rigger means two riggers, the requirement
  stacks. Separately, the largest single-item MinInstallers is a floor on
  the total crew size; if the qualification-specific counters sum below it,
  the remainder is staffed from the "any qualification" pool. An order with
  setup time but no stated installer needs still gets one "any" installer.

ROUNDING:
  Minutes are converted to hours at 4 decimal places; each stage's money
  total is rounded to 2 (decimal half-up for these positive values).

SEE ALSO:
  - delivery.go: the transport allocator
  - order/totals.go: feeds both calculators and persists the results
*/
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/catalog"
)

var (
	sixty = decimal.NewFromInt(60)
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// SetupItem is one order line with its labor attributes resolved.
type SetupItem struct {
	Quantity        int
	SetupMinutes    int
	TeardownMinutes int
	MinInstallers   int

	// Qualification is nil when the item needs no specific specialist; the
	// calculator assigns such headcount to the AnyQualification pool.
	Qualification *catalog.Qualification
}

// CrewLine is the resolved headcount for one qualification.
type CrewLine struct {
	Qualification catalog.Qualification
	Headcount     int
}

type SetupQuote struct {
	InstallationHours decimal.Decimal // 4 decimal places
	DismantleHours    decimal.Decimal

	Installation decimal.Decimal // 2 decimal places
	Dismantle    decimal.Decimal
	Services     decimal.Decimal // Installation + Dismantle

	Crew []CrewLine
}

// =============================================================================
// CALCULATOR
// =============================================================================

type SetupCalculator struct {
	// Any is the sentinel qualification used for unspecialized headcount.
	// Zero value means unskilled labor is free, which is rarely intended;
	// callers resolve the sentinel from the catalog.
	Any catalog.Qualification
}

func NewSetupCalculator(anyQualification catalog.Qualification) SetupCalculator {
	return SetupCalculator{Any: anyQualification}
}

func (c SetupCalculator) Quote(items []SetupItem) SetupQuote {
	var installMinutes, teardownMinutes int
	headcount := make(map[catalog.QualificationID]int)
	quals := map[catalog.QualificationID]catalog.Qualification{
		catalog.AnyQualification: c.Any,
	}
	maxInstallers := 0

	for _, it := range items {
		installMinutes += it.SetupMinutes * it.Quantity
		teardownMinutes += it.TeardownMinutes * it.Quantity

		if it.MinInstallers <= 0 {
			continue
		}
		id := catalog.AnyQualification
		if it.Qualification != nil {
			id = it.Qualification.ID
			quals[id] = *it.Qualification
		}
		headcount[id] += it.MinInstallers
		if it.MinInstallers > maxInstallers {
			maxInstallers = it.MinInstallers
		}
	}

	installHours := hoursFromMinutes(installMinutes)
	teardownHours := hoursFromMinutes(teardownMinutes)

	// The single largest item requirement floors the total crew size; any
	// shortfall is staffed from the unspecialized pool.
	total := 0
	for _, n := range headcount {
		total += n
	}
	if total < maxInstallers {
		headcount[catalog.AnyQualification] += maxInstallers - total
		total = maxInstallers
	}
	if total == 0 && (installMinutes > 0 || teardownMinutes > 0) {
		headcount[catalog.AnyQualification] = 1
	}

	quote := SetupQuote{
		InstallationHours: installHours,
		DismantleHours:    teardownHours,
	}

	installation := decimal.Zero
	dismantle := decimal.Zero
	for _, id := range sortedQualificationIDs(headcount) {
		n := headcount[id]
		if n <= 0 {
			continue
		}
		q := quals[id]
		count := decimal.NewFromInt(int64(n))
		installation = installation.Add(stageCost(q, installHours).Mul(count))
		dismantle = dismantle.Add(stageCost(q, teardownHours).Mul(count))
		quote.Crew = append(quote.Crew, CrewLine{Qualification: q, Headcount: n})
	}

	quote.Installation = installation.Round(2)
	quote.Dismantle = dismantle.Round(2)
	quote.Services = quote.Installation.Add(quote.Dismantle)
	return quote
}

// stageCost prices one installer of qualification q for the stage. A stage
// with no work costs nothing; the flat minimum applies only once any work
// exists.
func stageCost(q catalog.Qualification, hours decimal.Decimal) decimal.Decimal {
	if hours.IsZero() {
		return decimal.Zero
	}
	hourly := q.HourlyRate.Mul(hours)
	if q.MinimumPrice.GreaterThan(hourly) {
		return q.MinimumPrice
	}
	return hourly
}

func hoursFromMinutes(minutes int) decimal.Decimal {
	if minutes == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(4)
}

func sortedQualificationIDs(m map[catalog.QualificationID]int) []catalog.QualificationID {
	ids := make([]catalog.QualificationID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
