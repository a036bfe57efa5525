/*
Package routing resolves the driving distance used by delivery pricing.

PURPOSE:
  Delivery cost needs one number: the round-trip distance between the
  warehouse and the destination. A real routing provider supplies it; this
  package owns only the collaborator interfaces, a timeout guard, and the
  great-circle fallback used when the provider fails. It never blocks an
  order save indefinitely.

FALLBACK CHAIN:
  1. Router.Distance with a short context timeout
  2. On any router error: geocode both addresses and take the great-circle
     (haversine) distance between them
  3. If geocoding itself fails, surface ErrGeocodeFailed - there is nothing
     left to estimate from

The provider and geocoder stay external per the engine's scope; Static is
the in-process implementation used by tests and dev setups.

SEE ALSO:
  - order/totals.go: the only caller; doubles nothing, RoundTrip does
*/
package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// DistanceService returns the one-way driving distance in kilometers.
type DistanceService interface {
	Distance(ctx context.Context, origin, destination string) (decimal.Decimal, error)
}

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

type Point struct {
	Lat float64
	Lon float64
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoRoute is returned when no provider is configured at all.
	ErrNoRoute = errors.New("no routing provider configured")

	// ErrGeocodeFailed is returned when the fallback cannot place an
	// address. This is a data/configuration problem, not a transient one.
	ErrGeocodeFailed = errors.New("geocoding failed")
)

// =============================================================================
// RESOLVER - Timeout guard + great-circle fallback
// =============================================================================

const DefaultTimeout = 3 * time.Second

type Resolver struct {
	Router   DistanceService // primary provider, may be nil
	Geocoder Geocoder        // fallback input, may be nil
	Timeout  time.Duration   // 0 means DefaultTimeout
}

// Distance returns the one-way distance, trying the router first and
// falling back to the geometric estimate. Router failures are recovered
// here and never propagated.
func (r *Resolver) Distance(ctx context.Context, origin, destination string) (decimal.Decimal, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	if r.Router != nil {
		routeCtx, cancel := context.WithTimeout(ctx, timeout)
		km, err := r.Router.Distance(routeCtx, origin, destination)
		cancel()
		if err == nil {
			return km, nil
		}
	}

	if r.Geocoder == nil {
		return decimal.Zero, ErrNoRoute
	}

	from, err := r.Geocoder.Geocode(ctx, origin)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: origin %q: %v", ErrGeocodeFailed, origin, err)
	}
	to, err := r.Geocoder.Geocode(ctx, destination)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: destination %q: %v", ErrGeocodeFailed, destination, err)
	}

	return decimal.NewFromFloat(Haversine(from, to)).Round(2), nil
}

// RoundTrip is Distance there and back; delivery pricing always uses this.
func (r *Resolver) RoundTrip(ctx context.Context, origin, destination string) (decimal.Decimal, error) {
	km, err := r.Distance(ctx, origin, destination)
	if err != nil {
		return decimal.Zero, err
	}
	return km.Mul(decimal.NewFromInt(2)), nil
}

// =============================================================================
// GREAT-CIRCLE ESTIMATE
// =============================================================================

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// =============================================================================
// STATIC PROVIDER - Fixed distance for tests and dev
// =============================================================================

type Static struct {
	Km decimal.Decimal
}

func (s Static) Distance(_ context.Context, _, _ string) (decimal.Decimal, error) {
	return s.Km, nil
}
