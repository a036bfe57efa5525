/*
totals.go - Order total aggregation

PURPOSE:
  Recalculate composes the order's persisted totals: the item subtotal from
  price snapshots, the setup calculator's installation/dismantle costs, and
  the delivery allocator's transport cost.

DEGRADE-TO-ZERO POLICY:
  Delivery pricing depends on address, routing and transport configuration
  that may be incomplete while an order is drafted. A delivery pricing
  failure therefore never blocks the save: it is logged with the order id
  and the delivery total degrades to zero. Setup pricing has no external
  dependencies and always succeeds.

SEE ALSO:
  - pricing/setup.go, pricing/delivery.go: the two calculators
  - routing: the distance collaborator with its fallback chain
*/
package order

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/pricing"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoDeliveryAddress: delivery orders need a destination.
	ErrNoDeliveryAddress = errors.New("delivery order has no address")

	// ErrMissingTransportClass: a product on a delivery order resolves to
	// no transport class.
	ErrMissingTransportClass = errors.New("product has no transport class")
)

// ProductDataError names the product whose configuration broke delivery
// pricing, so the log line is enough to diagnose.
type ProductDataError struct {
	ProductID catalog.ProductID
	Name      string
	reason    error
}

func (e *ProductDataError) Error() string {
	return fmt.Sprintf("product %q (%s): %v", e.Name, e.ProductID, e.reason)
}

func (e *ProductDataError) Unwrap() error { return e.reason }

// =============================================================================
// TOTAL CALCULATOR
// =============================================================================

// DistanceResolver is the routing collaborator; see routing.Resolver.
type DistanceResolver interface {
	RoundTrip(ctx context.Context, origin, destination string) (decimal.Decimal, error)
}

type TotalCalculator struct {
	Catalog   catalog.Reader
	Setup     pricing.SetupCalculator
	Allocator pricing.DeliveryAllocator
	Routing   DistanceResolver

	// WarehouseAddress is the fixed dispatch origin, read once per call.
	WarehouseAddress string

	// Logger receives swallowed delivery-pricing failures. nil uses the
	// standard logger.
	Logger *log.Logger
}

// Recalculate fills o.Totals from the current items and delivery
// parameters. Only delivery pricing can fail, and it degrades to zero.
func (c *TotalCalculator) Recalculate(ctx context.Context, o *Order) error {
	items := decimal.Zero
	for _, it := range o.Items {
		items = items.Add(it.Subtotal())
	}

	products, err := c.Catalog.Products(ctx, o.ProductIDs())
	if err != nil {
		return fmt.Errorf("load products for order %s: %w", o.ID, err)
	}

	setup, err := c.setupQuote(ctx, o, products)
	if err != nil {
		return err
	}

	delivery := decimal.Zero
	if o.DeliveryType == DeliveryTypeDelivery {
		quote, err := c.DeliveryQuote(ctx, o)
		if err != nil {
			c.logf("order %s: delivery pricing degraded to zero: %v", o.ID, err)
		} else {
			delivery = quote.Total
		}
	}

	o.Totals = Totals{
		Items:        items.Round(2),
		Installation: setup.Installation,
		Dismantle:    setup.Dismantle,
		Services:     setup.Services,
		Delivery:     delivery,
	}
	o.Totals.Grand = o.Totals.Items.Add(o.Totals.Services).Add(o.Totals.Delivery)
	return nil
}

// =============================================================================
// SETUP QUOTE
// =============================================================================

func (c *TotalCalculator) setupQuote(ctx context.Context, o *Order, products map[catalog.ProductID]catalog.Product) (pricing.SetupQuote, error) {
	var setupItems []pricing.SetupItem
	for _, it := range o.Items {
		p, ok := products[it.ProductID]
		if !ok {
			continue // deleted product, no labor attributes left
		}
		item := pricing.SetupItem{
			Quantity:        it.Quantity,
			SetupMinutes:    p.SetupMinutes,
			TeardownMinutes: p.TeardownMinutes,
			MinInstallers:   p.MinInstallers,
		}
		if p.QualificationID != "" && p.QualificationID != catalog.AnyQualification {
			q, err := c.Catalog.Qualification(ctx, p.QualificationID)
			if err != nil {
				return pricing.SetupQuote{}, fmt.Errorf("load qualification %s: %w", p.QualificationID, err)
			}
			item.Qualification = q
		}
		setupItems = append(setupItems, item)
	}

	calc := c.Setup
	if any, err := c.Catalog.Qualification(ctx, catalog.AnyQualification); err == nil && any != nil {
		calc.Any = *any
	}
	return calc.Quote(setupItems), nil
}

// =============================================================================
// DELIVERY QUOTE
// =============================================================================

// DeliveryQuote prices the order's transport. It enforces the delivery
// preconditions and returns the allocator's breakdown; Recalculate swallows
// its errors, API callers may surface them.
func (c *TotalCalculator) DeliveryQuote(ctx context.Context, o *Order) (pricing.DeliveryQuote, error) {
	if o.Address == "" {
		return pricing.DeliveryQuote{}, ErrNoDeliveryAddress
	}

	products, err := c.Catalog.Products(ctx, o.ProductIDs())
	if err != nil {
		return pricing.DeliveryQuote{}, fmt.Errorf("load products: %w", err)
	}

	requirements, err := c.transportRequirements(ctx, o, products)
	if err != nil {
		return pricing.DeliveryQuote{}, err
	}
	if len(requirements) == 0 {
		return pricing.DeliveryQuote{}, nil
	}

	distance, err := c.Routing.RoundTrip(ctx, c.WarehouseAddress, o.Address)
	if err != nil {
		return pricing.DeliveryQuote{}, fmt.Errorf("resolve distance: %w", err)
	}

	return c.Allocator.Allocate(requirements, distance)
}

// transportRequirements sums volume per transport class across the items.
// Missing volume or transport class on any product is a data error.
func (c *TotalCalculator) transportRequirements(ctx context.Context, o *Order, products map[catalog.ProductID]catalog.Product) ([]pricing.TransportRequirement, error) {
	volumes := make(map[catalog.TransportClassID]decimal.Decimal)
	var classOrder []catalog.TransportClassID

	for _, it := range o.Items {
		p, ok := products[it.ProductID]
		if !ok || it.Quantity <= 0 {
			continue
		}
		if !p.UnitVolume.IsPositive() {
			return nil, &ProductDataError{ProductID: p.ID, Name: p.Name, reason: pricing.ErrNoVolume}
		}
		if p.TransportClassID == "" {
			return nil, &ProductDataError{ProductID: p.ID, Name: p.Name, reason: ErrMissingTransportClass}
		}
		if _, seen := volumes[p.TransportClassID]; !seen {
			classOrder = append(classOrder, p.TransportClassID)
		}
		volume := p.UnitVolume.Mul(decimal.NewFromInt(int64(it.Quantity)))
		volumes[p.TransportClassID] = volumes[p.TransportClassID].Add(volume)
	}

	var requirements []pricing.TransportRequirement
	for _, id := range classOrder {
		class, err := c.Catalog.TransportClass(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load transport class %s: %w", id, err)
		}
		if class == nil {
			return nil, fmt.Errorf("transport class %s: not found", id)
		}
		requirements = append(requirements, pricing.TransportRequirement{
			Class:  *class,
			Volume: volumes[id],
		})
	}
	return requirements, nil
}

func (c *TotalCalculator) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
