/*
Package catalog holds the read models the fulfillment engine consumes.

PURPOSE:
  Products, installer qualifications, and transport classes are owned by the
  order-management surface around this engine. The engine only reads them:
  pricing needs rates and volumes, the stock ledger needs the two quantity
  counters. This package defines those read models and the Reader interface
  the stores implement.

KEY CONCEPTS:
  - Product: quantity counters + setup/delivery attributes per rentable item
  - Qualification: installer skill level with a minimum-price-or-hourly rate
  - TransportClass: vehicle type with capacity and per-km / per-dispatch cost
  - AnyQualification: the sentinel used when an item needs "someone", not a
    specific specialist

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for money and volume, never float64
  2. Type Safety: distinct ID types so a product ID can't be passed where a
     transport class ID is expected
  3. Read-only: mutation of catalog rows happens outside the engine; the
     counter columns on Product are the single exception and are adjusted
     only through stock.CounterStore

SEE ALSO:
  - stock/store.go: CounterStore, the one write path into Product counters
  - pricing/setup.go, pricing/delivery.go: consumers of the rate fields
*/
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type QualificationID string
type TransportClassID string

// AnyQualification is the distinguished "any installer" qualification.
// Items that need staffing but no particular specialist resolve to it.
const AnyQualification QualificationID = "any"

// =============================================================================
// PRODUCT - Rentable item with stock counters and fulfillment attributes
// =============================================================================

// Product is the engine's view of a rentable item.
//
// OnHand and Available are DERIVED counters maintained by the stock
// projector. They are never written directly; see stock.CounterStore.
type Product struct {
	ID   ProductID
	Name string

	// Stock counters (derived, clamped at zero)
	OnHand    int // physical units in the warehouse
	Available int // units reservable right now

	// Setup attributes
	SetupMinutes    int
	TeardownMinutes int
	MinInstallers   int
	QualificationID QualificationID // empty: no specific qualification

	// Delivery attributes
	UnitVolume       decimal.Decimal // cm³ per unit
	TransportClassID TransportClassID

	// Current list price. Order items snapshot their own price at creation.
	UnitPrice decimal.Decimal
}

// =============================================================================
// QUALIFICATION - Installer skill level with labor rates
// =============================================================================

type Qualification struct {
	ID           QualificationID
	Name         string
	MinimumPrice decimal.Decimal // flat floor per installer per stage
	HourlyRate   decimal.Decimal
}

// =============================================================================
// TRANSPORT CLASS - Vehicle type for delivery allocation
// =============================================================================

type TransportClass struct {
	ID              TransportClassID
	Label           string
	Capacity        decimal.Decimal // cm³ per vehicle
	CostPerKm       decimal.Decimal
	CostPerDispatch decimal.Decimal
}

// =============================================================================
// READER - Key-based lookup interface implemented by the stores
// =============================================================================

// Reader provides the bulk and key-based lookups the engine needs.
// A nil result with nil error means "not found" for the single-row lookups.
type Reader interface {
	Product(ctx context.Context, id ProductID) (*Product, error)

	// Products returns the subset of ids that exist, keyed by ID.
	// Missing products are simply absent from the map (items may reference
	// products that were deleted later).
	Products(ctx context.Context, ids []ProductID) (map[ProductID]Product, error)

	Qualification(ctx context.Context, id QualificationID) (*Qualification, error)
	TransportClass(ctx context.Context, id TransportClassID) (*TransportClass, error)
}
