/*
Package order defines the rental order lifecycle and its computed totals.

PURPOSE:
  Orders are the unit of work the fulfillment ledger reacts to. This file
  holds the lifecycle enums, the item model with its price snapshot, and the
  persisted totals block. The totals calculator lives in totals.go.

LIFECYCLE:
  Status:    new → reserved → rented → in_progress → archived
             (declined is terminal from any state)
  Logistics: "" → handed_to_picking → picked → shipped

  The stock reconciler derives ledger eligibility from these two fields plus
  WarehouseReceivedAt; the order package itself imposes no transition rules
  (the admin surface owns workflow).

PRICE SNAPSHOTS:
  Item.UnitPrice is fixed when the item is added. Catalog price changes
  never retroactively reprice existing orders.

SEE ALSO:
  - stock/reconciler.go: how status/logistics drive ledger rows
  - totals.go: items + setup + delivery aggregation
*/
package order

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/catalog"
)

// =============================================================================
// IDENTIFIERS AND ENUMS
// =============================================================================

type ID string

type Status string

const (
	StatusNew        Status = "new"
	StatusReserved   Status = "reserved"
	StatusRented     Status = "rented"
	StatusInProgress Status = "in_progress"
	StatusArchived   Status = "archived"
	StatusDeclined   Status = "declined"
)

// LogisticsState is the warehouse sub-state, independent of Status.
type LogisticsState string

const (
	LogisticsNone            LogisticsState = ""
	LogisticsHandedToPicking LogisticsState = "handed_to_picking"
	LogisticsPicked          LogisticsState = "picked"
	LogisticsShipped         LogisticsState = "shipped"
)

type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

// =============================================================================
// ORDER AND ITEMS
// =============================================================================

// Item is a single order line. ProductID may be empty when the product was
// deleted after the order was placed; such lines keep their price snapshot
// but no longer participate in stock or delivery.
type Item struct {
	ProductID catalog.ProductID
	Quantity  int
	UnitPrice decimal.Decimal // snapshot, not the live catalog price
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Totals is the persisted breakdown written by the TotalCalculator.
type Totals struct {
	Items        decimal.Decimal
	Installation decimal.Decimal
	Dismantle    decimal.Decimal
	Services     decimal.Decimal // Installation + Dismantle
	Delivery     decimal.Decimal
	Grand        decimal.Decimal
}

type Order struct {
	ID        ID
	Status    Status
	Logistics LogisticsState

	// Non-nil once goods physically came back to the warehouse.
	// May precede archival (early/partial return).
	WarehouseReceivedAt *time.Time

	DeliveryType DeliveryType
	Address      string

	Items  []Item
	Totals Totals

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductIDs returns the distinct, non-empty product references on the order.
func (o *Order) ProductIDs() []catalog.ProductID {
	seen := make(map[catalog.ProductID]bool)
	var ids []catalog.ProductID
	for _, it := range o.Items {
		if it.ProductID == "" || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}
	return ids
}

// Clone returns a deep copy, used to capture a prior snapshot before a
// mutation so prev/next can be passed to the reconciler explicitly.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	if o.WarehouseReceivedAt != nil {
		t := *o.WarehouseReceivedAt
		c.WarehouseReceivedAt = &t
	}
	return &c
}
