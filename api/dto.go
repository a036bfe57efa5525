/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Decimals are serialized as strings ("125.50") so clients never receive a
  float rounding artifact.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// =============================================================================
// ORDER TYPES
// =============================================================================

// ItemDTO is one order line in requests and responses.
type ItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// UnitPrice is the snapshot price. Ignored on input: the handler
	// snapshots the catalog price when the line is added.
	UnitPrice string `json:"unit_price,omitempty"`
}

// TotalsDTO is the persisted totals breakdown.
type TotalsDTO struct {
	Items        string `json:"items"`
	Installation string `json:"installation"`
	Dismantle    string `json:"dismantle"`
	Services     string `json:"services"`
	Delivery     string `json:"delivery"`
	Grand        string `json:"grand"`
}

// OrderDTO represents an order in API responses.
type OrderDTO struct {
	ID                  string    `json:"id"`
	Status              string    `json:"status"`
	Logistics           string    `json:"logistics,omitempty"`
	WarehouseReceivedAt *string   `json:"warehouse_received_at,omitempty"`
	DeliveryType        string    `json:"delivery_type"`
	Address             string    `json:"address,omitempty"`
	Items               []ItemDTO `json:"items,omitempty"`
	Totals              TotalsDTO `json:"totals"`
	CreatedAt           string    `json:"created_at,omitempty"`
	UpdatedAt           string    `json:"updated_at,omitempty"`
}

// CreateOrderRequest is the request to create an order.
type CreateOrderRequest struct {
	ID           string    `json:"id,omitempty"` // generated when empty
	DeliveryType string    `json:"delivery_type"`
	Address      string    `json:"address,omitempty"`
	Items        []ItemDTO `json:"items,omitempty"`
}

// ReplaceItemsRequest replaces the order's full item set.
type ReplaceItemsRequest struct {
	Items []ItemDTO `json:"items"`
}

// StatusRequest moves the order to a new lifecycle status.
// ReturnQuantities is only meaningful for archival: nil means "no
// override", explicit values keep damaged/lost units out of stock.
type StatusRequest struct {
	Status           string         `json:"status"`
	ReturnQuantities map[string]int `json:"return_quantities,omitempty"`
}

// LogisticsRequest moves the order's warehouse sub-state.
type LogisticsRequest struct {
	Logistics string `json:"logistics"`
}

// ReceiptRequest records the physical return of goods to the warehouse.
type ReceiptRequest struct {
	ReturnQuantities map[string]int `json:"return_quantities,omitempty"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// LedgerEntryDTO is one fulfillment ledger row.
type LedgerEntryDTO struct {
	OrderID          string `json:"order_id"`
	ProductID        string `json:"product_id"`
	Kind             string `json:"kind"`
	Delta            int    `json:"delta"`
	AffectsStock     bool   `json:"affects_stock"`
	AffectsAvailable bool   `json:"affects_available"`
	Applied          bool   `json:"applied"`
}

// =============================================================================
// CATALOG TYPES
// =============================================================================

// ProductDTO represents a product with its live counters.
type ProductDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	OnHand           int    `json:"on_hand"`
	Available        int    `json:"available"`
	SetupMinutes     int    `json:"setup_minutes,omitempty"`
	TeardownMinutes  int    `json:"teardown_minutes,omitempty"`
	MinInstallers    int    `json:"min_installers,omitempty"`
	QualificationID  string `json:"qualification_id,omitempty"`
	UnitVolume       string `json:"unit_volume,omitempty"`
	TransportClassID string `json:"transport_class_id,omitempty"`
	UnitPrice        string `json:"unit_price"`
}

// CreateProductRequest creates or updates a product. Quantity seeds both
// counters on first insert.
type CreateProductRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Quantity         int    `json:"quantity"`
	SetupMinutes     int    `json:"setup_minutes,omitempty"`
	TeardownMinutes  int    `json:"teardown_minutes,omitempty"`
	MinInstallers    int    `json:"min_installers,omitempty"`
	QualificationID  string `json:"qualification_id,omitempty"`
	UnitVolume       string `json:"unit_volume,omitempty"`
	TransportClassID string `json:"transport_class_id,omitempty"`
	UnitPrice        string `json:"unit_price,omitempty"`
}

// QualificationRequest creates or updates an installer qualification.
type QualificationRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MinimumPrice string `json:"minimum_price,omitempty"`
	HourlyRate   string `json:"hourly_rate,omitempty"`
}

// TransportClassRequest creates or updates a transport class.
type TransportClassRequest struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	Capacity        string `json:"capacity"`
	CostPerKm       string `json:"cost_per_km,omitempty"`
	CostPerDispatch string `json:"cost_per_dispatch,omitempty"`
}

// =============================================================================
// DELIVERY QUOTE TYPES
// =============================================================================

// AllocationDTO is one transport class's dispatch decision.
type AllocationDTO struct {
	TransportClassID string `json:"transport_class_id"`
	Label            string `json:"label"`
	Units            int    `json:"units"`
	UnitCost         string `json:"unit_cost"`
	Total            string `json:"total"`
}

// DeliveryQuoteDTO is the priced transport plan for an order.
type DeliveryQuoteDTO struct {
	Units       int             `json:"units"`
	Total       string          `json:"total"`
	DistanceKm  string          `json:"distance_km"`
	Allocations []AllocationDTO `json:"allocations,omitempty"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
