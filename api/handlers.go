/*
handlers.go - HTTP API handlers for the rental fulfillment engine

PURPOSE:
  Exposes the fulfillment engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Orders:
    GET    /api/orders                   List orders
    POST   /api/orders                   Create order
    GET    /api/orders/{id}              Get order with items and totals
    PUT    /api/orders/{id}/items        Replace the item set
    POST   /api/orders/{id}/status       Lifecycle transition
    POST   /api/orders/{id}/logistics    Warehouse sub-state transition
    POST   /api/orders/{id}/receipt      Record warehouse return receipt
    GET    /api/orders/{id}/ledger       Fulfillment ledger rows
    GET    /api/orders/{id}/delivery-quote  Priced transport plan

  Catalog:
    GET    /api/products                 List products with counters
    POST   /api/products                 Create/update product
    POST   /api/qualifications           Create/update qualification
    POST   /api/transport-classes        Create/update transport class

REQUEST FLOW FOR ORDER MUTATIONS:
  1. Load the order, keep a clone as the prior snapshot
  2. Apply the mutation and recalculate totals
  3. Save the order and reconcile the ledger in ONE transaction
  4. Serialize the saved order

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (insufficient stock)
  - 422: Archival without return quantities
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - stock/reconciler.go: the convergence pass behind every mutation
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/order"
	"github.com/warp/rental-engine/stock"
	"github.com/warp/rental-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Reconciler *stock.Reconciler
	Totals     *order.TotalCalculator
}

// NewHandler creates a new handler with the given store and calculator.
func NewHandler(store *sqlite.Store, totals *order.TotalCalculator) *Handler {
	return &Handler{
		Store:      store,
		Reconciler: stock.NewReconciler(store),
		Totals:     totals,
	}
}

// saveAndReconcile recalculates totals, then persists the order and
// converges its ledger inside one transaction. prev may be nil (creation).
func (h *Handler) saveAndReconcile(ctx context.Context, o *order.Order, returnQuantities map[catalog.ProductID]int) error {
	if err := h.Totals.Recalculate(ctx, o); err != nil {
		return err
	}
	next := stock.SnapshotOf(o, returnQuantities)
	return h.Store.WithOrderTx(ctx, func(tx sqlite.OrderTx) error {
		if err := h.Reconciler.ReconcileIn(ctx, tx, next); err != nil {
			return err
		}
		return tx.SaveOrder(ctx, o)
	})
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns all orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Store.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}

	dtos := make([]OrderDTO, len(orders))
	for i := range orders {
		dtos[i] = orderDTO(&orders[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOrder creates a new order in status "new" and reserves its items.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	deliveryType := order.DeliveryType(req.DeliveryType)
	if deliveryType != order.DeliveryTypeDelivery && deliveryType != order.DeliveryTypePickup {
		writeError(w, http.StatusBadRequest, "delivery_type must be 'delivery' or 'pickup'", nil)
		return
	}

	id := order.ID(req.ID)
	if id == "" {
		id = order.ID(fmt.Sprintf("ord-%d", time.Now().UnixNano()))
	}
	if existing, err := h.Store.GetOrder(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check order", err)
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, "Order already exists", nil)
		return
	}

	o := &order.Order{
		ID:           id,
		Status:       order.StatusNew,
		DeliveryType: deliveryType,
		Address:      req.Address,
	}
	items, err := h.snapshotItems(r.Context(), req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid items", err)
		return
	}
	o.Items = items

	if err := h.saveAndReconcile(r.Context(), o, nil); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderDTO(o))
}

// GetOrder returns one order with items and totals.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, orderDTO(o))
}

// ReplaceItems replaces the order's full item set and reprices it. Prices
// of surviving lines are re-snapshotted from the catalog.
func (h *Handler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	var req ReplaceItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	items, err := h.snapshotItems(r.Context(), req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid items", err)
		return
	}
	o.Items = items

	if err := h.saveAndReconcile(r.Context(), o, nil); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderDTO(o))
}

// ChangeStatus performs a lifecycle transition. Archival may carry explicit
// return quantities for damaged or lost units.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status := order.Status(req.Status)
	switch status {
	case order.StatusNew, order.StatusReserved, order.StatusRented,
		order.StatusInProgress, order.StatusArchived, order.StatusDeclined:
	default:
		writeError(w, http.StatusBadRequest, "Unknown status", nil)
		return
	}

	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	o.Status = status

	if err := h.saveAndReconcile(r.Context(), o, productQuantities(req.ReturnQuantities)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderDTO(o))
}

// ChangeLogistics moves the warehouse sub-state.
func (h *Handler) ChangeLogistics(w http.ResponseWriter, r *http.Request) {
	var req LogisticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	logistics := order.LogisticsState(req.Logistics)
	switch logistics {
	case order.LogisticsNone, order.LogisticsHandedToPicking,
		order.LogisticsPicked, order.LogisticsShipped:
	default:
		writeError(w, http.StatusBadRequest, "Unknown logistics state", nil)
		return
	}

	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	o.Logistics = logistics

	if err := h.saveAndReconcile(r.Context(), o, nil); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderDTO(o))
}

// RecordReceipt marks the goods as physically back in the warehouse, which
// makes the order return-eligible before archival.
func (h *Handler) RecordReceipt(w http.ResponseWriter, r *http.Request) {
	var req ReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	o.WarehouseReceivedAt = &now

	if err := h.saveAndReconcile(r.Context(), o, productQuantities(req.ReturnQuantities)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderDTO(o))
}

// GetLedger returns the order's fulfillment ledger rows.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := order.ID(chi.URLParam(r, "id"))
	entries, err := h.Store.EntriesByOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}

	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LedgerEntryDTO{
			OrderID:          string(e.OrderID),
			ProductID:        string(e.ProductID),
			Kind:             string(e.Kind),
			Delta:            e.Delta,
			AffectsStock:     e.AffectsStock,
			AffectsAvailable: e.AffectsAvailable,
			Applied:          e.Applied,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDeliveryQuote prices the order's transport without saving anything.
// Unlike Recalculate, failures surface here so the operator sees WHY the
// persisted delivery total degraded to zero.
func (h *Handler) GetDeliveryQuote(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	quote, err := h.Totals.DeliveryQuote(r.Context(), o)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Delivery cannot be priced", err)
		return
	}

	dto := DeliveryQuoteDTO{
		Units:      quote.Units,
		Total:      quote.Total.String(),
		DistanceKm: quote.DistanceKm.String(),
	}
	for _, a := range quote.Allocations {
		dto.Allocations = append(dto.Allocations, AllocationDTO{
			TransportClassID: string(a.Class.ID),
			Label:            a.Class.Label,
			Units:            a.Units,
			UnitCost:         a.UnitCost.String(),
			Total:            a.Total.String(),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListProducts returns all products with their live counters.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = productDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Product(r.Context(), catalog.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load product", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, productDTO(*p))
}

// CreateProduct creates or updates a product. Quantity seeds both counters
// on first insert; on update the counters keep their projected values.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must be non-negative", nil)
		return
	}

	unitVolume, err := parseDecimal(req.UnitVolume)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_volume", err)
		return
	}
	unitPrice, err := parseDecimal(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
		return
	}

	p := catalog.Product{
		ID:               catalog.ProductID(req.ID),
		Name:             req.Name,
		OnHand:           req.Quantity,
		Available:        req.Quantity,
		SetupMinutes:     req.SetupMinutes,
		TeardownMinutes:  req.TeardownMinutes,
		MinInstallers:    req.MinInstallers,
		QualificationID:  catalog.QualificationID(req.QualificationID),
		UnitVolume:       unitVolume,
		TransportClassID: catalog.TransportClassID(req.TransportClassID),
		UnitPrice:        unitPrice,
	}
	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusCreated, productDTO(p))
}

// CreateQualification creates or updates an installer qualification.
func (h *Handler) CreateQualification(w http.ResponseWriter, r *http.Request) {
	var req QualificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	minimumPrice, err := parseDecimal(req.MinimumPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid minimum_price", err)
		return
	}
	hourlyRate, err := parseDecimal(req.HourlyRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hourly_rate", err)
		return
	}

	q := catalog.Qualification{
		ID:           catalog.QualificationID(req.ID),
		Name:         req.Name,
		MinimumPrice: minimumPrice,
		HourlyRate:   hourlyRate,
	}
	if err := h.Store.SaveQualification(r.Context(), q); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save qualification", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CreateTransportClass creates or updates a transport class.
func (h *Handler) CreateTransportClass(w http.ResponseWriter, r *http.Request) {
	var req TransportClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	capacity, err := parseDecimal(req.Capacity)
	if err != nil || !capacity.IsPositive() {
		writeError(w, http.StatusBadRequest, "capacity must be a positive decimal", err)
		return
	}
	costPerKm, err := parseDecimal(req.CostPerKm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost_per_km", err)
		return
	}
	costPerDispatch, err := parseDecimal(req.CostPerDispatch)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost_per_dispatch", err)
		return
	}

	t := catalog.TransportClass{
		ID:              catalog.TransportClassID(req.ID),
		Label:           req.Label,
		Capacity:        capacity,
		CostPerKm:       costPerKm,
		CostPerDispatch: costPerDispatch,
	}
	if err := h.Store.SaveTransportClass(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save transport class", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// loadOrder fetches the order from the URL, writing 404 on absence.
func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	id := order.ID(chi.URLParam(r, "id"))
	o, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load order", err)
		return nil, false
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return nil, false
	}
	return o, true
}

// snapshotItems resolves each requested line against the catalog and
// snapshots the current list price. Unknown products are rejected here;
// lines only lose their product reference when one is deleted LATER.
func (h *Handler) snapshotItems(ctx context.Context, items []ItemDTO) ([]order.Item, error) {
	var result []order.Item
	for _, it := range items {
		if it.ProductID == "" {
			return nil, fmt.Errorf("item has no product_id")
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: quantity must be positive", it.ProductID)
		}
		p, err := h.Store.Product(ctx, catalog.ProductID(it.ProductID))
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("product %s: not found", it.ProductID)
		}
		result = append(result, order.Item{
			ProductID: p.ID,
			Quantity:  it.Quantity,
			UnitPrice: p.UnitPrice,
		})
	}
	return result, nil
}

func productQuantities(m map[string]int) map[catalog.ProductID]int {
	if m == nil {
		return nil
	}
	result := make(map[catalog.ProductID]int, len(m))
	for id, qty := range m {
		result[catalog.ProductID(id)] = qty
	}
	return result
}

func orderDTO(o *order.Order) OrderDTO {
	dto := OrderDTO{
		ID:           string(o.ID),
		Status:       string(o.Status),
		Logistics:    string(o.Logistics),
		DeliveryType: string(o.DeliveryType),
		Address:      o.Address,
		Totals: TotalsDTO{
			Items:        o.Totals.Items.String(),
			Installation: o.Totals.Installation.String(),
			Dismantle:    o.Totals.Dismantle.String(),
			Services:     o.Totals.Services.String(),
			Delivery:     o.Totals.Delivery.String(),
			Grand:        o.Totals.Grand.String(),
		},
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
		UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
	}
	if o.WarehouseReceivedAt != nil {
		t := o.WarehouseReceivedAt.Format(time.RFC3339)
		dto.WarehouseReceivedAt = &t
	}
	for _, it := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ProductID: string(it.ProductID),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.String(),
		})
	}
	return dto
}

func productDTO(p catalog.Product) ProductDTO {
	return ProductDTO{
		ID:               string(p.ID),
		Name:             p.Name,
		OnHand:           p.OnHand,
		Available:        p.Available,
		SetupMinutes:     p.SetupMinutes,
		TeardownMinutes:  p.TeardownMinutes,
		MinInstallers:    p.MinInstallers,
		QualificationID:  string(p.QualificationID),
		UnitVolume:       p.UnitVolume.String(),
		TransportClassID: string(p.TransportClassID),
		UnitPrice:        p.UnitPrice.String(),
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// writeDomainError maps reconciliation failures to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stock.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "Insufficient stock", err)
	case errors.Is(err, stock.ErrReturnQuantitiesRequired):
		writeError(w, http.StatusUnprocessableEntity, "Return quantities required", err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to save order", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
