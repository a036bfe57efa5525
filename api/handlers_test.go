package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-engine/api"
	"github.com/warp/rental-engine/order"
	"github.com/warp/rental-engine/routing"
	"github.com/warp/rental-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	totals := &order.TotalCalculator{
		Catalog:          store,
		Routing:          &routing.Resolver{Router: routing.Static{Km: decimal.NewFromInt(10)}},
		WarehouseAddress: "Warehouse, Hamburg",
	}

	server := httptest.NewServer(api.NewRouter(api.NewHandler(store, totals)))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func seedCatalog(t *testing.T, baseURL string) {
	t.Helper()

	resp, _ := doJSON(t, http.MethodPost, baseURL+"/api/qualifications", map[string]any{
		"id": "any", "name": "Any installer", "hourly_rate": "40",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, baseURL+"/api/qualifications", map[string]any{
		"id": "rigger", "name": "Rigger", "minimum_price": "1000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, baseURL+"/api/transport-classes", map[string]any{
		"id": "van", "label": "Van", "capacity": "1000", "cost_per_km": "1", "cost_per_dispatch": "20",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, baseURL+"/api/products", map[string]any{
		"id": "chair", "name": "Banquet chair", "quantity": 10,
		"setup_minutes": 6, "teardown_minutes": 6,
		"unit_volume": "100", "transport_class_id": "van", "unit_price": "10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func createOrder(t *testing.T, baseURL string, body map[string]any) string {
	t.Helper()
	resp, decoded := doJSON(t, http.MethodPost, baseURL+"/api/orders", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create order: %v", decoded)
	id, _ := decoded["id"].(string)
	require.NotEmpty(t, id)
	return id
}

// =============================================================================
// ORDER FLOW
// =============================================================================

func TestAPI_CreateOrder_ReservesAndPrices(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	resp, decoded := doJSON(t, http.MethodPost, server.URL+"/api/orders", map[string]any{
		"delivery_type": "pickup",
		"items":         []map[string]any{{"product_id": "chair", "quantity": 4}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", decoded)

	totals := decoded["totals"].(map[string]any)
	assert.Equal(t, "40", totals["items"])
	// 4 chairs x 6 min = 0.4h x 40/h per stage
	assert.Equal(t, "16", totals["installation"])
	assert.Equal(t, "32", totals["services"])
	assert.Equal(t, "72", totals["grand"])

	// The reservation shows up on the product counters.
	resp, product := doJSON(t, http.MethodGet, server.URL+"/api/products/chair", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), product["on_hand"])
	assert.Equal(t, float64(6), product["available"])
}

func TestAPI_DeliveryOrder_IncludesTransport(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	id := createOrder(t, server.URL, map[string]any{
		"delivery_type": "delivery",
		"address":       "Venue, Hamburg",
		"items":         []map[string]any{{"product_id": "chair", "quantity": 4}},
	})

	resp, quote := doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/orders/%s/delivery-quote", server.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 400 cm³ in one van: 20 fixed + 1/km x 20 km round trip = 40
	assert.Equal(t, float64(1), quote["units"])
	assert.Equal(t, "40", quote["total"])
}

func TestAPI_InsufficientStock_Conflict(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	resp, decoded := doJSON(t, http.MethodPost, server.URL+"/api/orders", map[string]any{
		"delivery_type": "pickup",
		"items":         []map[string]any{{"product_id": "chair", "quantity": 15}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decoded["error"], "Insufficient stock")

	// Nothing was committed.
	resp, product := doJSON(t, http.MethodGet, server.URL+"/api/products/chair", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), product["available"])
}

func TestAPI_UnknownProduct_BadRequest(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/orders", map[string]any{
		"delivery_type": "pickup",
		"items":         []map[string]any{{"product_id": "ghost", "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_FullLifecycle(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	id := createOrder(t, server.URL, map[string]any{
		"delivery_type": "pickup",
		"items":         []map[string]any{{"product_id": "chair", "quantity": 5}},
	})

	statusURL := fmt.Sprintf("%s/api/orders/%s/status", server.URL, id)

	resp, _ := doJSON(t, http.MethodPost, statusURL, map[string]any{"status": "reserved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, statusURL, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Goods physically leave the warehouse at in_progress.
	resp, product := doJSON(t, http.MethodGet, server.URL+"/api/products/chair", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), product["on_hand"])
	assert.Equal(t, float64(5), product["available"])

	// Receipt, then archive. Counters return to the seed.
	resp, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/orders/%s/receipt", server.URL, id), map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, statusURL, map[string]any{"status": "archived"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, product = doJSON(t, http.MethodGet, server.URL+"/api/products/chair", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), product["on_hand"])
	assert.Equal(t, float64(10), product["available"])
}

func TestAPI_ArchiveWithoutReceipt_Unprocessable(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	id := createOrder(t, server.URL, map[string]any{
		"delivery_type": "pickup",
		"items":         []map[string]any{{"product_id": "chair", "quantity": 5}},
	})

	resp, decoded := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/orders/%s/status", server.URL, id),
		map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decoded["error"], "Return quantities required")
}

func TestAPI_ArchiveWithPartialReturn(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	id := createOrder(t, server.URL, map[string]any{
		"delivery_type": "pickup",
		"items":         []map[string]any{{"product_id": "chair", "quantity": 5}},
	})
	statusURL := fmt.Sprintf("%s/api/orders/%s/status", server.URL, id)

	resp, _ := doJSON(t, http.MethodPost, statusURL, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 2 chairs broke; only 3 come back.
	resp, _ = doJSON(t, http.MethodPost, statusURL, map[string]any{
		"status":            "archived",
		"return_quantities": map[string]int{"chair": 3},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, product := doJSON(t, http.MethodGet, server.URL+"/api/products/chair", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(8), product["on_hand"])
	assert.Equal(t, float64(8), product["available"])
}

func TestAPI_DeclineReleasesStock(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	id := createOrder(t, server.URL, map[string]any{
		"delivery_type": "pickup",
		"items":         []map[string]any{{"product_id": "chair", "quantity": 5}},
	})

	resp, _ := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/orders/%s/status", server.URL, id),
		map[string]any{"status": "declined"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, product := doJSON(t, http.MethodGet, server.URL+"/api/products/chair", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), product["available"])

	// The ledger is empty again.
	res, err := http.Get(fmt.Sprintf("%s/api/orders/%s/ledger", server.URL, id))
	require.NoError(t, err)
	defer res.Body.Close()
	var entries []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&entries))
	assert.Empty(t, entries)
}

func TestAPI_ReplaceItems_Reprices(t *testing.T) {
	server := newTestServer(t)
	seedCatalog(t, server.URL)

	id := createOrder(t, server.URL, map[string]any{
		"delivery_type": "pickup",
		"items":         []map[string]any{{"product_id": "chair", "quantity": 2}},
	})

	resp, decoded := doJSON(t, http.MethodPut,
		fmt.Sprintf("%s/api/orders/%s/items", server.URL, id),
		map[string]any{"items": []map[string]any{{"product_id": "chair", "quantity": 6}}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	totals := decoded["totals"].(map[string]any)
	assert.Equal(t, "60", totals["items"])

	resp, product := doJSON(t, http.MethodGet, server.URL+"/api/products/chair", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(4), product["available"])
}

func TestAPI_GetMissingOrder_NotFound(t *testing.T) {
	server := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/orders/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_InvalidDeliveryType_BadRequest(t *testing.T) {
	server := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/orders", map[string]any{
		"delivery_type": "teleport",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
