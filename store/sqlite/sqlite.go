/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements catalog reads, order persistence and the stock ledger
  (stock.TxStore) on one database. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  catalog.Reader: product/qualification/transport lookups
  stock.TxStore:  ledger rows + atomic product counters

LEDGER IDENTITY:
  idx_stock_entries_natural enforces at most one ledger row per
  (order, product, kind) - the reconciler's natural key. The reconciler
  converges by diffing; the index is the backstop against duplicates.

COUNTER UPDATES:
  AdjustCounters is a single UPDATE relative to the stored values with a
  MAX(0, ...) floor. Counters are never loaded into Go and written back, so
  concurrent orders touching the same product cannot lose updates.

TRANSACTIONS:
  WithOrderTx gives callers one transaction spanning the order save and the
  ledger reconciliation, so readers never observe an order whose status
  changed but whose ledger has not converged.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - stock/store.go: interface contracts
  - stock/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/order"
	"github.com/warp/rental-engine/stock"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Installer qualifications (incl. the "any" sentinel row)
	CREATE TABLE IF NOT EXISTS qualifications (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		minimum_price TEXT NOT NULL DEFAULT '0',
		hourly_rate TEXT NOT NULL DEFAULT '0'
	);

	-- Transport classes for delivery allocation
	CREATE TABLE IF NOT EXISTS transport_classes (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		capacity TEXT NOT NULL DEFAULT '0',
		cost_per_km TEXT NOT NULL DEFAULT '0',
		cost_per_dispatch TEXT NOT NULL DEFAULT '0'
	);

	-- Products with their derived stock counters
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		on_hand INTEGER NOT NULL DEFAULT 0,
		available INTEGER NOT NULL DEFAULT 0,
		setup_minutes INTEGER NOT NULL DEFAULT 0,
		teardown_minutes INTEGER NOT NULL DEFAULT 0,
		min_installers INTEGER NOT NULL DEFAULT 0,
		qualification_id TEXT,
		unit_volume TEXT NOT NULL DEFAULT '0',
		transport_class_id TEXT,
		unit_price TEXT NOT NULL DEFAULT '0'
	);

	-- Orders with persisted totals
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		logistics TEXT NOT NULL DEFAULT '',
		warehouse_received_at TEXT,
		delivery_type TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		total_items TEXT NOT NULL DEFAULT '0',
		total_installation TEXT NOT NULL DEFAULT '0',
		total_dismantle TEXT NOT NULL DEFAULT '0',
		total_services TEXT NOT NULL DEFAULT '0',
		total_delivery TEXT NOT NULL DEFAULT '0',
		total_grand TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	-- Order items with price snapshots. product_id is '' once the product
	-- is deleted: the line keeps its money but leaves stock and delivery.
	CREATE TABLE IF NOT EXISTS order_items (
		order_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (order_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id);

	-- The fulfillment ledger
	CREATE TABLE IF NOT EXISTS stock_entries (
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		delta INTEGER NOT NULL,
		affects_stock BOOLEAN NOT NULL,
		affects_available BOOLEAN NOT NULL,
		applied BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one ledger row per (order, product, kind)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_entries_natural
		ON stock_entries(order_id, product_id, kind);
	CREATE INDEX IF NOT EXISTS idx_stock_entries_product
		ON stock_entries(product_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STOCK LEDGER (stock.EntryStore interface)
// =============================================================================

func (s *Store) EntriesByOrder(ctx context.Context, orderID order.ID) ([]stock.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesByOrder(ctx, s.db, orderID)
}

func entriesByOrder(ctx context.Context, db dbtx, orderID order.ID) ([]stock.Entry, error) {
	query := `
		SELECT order_id, product_id, kind, delta, affects_stock, affects_available, applied
		FROM stock_entries
		WHERE order_id = ?
		ORDER BY kind ASC, product_id ASC
	`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []stock.Entry
	for rows.Next() {
		var e stock.Entry
		if err := rows.Scan(&e.OrderID, &e.ProductID, &e.Kind, &e.Delta,
			&e.AffectsStock, &e.AffectsAvailable, &e.Applied); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) InsertEntry(ctx context.Context, e stock.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEntry(ctx, s.db, e)
}

func insertEntry(ctx context.Context, db dbtx, e stock.Entry) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_entries
		(order_id, product_id, kind, delta, affects_stock, affects_available, applied, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.OrderID, e.ProductID, e.Kind, e.Delta, e.AffectsStock, e.AffectsAvailable, e.Applied, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (s *Store) UpdateEntry(ctx context.Context, e stock.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEntry(ctx, s.db, e)
}

func updateEntry(ctx context.Context, db dbtx, e stock.Entry) error {
	res, err := db.ExecContext(ctx, `
		UPDATE stock_entries
		SET delta = ?, affects_stock = ?, affects_available = ?, applied = ?, updated_at = ?
		WHERE order_id = ? AND product_id = ? AND kind = ?
	`, e.Delta, e.AffectsStock, e.AffectsAvailable, e.Applied,
		time.Now().UTC().Format(time.RFC3339),
		e.OrderID, e.ProductID, e.Kind)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stock.ErrEntryNotFound
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, key stock.EntryKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntry(ctx, s.db, key)
}

func deleteEntry(ctx context.Context, db dbtx, key stock.EntryKey) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM stock_entries WHERE order_id = ? AND product_id = ? AND kind = ?
	`, key.OrderID, key.ProductID, key.Kind)
	if err != nil {
		return fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stock.ErrEntryNotFound
	}
	return nil
}

// =============================================================================
// PRODUCT COUNTERS (stock.CounterStore interface)
// =============================================================================

// AdjustCounters applies both deltas in one statement, relative to the
// stored values and floored at zero. This is the concurrency-critical path.
func (s *Store) AdjustCounters(ctx context.Context, productID catalog.ProductID, stockDelta, availableDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return adjustCounters(ctx, s.db, productID, stockDelta, availableDelta)
}

func adjustCounters(ctx context.Context, db dbtx, productID catalog.ProductID, stockDelta, availableDelta int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE products
		SET on_hand   = MAX(0, on_hand + ?),
		    available = MAX(0, available + ?)
		WHERE id = ?
	`, stockDelta, availableDelta, productID)
	if err != nil {
		return fmt.Errorf("failed to adjust counters for product %s: %w", productID, err)
	}
	return nil
}

func (s *Store) AvailableQuantity(ctx context.Context, productID catalog.ProductID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return availableQuantity(ctx, s.db, productID)
}

func availableQuantity(ctx context.Context, db dbtx, productID catalog.ProductID) (int, error) {
	var available int
	err := db.QueryRowContext(ctx,
		"SELECT available FROM products WHERE id = ?", productID,
	).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return available, err
}

// =============================================================================
// TRANSACTIONS (stock.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(stock.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// OrderTx is what WithOrderTx hands to its callback: the ledger store plus
// order persistence on the same transaction.
type OrderTx interface {
	stock.Store
	SaveOrder(ctx context.Context, o *order.Order) error
}

// WithOrderTx executes fn with the order save and the ledger reconciliation
// sharing one transaction boundary.
func (s *Store) WithOrderTx(ctx context.Context, fn func(OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) EntriesByOrder(ctx context.Context, orderID order.ID) ([]stock.Entry, error) {
	return entriesByOrder(ctx, ts.tx, orderID)
}

func (ts *txStore) InsertEntry(ctx context.Context, e stock.Entry) error {
	return insertEntry(ctx, ts.tx, e)
}

func (ts *txStore) UpdateEntry(ctx context.Context, e stock.Entry) error {
	return updateEntry(ctx, ts.tx, e)
}

func (ts *txStore) DeleteEntry(ctx context.Context, key stock.EntryKey) error {
	return deleteEntry(ctx, ts.tx, key)
}

func (ts *txStore) AdjustCounters(ctx context.Context, productID catalog.ProductID, stockDelta, availableDelta int) error {
	return adjustCounters(ctx, ts.tx, productID, stockDelta, availableDelta)
}

func (ts *txStore) AvailableQuantity(ctx context.Context, productID catalog.ProductID) (int, error) {
	return availableQuantity(ctx, ts.tx, productID)
}

func (ts *txStore) SaveOrder(ctx context.Context, o *order.Order) error {
	return saveOrder(ctx, ts.tx, o)
}

// =============================================================================
// CATALOG (catalog.Reader interface + writers)
// =============================================================================

// SaveProduct upserts a product. The counter columns are only written on
// first insert: afterwards AdjustCounters alone moves them.
func (s *Store) SaveProduct(ctx context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO products
		(id, name, on_hand, available, setup_minutes, teardown_minutes,
		 min_installers, qualification_id, unit_volume, transport_class_id, unit_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			setup_minutes = excluded.setup_minutes,
			teardown_minutes = excluded.teardown_minutes,
			min_installers = excluded.min_installers,
			qualification_id = excluded.qualification_id,
			unit_volume = excluded.unit_volume,
			transport_class_id = excluded.transport_class_id,
			unit_price = excluded.unit_price
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.OnHand, p.Available,
		p.SetupMinutes, p.TeardownMinutes, p.MinInstallers,
		nullString(string(p.QualificationID)),
		p.UnitVolume.String(),
		nullString(string(p.TransportClassID)),
		p.UnitPrice.String(),
	)
	return err
}

// DeleteProduct removes a product from the catalog. Order items keep their
// price snapshots; ledger rows for the product stay until their orders
// reconcile.
func (s *Store) DeleteProduct(ctx context.Context, id catalog.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	return err
}

const productColumns = `id, name, on_hand, available, setup_minutes, teardown_minutes,
	min_installers, qualification_id, unit_volume, transport_class_id, unit_price`

func (s *Store) Product(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Products(ctx context.Context, ids []catalog.ProductID) (map[catalog.ProductID]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[catalog.ProductID]catalog.Product, len(ids))
	for _, id := range ids {
		row := s.db.QueryRowContext(ctx,
			"SELECT "+productColumns+" FROM products WHERE id = ?", id)
		p, err := scanProduct(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (catalog.Product, error) {
	var (
		p              catalog.Product
		qualification  sql.NullString
		transportClass sql.NullString
		unitVolume     string
		unitPrice      string
	)

	err := row.Scan(&p.ID, &p.Name, &p.OnHand, &p.Available,
		&p.SetupMinutes, &p.TeardownMinutes, &p.MinInstallers,
		&qualification, &unitVolume, &transportClass, &unitPrice)
	if err != nil {
		return p, err
	}

	p.QualificationID = catalog.QualificationID(qualification.String)
	p.TransportClassID = catalog.TransportClassID(transportClass.String)
	p.UnitVolume = mustDecimal(unitVolume)
	p.UnitPrice = mustDecimal(unitPrice)
	return p, nil
}

func (s *Store) SaveQualification(ctx context.Context, q catalog.Qualification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO qualifications (id, name, minimum_price, hourly_rate)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			minimum_price = excluded.minimum_price,
			hourly_rate = excluded.hourly_rate
	`, q.ID, q.Name, q.MinimumPrice.String(), q.HourlyRate.String())
	return err
}

func (s *Store) Qualification(ctx context.Context, id catalog.QualificationID) (*catalog.Qualification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		q            catalog.Qualification
		minimumPrice string
		hourlyRate   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, minimum_price, hourly_rate FROM qualifications WHERE id = ?", id,
	).Scan(&q.ID, &q.Name, &minimumPrice, &hourlyRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	q.MinimumPrice = mustDecimal(minimumPrice)
	q.HourlyRate = mustDecimal(hourlyRate)
	return &q, nil
}

func (s *Store) SaveTransportClass(ctx context.Context, t catalog.TransportClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transport_classes (id, label, capacity, cost_per_km, cost_per_dispatch)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			capacity = excluded.capacity,
			cost_per_km = excluded.cost_per_km,
			cost_per_dispatch = excluded.cost_per_dispatch
	`, t.ID, t.Label, t.Capacity.String(), t.CostPerKm.String(), t.CostPerDispatch.String())
	return err
}

func (s *Store) TransportClass(ctx context.Context, id catalog.TransportClassID) (*catalog.TransportClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		t               catalog.TransportClass
		capacity        string
		costPerKm       string
		costPerDispatch string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, label, capacity, cost_per_km, cost_per_dispatch FROM transport_classes WHERE id = ?", id,
	).Scan(&t.ID, &t.Label, &capacity, &costPerKm, &costPerDispatch)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Capacity = mustDecimal(capacity)
	t.CostPerKm = mustDecimal(costPerKm)
	t.CostPerDispatch = mustDecimal(costPerDispatch)
	return &t, nil
}

// =============================================================================
// ORDER STORE
// =============================================================================

// SaveOrder upserts the order and replaces its items.
func (s *Store) SaveOrder(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveOrder(ctx, sqlTx, o); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func saveOrder(ctx context.Context, db dbtx, o *order.Order) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	var receivedAt *string
	if o.WarehouseReceivedAt != nil {
		t := o.WarehouseReceivedAt.UTC().Format(time.RFC3339)
		receivedAt = &t
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO orders
		(id, status, logistics, warehouse_received_at, delivery_type, address,
		 total_items, total_installation, total_dismantle, total_services,
		 total_delivery, total_grand, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			logistics = excluded.logistics,
			warehouse_received_at = excluded.warehouse_received_at,
			delivery_type = excluded.delivery_type,
			address = excluded.address,
			total_items = excluded.total_items,
			total_installation = excluded.total_installation,
			total_dismantle = excluded.total_dismantle,
			total_services = excluded.total_services,
			total_delivery = excluded.total_delivery,
			total_grand = excluded.total_grand,
			updated_at = excluded.updated_at
	`,
		o.ID, o.Status, o.Logistics, receivedAt, o.DeliveryType, o.Address,
		o.Totals.Items.String(), o.Totals.Installation.String(),
		o.Totals.Dismantle.String(), o.Totals.Services.String(),
		o.Totals.Delivery.String(), o.Totals.Grand.String(),
		o.CreatedAt.Format(time.RFC3339), o.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = ?", o.ID); err != nil {
		return fmt.Errorf("failed to replace order items: %w", err)
	}
	for i, it := range o.Items {
		_, err := db.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)
		`, o.ID, i, it.ProductID, it.Quantity, it.UnitPrice.String())
		if err != nil {
			return fmt.Errorf("failed to save order item: %w", err)
		}
	}
	return nil
}

// GetOrder retrieves an order with its items. Returns nil if not found.
func (s *Store) GetOrder(ctx context.Context, id order.ID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		o          order.Order
		receivedAt sql.NullString
		totals     [6]string
		createdAt  string
		updatedAt  string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, logistics, warehouse_received_at, delivery_type, address,
		       total_items, total_installation, total_dismantle, total_services,
		       total_delivery, total_grand, created_at, updated_at
		FROM orders WHERE id = ?
	`, id).Scan(&o.ID, &o.Status, &o.Logistics, &receivedAt, &o.DeliveryType, &o.Address,
		&totals[0], &totals[1], &totals[2], &totals[3], &totals[4], &totals[5],
		&createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if receivedAt.Valid {
		t, err := time.Parse(time.RFC3339, receivedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse warehouse receipt time: %w", err)
		}
		o.WarehouseReceivedAt = &t
	}
	o.Totals = order.Totals{
		Items:        mustDecimal(totals[0]),
		Installation: mustDecimal(totals[1]),
		Dismantle:    mustDecimal(totals[2]),
		Services:     mustDecimal(totals[3]),
		Delivery:     mustDecimal(totals[4]),
		Grand:        mustDecimal(totals[5]),
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it order.Item
		var unitPrice string
		if err := rows.Scan(&it.ProductID, &it.Quantity, &unitPrice); err != nil {
			return nil, err
		}
		it.UnitPrice = mustDecimal(unitPrice)
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

// ListOrders returns all orders newest first, without their items.
func (s *Store) ListOrders(ctx context.Context) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, logistics, delivery_type, address, total_grand, created_at
		FROM orders ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		var o order.Order
		var grand, createdAt string
		if err := rows.Scan(&o.ID, &o.Status, &o.Logistics, &o.DeliveryType,
			&o.Address, &grand, &createdAt); err != nil {
			return nil, err
		}
		o.Totals.Grand = mustDecimal(grand)
		o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"stock_entries", "order_items", "orders", "products", "qualifications", "transport_classes"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
