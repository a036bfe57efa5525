// Package store provides stock.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/rental-engine/catalog"
	"github.com/warp/rental-engine/order"
	"github.com/warp/rental-engine/stock"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	entries  map[stock.EntryKey]stock.Entry
	counters map[catalog.ProductID]*productCounters
}

type productCounters struct {
	OnHand    int
	Available int
}

func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[stock.EntryKey]stock.Entry),
		counters: make(map[catalog.ProductID]*productCounters),
	}
}

// SetCounters seeds a product's counters. Test/dev helper.
func (m *Memory) SetCounters(productID catalog.ProductID, onHand, available int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[productID] = &productCounters{OnHand: onHand, Available: available}
}

// Counters returns the product's current counters.
func (m *Memory) Counters(productID catalog.ProductID) (onHand, available int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.counters[productID]; ok {
		return c.OnHand, c.Available
	}
	return 0, 0
}

// =============================================================================
// ENTRY STORE
// =============================================================================

func (m *Memory) EntriesByOrder(_ context.Context, orderID order.ID) ([]stock.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesByOrderLocked(orderID), nil
}

func (m *Memory) entriesByOrderLocked(orderID order.ID) []stock.Entry {
	var result []stock.Entry
	for _, e := range m.entries {
		if e.OrderID == orderID {
			result = append(result, e)
		}
	}
	return result
}

func (m *Memory) InsertEntry(_ context.Context, e stock.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(e)
}

func (m *Memory) insertLocked(e stock.Entry) error {
	m.entries[e.Key()] = e
	return nil
}

func (m *Memory) UpdateEntry(_ context.Context, e stock.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(e)
}

func (m *Memory) updateLocked(e stock.Entry) error {
	if _, ok := m.entries[e.Key()]; !ok {
		return stock.ErrEntryNotFound
	}
	m.entries[e.Key()] = e
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, key stock.EntryKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(key)
}

func (m *Memory) deleteLocked(key stock.EntryKey) error {
	if _, ok := m.entries[key]; !ok {
		return stock.ErrEntryNotFound
	}
	delete(m.entries, key)
	return nil
}

// =============================================================================
// COUNTER STORE
// =============================================================================

func (m *Memory) AdjustCounters(_ context.Context, productID catalog.ProductID, stockDelta, availableDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustLocked(productID, stockDelta, availableDelta)
}

func (m *Memory) adjustLocked(productID catalog.ProductID, stockDelta, availableDelta int) error {
	c, ok := m.counters[productID]
	if !ok {
		c = &productCounters{}
		m.counters[productID] = c
	}
	c.OnHand = clampZero(c.OnHand + stockDelta)
	c.Available = clampZero(c.Available + availableDelta)
	return nil
}

func (m *Memory) AvailableQuantity(_ context.Context, productID catalog.ProductID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.counters[productID]; ok {
		return c.Available, nil
	}
	return 0, nil
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn within a simulated transaction: snapshot the state,
// run fn against a view writing directly, restore on error.
func (m *Memory) WithTx(_ context.Context, fn func(stock.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txMemoryView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	entries  map[stock.EntryKey]stock.Entry
	counters map[catalog.ProductID]*productCounters
}

func (m *Memory) snapshot() memorySnapshot {
	entries := make(map[stock.EntryKey]stock.Entry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	counters := make(map[catalog.ProductID]*productCounters, len(m.counters))
	for k, v := range m.counters {
		c := *v
		counters[k] = &c
	}
	return memorySnapshot{entries: entries, counters: counters}
}

func (m *Memory) restore(s memorySnapshot) {
	m.entries = s.entries
	m.counters = s.counters
}

type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) EntriesByOrder(_ context.Context, orderID order.ID) ([]stock.Entry, error) {
	return tv.parent.entriesByOrderLocked(orderID), nil
}

func (tv *txMemoryView) InsertEntry(_ context.Context, e stock.Entry) error {
	return tv.parent.insertLocked(e)
}

func (tv *txMemoryView) UpdateEntry(_ context.Context, e stock.Entry) error {
	return tv.parent.updateLocked(e)
}

func (tv *txMemoryView) DeleteEntry(_ context.Context, key stock.EntryKey) error {
	return tv.parent.deleteLocked(key)
}

func (tv *txMemoryView) AdjustCounters(_ context.Context, productID catalog.ProductID, stockDelta, availableDelta int) error {
	return tv.parent.adjustLocked(productID, stockDelta, availableDelta)
}

func (tv *txMemoryView) AvailableQuantity(_ context.Context, productID catalog.ProductID) (int, error) {
	if c, ok := tv.parent.counters[productID]; ok {
		return c.Available, nil
	}
	return 0, nil
}
