// Package memory provides an in-memory Repository used by tests and by the
// server when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"orderdesk/backend/internal/domain"
	"orderdesk/backend/internal/store"
	"orderdesk/backend/internal/xid"
)

type Store struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	inventory  map[string]domain.Inventory
	orders     map[string]domain.Order
	orderItems map[string][]domain.OrderItem
	daySales   map[string]domain.DaySales
}

func New() *Store {
	return &Store{
		products:   make(map[string]domain.Product),
		inventory:  make(map[string]domain.Inventory),
		orders:     make(map[string]domain.Order),
		orderItems: make(map[string][]domain.OrderItem),
		daySales:   make(map[string]domain.DaySales),
	}
}

// NewSeeded returns a store preloaded with a small catalog so the server is
// usable out of the box without a database.
func NewSeeded() *Store {
	s := New()
	seed := []struct {
		product domain.Product
		onHand  int64
	}{
		{domain.Product{ID: "prd-espresso-beans", Barcode: "8991002001019", Name: "Espresso Beans 1kg", MRP: decimal.NewFromFloat(24.50), ClientID: "client-demo"}, 40},
		{domain.Product{ID: "prd-drip-filter", Barcode: "8991002001026", Name: "Drip Filter Pack", MRP: decimal.NewFromFloat(6.00), ClientID: "client-demo"}, 120},
		{domain.Product{ID: "prd-cold-brew", Barcode: "8991002001033", Name: "Cold Brew Bottle", MRP: decimal.NewFromFloat(4.75), ClientID: "client-demo"}, 60},
	}
	now := time.Now().UTC()
	for _, row := range seed {
		s.products[row.product.ID] = row.product
		s.inventory[row.product.ID] = domain.Inventory{ProductID: row.product.ID, Quantity: row.onHand, UpdatedAt: now}
	}
	return s
}

// PutProduct registers a product in the catalog. Tests use it to arrange
// state directly.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := p
	return &clone, nil
}

func (s *Store) GetInventory(_ context.Context, productID string) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.inventory[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := inv
	return &clone, nil
}

func (s *Store) UpsertInventory(_ context.Context, productID string, quantity int64) error {
	if strings.TrimSpace(productID) == "" {
		return store.ErrProductRequired
	}
	if quantity < 0 {
		return store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace, not add.
	s.inventory[productID] = domain.Inventory{
		ProductID: productID,
		Quantity:  quantity,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *Store) ReduceInventory(_ context.Context, productID string, quantity int64) error {
	if quantity < 1 {
		return store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reduceLocked(productID, quantity)
}

func (s *Store) reduceLocked(productID string, quantity int64) error {
	inv, ok := s.inventory[productID]
	if !ok {
		return store.ErrNotFound
	}
	if inv.Quantity < quantity {
		return &store.StockError{ProductID: productID, Available: inv.Quantity, Requested: quantity}
	}
	inv.Quantity -= quantity
	inv.UpdatedAt = time.Now().UTC()
	s.inventory[productID] = inv
	return nil
}

func (s *Store) CreateOrder(_ context.Context, items []domain.OrderLine) (string, error) {
	if len(items) == 0 {
		return "", store.ErrNoItems
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage the decrements on a copy so a failure partway through leaves
	// the live inventory untouched.
	staged := make(map[string]int64, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return "", store.ErrProductRequired
		}
		if item.Quantity < 1 {
			return "", store.ErrInvalidQuantity
		}
		if item.SellingPrice.IsNegative() {
			return "", store.ErrInvalidPrice
		}

		p, ok := s.products[item.ProductID]
		if !ok {
			return "", store.ErrNotFound
		}
		if item.SellingPrice.GreaterThan(p.MRP) {
			return "", &store.PriceCeilingError{
				ProductID:    item.ProductID,
				MRP:          p.MRP,
				SellingPrice: item.SellingPrice,
			}
		}

		available, ok := staged[item.ProductID]
		if !ok {
			inv, found := s.inventory[item.ProductID]
			if !found {
				return "", store.ErrNotFound
			}
			available = inv.Quantity
		}
		if available < item.Quantity {
			return "", &store.StockError{ProductID: item.ProductID, Available: available, Requested: item.Quantity}
		}
		staged[item.ProductID] = available - item.Quantity
	}

	now := time.Now().UTC()
	for productID, remaining := range staged {
		s.inventory[productID] = domain.Inventory{ProductID: productID, Quantity: remaining, UpdatedAt: now}
	}

	orderID := xid.New("ord")
	s.orders[orderID] = domain.Order{
		ID:        orderID,
		Status:    domain.OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	rows := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		rows = append(rows, domain.OrderItem{
			ID:           xid.New("itm"),
			OrderID:      orderID,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			SellingPrice: item.SellingPrice,
		})
	}
	s.orderItems[orderID] = rows

	return orderID, nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := order
	return &clone, nil
}

func (s *Store) GetOrderItems(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[orderID]; !ok {
		return nil, store.ErrNotFound
	}
	items := s.orderItems[orderID]
	out := make([]domain.OrderItem, len(items))
	copy(out, items)
	return out, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID string, status string) error {
	if status != domain.OrderStatusCreated && status != domain.OrderStatusInvoiced {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	// Status only moves forward: an invoiced order never returns to created.
	if order.Status == domain.OrderStatusInvoiced && status == domain.OrderStatusCreated {
		return fmt.Errorf("%w: invoiced order cannot move back to created", store.ErrInvalidInput)
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	return nil
}

func (s *Store) AttachInvoice(_ context.Context, orderID string, path string) error {
	if strings.TrimSpace(path) == "" {
		return store.ErrInvoicePathRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	order.InvoicePath = path
	order.Status = domain.OrderStatusInvoiced
	order.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	return nil
}

func (s *Store) SearchOrders(_ context.Context, filter domain.OrderFilter, page int, size int) ([]domain.Order, error) {
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = 20
	}

	s.mu.RLock()
	matched := s.matchLocked(filter)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start := page * size
	if start >= len(matched) {
		return []domain.Order{}, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (s *Store) CountOrders(_ context.Context, filter domain.OrderFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matchLocked(filter))), nil
}

func (s *Store) matchLocked(filter domain.OrderFilter) []domain.Order {
	matched := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if filter.ID != "" && order.ID != filter.ID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if !filter.CreatedFrom.IsZero() && order.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && !order.CreatedAt.Before(filter.CreatedTo) {
			continue
		}
		matched = append(matched, order)
	}
	return matched
}

func (s *Store) AggregateDaySales(_ context.Context, from time.Time, to time.Time) (domain.DaySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := domain.DaySales{Day: from, TotalRevenue: decimal.Zero}
	for _, order := range s.orders {
		if order.Status != domain.OrderStatusInvoiced {
			continue
		}
		if order.UpdatedAt.Before(from) || !order.UpdatedAt.Before(to) {
			continue
		}
		// An order without item rows contributes nothing, matching the
		// postgres join.
		if len(s.orderItems[order.ID]) == 0 {
			continue
		}
		row.InvoicedOrdersCount++
		for _, item := range s.orderItems[order.ID] {
			row.InvoicedItemsCount += item.Quantity
			lineTotal := item.SellingPrice.Mul(decimal.NewFromInt(item.Quantity))
			row.TotalRevenue = row.TotalRevenue.Add(lineTotal)
		}
	}
	return row, nil
}

func (s *Store) UpsertDaySales(_ context.Context, row domain.DaySales) error {
	if row.Day.IsZero() {
		return store.ErrDateRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row.UpdatedAt = time.Now().UTC()
	s.daySales[daySalesKey(row.Day)] = row
	return nil
}

func (s *Store) GetDaySales(_ context.Context, day time.Time) (*domain.DaySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.daySales[daySalesKey(day)]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := row
	return &clone, nil
}

func daySalesKey(day time.Time) string {
	return day.UTC().Format(time.RFC3339)
}
