package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"orderdesk/backend/internal/domain"
	"orderdesk/backend/internal/store"
)

func putInvoicedOrder(s *Store, id string, updatedAt time.Time, quantity int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id] = domain.Order{
		ID:          id,
		Status:      domain.OrderStatusInvoiced,
		InvoicePath: "/tmp/INV-" + id + ".pdf",
		CreatedAt:   updatedAt.Add(-time.Hour),
		UpdatedAt:   updatedAt,
	}
	s.orderItems[id] = []domain.OrderItem{{
		ID:           "itm-" + id,
		OrderID:      id,
		ProductID:    "prd-1",
		Quantity:     quantity,
		SellingPrice: price,
	}}
}

func TestAggregateDaySalesWindowIsHalfOpen(t *testing.T) {
	s := New()
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	putInvoicedOrder(s, "ord-start", from, 1, decimal.NewFromFloat(5.00))
	putInvoicedOrder(s, "ord-last-tick", to.Add(-time.Nanosecond), 2, decimal.NewFromFloat(5.00))
	putInvoicedOrder(s, "ord-next-day", to, 4, decimal.NewFromFloat(5.00))
	putInvoicedOrder(s, "ord-before", from.Add(-time.Nanosecond), 8, decimal.NewFromFloat(5.00))

	row, err := s.AggregateDaySales(context.Background(), from, to)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if row.InvoicedOrdersCount != 2 {
		t.Fatalf("expected 2 orders inside [from, to), got %d", row.InvoicedOrdersCount)
	}
	if row.InvoicedItemsCount != 3 {
		t.Fatalf("expected 3 items, got %d", row.InvoicedItemsCount)
	}
	if !row.TotalRevenue.Equal(decimal.NewFromFloat(15.00)) {
		t.Fatalf("expected revenue 15.00, got %s", row.TotalRevenue.String())
	}
}

func TestAggregateDaySalesSkipsCreatedOrders(t *testing.T) {
	s := New()
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	putInvoicedOrder(s, "ord-open", from.Add(time.Hour), 3, decimal.NewFromFloat(2.00))
	s.mu.Lock()
	order := s.orders["ord-open"]
	order.Status = domain.OrderStatusCreated
	order.InvoicePath = ""
	s.orders["ord-open"] = order
	s.mu.Unlock()

	row, err := s.AggregateDaySales(context.Background(), from, to)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if row.InvoicedOrdersCount != 0 || row.InvoicedItemsCount != 0 || !row.TotalRevenue.IsZero() {
		t.Fatalf("created orders must not count, got %+v", row)
	}
}

func TestAggregateDaySalesSkipsItemlessOrders(t *testing.T) {
	s := New()
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	putInvoicedOrder(s, "ord-full", from.Add(time.Hour), 2, decimal.NewFromFloat(3.00))
	putInvoicedOrder(s, "ord-hollow", from.Add(2*time.Hour), 1, decimal.NewFromFloat(9.00))
	s.mu.Lock()
	s.orderItems["ord-hollow"] = nil
	s.mu.Unlock()

	row, err := s.AggregateDaySales(context.Background(), from, to)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if row.InvoicedOrdersCount != 1 {
		t.Fatalf("item-less order must not count, got %d orders", row.InvoicedOrdersCount)
	}
	if row.InvoicedItemsCount != 2 || !row.TotalRevenue.Equal(decimal.NewFromFloat(6.00)) {
		t.Fatalf("expected 2 items and revenue 6.00, got %+v", row)
	}
}

func TestUpsertDaySalesReplacesRow(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first := domain.DaySales{Day: day, InvoicedOrdersCount: 1, InvoicedItemsCount: 2, TotalRevenue: decimal.NewFromFloat(9.00)}
	if err := s.UpsertDaySales(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := domain.DaySales{Day: day, InvoicedOrdersCount: 3, InvoicedItemsCount: 7, TotalRevenue: decimal.NewFromFloat(41.00)}
	if err := s.UpsertDaySales(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetDaySales(ctx, day)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.InvoicedOrdersCount != 3 || got.InvoicedItemsCount != 7 || !got.TotalRevenue.Equal(decimal.NewFromFloat(41.00)) {
		t.Fatalf("expected replaced row, got %+v", got)
	}

	if err := s.UpsertDaySales(ctx, domain.DaySales{}); !errors.Is(err, store.ErrDateRequired) {
		t.Fatalf("expected date required for zero day, got %v", err)
	}
}

func TestSearchOrdersSortsNewestFirst(t *testing.T) {
	s := New()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	s.mu.Lock()
	for i, id := range []string{"ord-a", "ord-b", "ord-c"} {
		s.orders[id] = domain.Order{
			ID:        id,
			Status:    domain.OrderStatusCreated,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	s.mu.Unlock()

	orders, err := s.SearchOrders(context.Background(), domain.OrderFilter{}, 0, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "ord-c" || orders[1].ID != "ord-b" {
		t.Fatalf("expected newest-first page [ord-c ord-b], got %+v", orders)
	}

	rest, err := s.SearchOrders(context.Background(), domain.OrderFilter{}, 1, 2)
	if err != nil {
		t.Fatalf("search page 1: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "ord-a" {
		t.Fatalf("expected final page [ord-a], got %+v", rest)
	}

	total, err := s.CountOrders(context.Background(), domain.OrderFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
}

func TestSearchOrdersCreatedWindow(t *testing.T) {
	s := New()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	s.mu.Lock()
	s.orders["ord-in"] = domain.Order{ID: "ord-in", Status: domain.OrderStatusCreated, CreatedAt: base, UpdatedAt: base}
	s.orders["ord-out"] = domain.Order{ID: "ord-out", Status: domain.OrderStatusCreated, CreatedAt: base.AddDate(0, 0, 2), UpdatedAt: base.AddDate(0, 0, 2)}
	s.mu.Unlock()

	orders, err := s.SearchOrders(context.Background(), domain.OrderFilter{
		CreatedFrom: base.Add(-time.Hour),
		CreatedTo:   base.Add(time.Hour),
	}, 0, 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "ord-in" {
		t.Fatalf("expected only ord-in, got %+v", orders)
	}
}

func TestAttachInvoiceSetsPathAndStatusTogether(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	orderID, err := s.CreateOrder(ctx, []domain.OrderLine{
		{ProductID: "prd-espresso-beans", Quantity: 1, SellingPrice: decimal.NewFromFloat(20.00)},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := s.AttachInvoice(ctx, orderID, ""); !errors.Is(err, store.ErrInvoicePathRequired) {
		t.Fatalf("expected path required, got %v", err)
	}

	if err := s.AttachInvoice(ctx, orderID, "/tmp/INV-x.pdf"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusInvoiced || order.InvoicePath != "/tmp/INV-x.pdf" {
		t.Fatalf("path and status must move together, got %+v", order)
	}

	if err := s.AttachInvoice(ctx, "ord-ghost", "/tmp/INV-y.pdf"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateOrderStatusNeverMovesBackward(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	orderID, err := s.CreateOrder(ctx, []domain.OrderLine{
		{ProductID: "prd-espresso-beans", Quantity: 1, SellingPrice: decimal.NewFromFloat(20.00)},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := s.UpdateOrderStatus(ctx, orderID, "held"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unknown status to be rejected, got %v", err)
	}

	if err := s.UpdateOrderStatus(ctx, orderID, domain.OrderStatusInvoiced); err != nil {
		t.Fatalf("forward transition: %v", err)
	}
	if err := s.AttachInvoice(ctx, orderID, "/tmp/INV-z.pdf"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := s.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCreated); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected downgrade to be rejected, got %v", err)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusInvoiced || order.InvoicePath != "/tmp/INV-z.pdf" {
		t.Fatalf("rejected downgrade must leave the order untouched, got %+v", order)
	}

	// Re-asserting the current status stays allowed.
	if err := s.UpdateOrderStatus(ctx, orderID, domain.OrderStatusInvoiced); err != nil {
		t.Fatalf("idempotent invoiced update: %v", err)
	}
}
