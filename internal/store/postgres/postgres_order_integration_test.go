package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"orderdesk/backend/internal/domain"
	"orderdesk/backend/internal/store"
)

func TestCreateOrderReservesStockAtomically(t *testing.T) {
	databaseURL := os.Getenv("ORDERDESK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ORDERDESK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productA := fmt.Sprintf("prd-it-a-%d", stamp)
	productB := fmt.Sprintf("prd-it-b-%d", stamp)

	var createdOrders []string
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE product_id IN ($1, $2)`, productA, productB)
		for _, id := range createdOrders {
			_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
		}
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory WHERE product_id IN ($1, $2)`, productA, productB)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id IN ($1, $2)`, productA, productB)
	})

	for i, productID := range []string{productA, productB} {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, barcode, name, mrp, client_id)
			VALUES ($1, $2, 'Integration Widget', 10.00, 'client-it')
		`, productID, fmt.Sprintf("it-%d-%d", stamp, i)); err != nil {
			t.Fatalf("insert product: %v", err)
		}
		if err := s.UpsertInventory(ctx, productID, 10); err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	orderID, err := s.CreateOrder(ctx, []domain.OrderLine{
		{ProductID: productA, Quantity: 2, SellingPrice: decimal.NewFromFloat(9.00)},
		{ProductID: productB, Quantity: 3, SellingPrice: decimal.NewFromFloat(7.00)},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	createdOrders = append(createdOrders, orderID)

	invA, err := s.GetInventory(ctx, productA)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if invA.Quantity != 8 {
		t.Fatalf("expected 8 left for product A, got %d", invA.Quantity)
	}
	invB, err := s.GetInventory(ctx, productB)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if invB.Quantity != 7 {
		t.Fatalf("expected 7 left for product B, got %d", invB.Quantity)
	}

	// A failing second line must roll back the first line's reservation.
	_, err = s.CreateOrder(ctx, []domain.OrderLine{
		{ProductID: productA, Quantity: 1, SellingPrice: decimal.NewFromFloat(9.00)},
		{ProductID: productB, Quantity: 99, SellingPrice: decimal.NewFromFloat(7.00)},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	invA, err = s.GetInventory(ctx, productA)
	if err != nil {
		t.Fatalf("get inventory after rollback: %v", err)
	}
	if invA.Quantity != 8 {
		t.Fatalf("rollback must restore product A to 8, got %d", invA.Quantity)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusCreated {
		t.Fatalf("expected created status, got %s", order.Status)
	}

	if err := s.AttachInvoice(ctx, orderID, "/tmp/INV-"+orderID+".pdf"); err != nil {
		t.Fatalf("attach invoice: %v", err)
	}
	order, err = s.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("get order after attach: %v", err)
	}
	if order.Status != domain.OrderStatusInvoiced || order.InvoicePath == "" {
		t.Fatalf("expected invoiced order with path, got %+v", order)
	}

	if err := s.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCreated); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected downgrade to be rejected, got %v", err)
	}
	order, err = s.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("get order after rejected downgrade: %v", err)
	}
	if order.Status != domain.OrderStatusInvoiced || order.InvoicePath == "" {
		t.Fatalf("rejected downgrade must leave the order untouched, got %+v", order)
	}
}
