package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"orderdesk/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNoItems             = errors.New("order must contain at least one item")
	ErrNoOrderItems        = errors.New("order has no items")
	ErrPriceExceedsCeiling = errors.New("selling price exceeds mrp")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvoicePathRequired = errors.New("invoice path required")
	ErrInvoiceFileMissing  = errors.New("invoice file recorded but missing")
	ErrInvoiceGenFailed    = errors.New("invoice generation failed")
)

// Derived invalid-input sentinels. They unwrap to ErrInvalidInput so callers
// can match either the coarse or the fine failure.
var (
	ErrProductRequired = fmt.Errorf("%w: product id required", ErrInvalidInput)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidInput)
	ErrInvalidPrice    = fmt.Errorf("%w: selling price must be non-negative", ErrInvalidInput)
	ErrDateRequired    = fmt.Errorf("%w: date required", ErrInvalidInput)
)

// PriceCeilingError reports a selling price above the product's MRP with
// enough context to log and display without a second lookup.
type PriceCeilingError struct {
	ProductID    string
	MRP          decimal.Decimal
	SellingPrice decimal.Decimal
}

func (e *PriceCeilingError) Error() string {
	return fmt.Sprintf("selling price %s exceeds mrp %s for product %s",
		e.SellingPrice.String(), e.MRP.String(), e.ProductID)
}

func (e *PriceCeilingError) Unwrap() error { return ErrPriceExceedsCeiling }

// StockError reports a reduction that would drive inventory negative.
type StockError struct {
	ProductID string
	Available int64
	Requested int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type Repository interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)
	// UpsertInventory creates the row if absent, otherwise replaces the
	// quantity with the given value. The batch-add path deliberately
	// overwrites rather than increments; only ReduceInventory is relative.
	UpsertInventory(ctx context.Context, productID string, quantity int64) error
	// ReduceInventory decrements atomically and fails with a StockError if
	// the decrement would drive the quantity negative.
	ReduceInventory(ctx context.Context, productID string, quantity int64) error

	// CreateOrder validates each line against the product's MRP and reserves
	// inventory per line, in input order, then persists the order and its
	// items. The whole sequence is one atomic unit: any failure leaves the
	// store exactly as it was.
	CreateOrder(ctx context.Context, items []domain.OrderLine) (string, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	// UpdateOrderStatus moves the status forward. An invoiced order never
	// returns to created.
	UpdateOrderStatus(ctx context.Context, orderID string, status string) error
	// AttachInvoice sets the invoice path and the invoiced status together.
	// There is no previous-status guard: re-attaching re-stamps the path.
	AttachInvoice(ctx context.Context, orderID string, path string) error
	SearchOrders(ctx context.Context, filter domain.OrderFilter, page int, size int) ([]domain.Order, error)
	CountOrders(ctx context.Context, filter domain.OrderFilter) (int64, error)

	// AggregateDaySales computes the invoiced-order measures for the
	// half-open window [from, to), bucketing by the order's update time.
	AggregateDaySales(ctx context.Context, from time.Time, to time.Time) (domain.DaySales, error)
	UpsertDaySales(ctx context.Context, row domain.DaySales) error
	GetDaySales(ctx context.Context, day time.Time) (*domain.DaySales, error)
}
