package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is maintained by the catalog service; this backend only reads it.
// MRP is the maximum retail price a selling price may not exceed.
type Product struct {
	ID       string          `json:"id"`
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name"`
	MRP      decimal.Decimal `json:"mrp"`
	ClientID string          `json:"client_id"`
}

// Inventory holds the on-hand quantity for one product. Rows are created
// lazily by the batch upsert path and never deleted.
type Inventory struct {
	ProductID string    `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	OrderStatusCreated  = "created"
	OrderStatusInvoiced = "invoiced"
)

type Order struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	InvoicePath string    `json:"invoice_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrderItem lines are immutable once the order is committed.
type OrderItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	ProductID    string          `json:"product_id"`
	Quantity     int64           `json:"quantity"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// OrderLine is one requested line of a new order. Product ids come from the
// upstream barcode resolver; this backend never looks up by barcode itself.
type OrderLine struct {
	ProductID    string          `json:"product_id" validate:"required"`
	Quantity     int64           `json:"quantity" validate:"gt=0"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

type OrderCreateRequest struct {
	Items []OrderLine `json:"items" validate:"required,min=1,dive"`
}

type OrderCreateResponse struct {
	OrderID string `json:"order_id"`
}

// OrderFilter narrows order searches. Zero values mean "no constraint".
type OrderFilter struct {
	ID          string
	Status      string
	CreatedFrom time.Time
	CreatedTo   time.Time
}

type OrderSearchResponse struct {
	Orders []Order `json:"orders"`
	Total  int64   `json:"total"`
	Page   int     `json:"page"`
	Size   int     `json:"size"`
}

type OrderItemsResponse struct {
	OrderID string      `json:"order_id"`
	Items   []OrderItem `json:"items"`
}

type InventoryUpsertLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gte=0"`
}

// InventoryUpsertRequest replaces each product's on-hand quantity with the
// given value (it is not an additive restock).
type InventoryUpsertRequest struct {
	Items []InventoryUpsertLine `json:"items" validate:"required,min=1,dive"`
}

type InventoryResponse struct {
	Inventory Inventory `json:"inventory"`
}

// DaySales is the derived per-day aggregate over invoiced orders. Day is the
// start instant of the business-day window and keys the row; recomputation
// overwrites the measures in place.
type DaySales struct {
	Day                 time.Time       `json:"day"`
	InvoicedOrdersCount int64           `json:"invoiced_orders_count"`
	InvoicedItemsCount  int64           `json:"invoiced_items_count"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type DaySalesRequest struct {
	Date string `json:"date" validate:"required"`
}

type DaySalesResponse struct {
	DaySales DaySales `json:"day_sales"`
}

// Actor identifies the caller. Tokens are issued by the external auth
// service; this backend only verifies and decodes them.
type Actor struct {
	Username string
	Role     string
}

// InvoiceRenderRequest is the payload sent to the external invoice renderer.
type InvoiceRenderRequest struct {
	OrderID string              `json:"order_id"`
	Items   []InvoiceRenderLine `json:"items"`
}

type InvoiceRenderLine struct {
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// InvoiceRenderResponse carries the rendered document as a base64 payload.
type InvoiceRenderResponse struct {
	DocumentBase64 string `json:"document_base64"`
}
