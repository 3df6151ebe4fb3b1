package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"orderdesk/backend/internal/domain"
	"orderdesk/backend/internal/store"
	"orderdesk/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, barcode, name, mrp, client_id
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.Barcode, &p.Name, &p.MRP, &p.ClientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, quantity, updated_at
		FROM inventory
		WHERE product_id = $1
	`, productID).Scan(&inv.ProductID, &inv.Quantity, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return &inv, nil
}

func (s *Store) UpsertInventory(ctx context.Context, productID string, quantity int64) error {
	if strings.TrimSpace(productID) == "" {
		return store.ErrProductRequired
	}
	if quantity < 0 {
		return store.ErrInvalidQuantity
	}

	// Replace, not add: the batch path sets the row to the given value.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (product_id, quantity, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
	`, productID, quantity)
	return err
}

func (s *Store) ReduceInventory(ctx context.Context, productID string, quantity int64) error {
	if quantity < 1 {
		return store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := reduceInventoryTx(ctx, tx, productID, quantity); err != nil {
		return err
	}

	return tx.Commit()
}

// reduceInventoryTx locks the row and performs the conditional decrement
// inside the caller's transaction so the read and the write are one unit.
func reduceInventoryTx(ctx context.Context, tx *sql.Tx, productID string, quantity int64) error {
	var available int64
	err := tx.QueryRowContext(ctx, `
		SELECT quantity
		FROM inventory
		WHERE product_id = $1
		FOR UPDATE
	`, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if available < quantity {
		return &store.StockError{ProductID: productID, Available: available, Requested: quantity}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - $1, updated_at = now()
		WHERE product_id = $2 AND quantity >= $1
	`, quantity, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &store.StockError{ProductID: productID, Available: available, Requested: quantity}
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, items []domain.OrderLine) (string, error) {
	if len(items) == 0 {
		return "", store.ErrNoItems
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	// Validate and reserve per line, in input order. The first failing line
	// aborts the whole transaction, so no partial reservation survives.
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

		var mrp decimal.Decimal
		err := tx.QueryRowContext(ctx, `
			SELECT mrp
			FROM products
			WHERE id = $1
		`, item.ProductID).Scan(&mrp)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", store.ErrNotFound
			}
			return "", err
		}
		if item.SellingPrice.GreaterThan(mrp) {
			return "", &store.PriceCeilingError{
				ProductID:    item.ProductID,
				MRP:          mrp,
				SellingPrice: item.SellingPrice,
			}
		}

		if err := reduceInventoryTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return "", err
		}
	}

	orderID := xid.New("ord")
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, status, invoice_path, created_at, updated_at)
		VALUES ($1,$2,NULL,$3,$3)
	`, orderID, domain.OrderStatusCreated, now)
	if err != nil {
		return "", err
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, selling_price)
			VALUES ($1,$2,$3,$4,$5)
		`, xid.New("itm"), orderID, item.ProductID, item.Quantity, item.SellingPrice)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return orderID, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	var invoicePath sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, invoice_path, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&order.ID, &order.Status, &invoicePath, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if invoicePath.Valid {
		order.InvoicePath = invoicePath.String
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, selling_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.SellingPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status string) error {
	if status != domain.OrderStatusCreated && status != domain.OrderStatusInvoiced {
		return store.ErrInvalidInput
	}

	// Status only moves forward: the WHERE clause refuses the
	// invoiced-to-created downgrade.
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1 AND NOT (status = $3 AND $2 = $4)
	`, orderID, status, domain.OrderStatusInvoiced, domain.OrderStatusCreated)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return fmt.Errorf("%w: invoiced order cannot move back to created", store.ErrInvalidInput)
	}
	return nil
}

func (s *Store) AttachInvoice(ctx context.Context, orderID string, path string) error {
	if strings.TrimSpace(path) == "" {
		return store.ErrInvoicePathRequired
	}

	// Path and status move together; a second attach re-stamps both.
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET invoice_path = $2, status = $3, updated_at = now()
		WHERE id = $1
	`, orderID, path, domain.OrderStatusInvoiced)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SearchOrders(ctx context.Context, filter domain.OrderFilter, page int, size int) ([]domain.Order, error) {
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = 20
	}
	offset := page * size

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, invoice_path, created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR id = $1)
			AND ($2 = '' OR status = $2)
			AND ($3::timestamptz IS NULL OR created_at >= $3)
			AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5 OFFSET $6
	`, filter.ID, filter.Status, nullTime(filter.CreatedFrom), nullTime(filter.CreatedTo), size, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, size)
	for rows.Next() {
		var order domain.Order
		var invoicePath sql.NullString
		if err := rows.Scan(&order.ID, &order.Status, &invoicePath, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		if invoicePath.Valid {
			order.InvoicePath = invoicePath.String
		}
		order.CreatedAt = order.CreatedAt.UTC()
		order.UpdatedAt = order.UpdatedAt.UTC()
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) CountOrders(ctx context.Context, filter domain.OrderFilter) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint
		FROM orders
		WHERE ($1 = '' OR id = $1)
			AND ($2 = '' OR status = $2)
			AND ($3::timestamptz IS NULL OR created_at >= $3)
			AND ($4::timestamptz IS NULL OR created_at < $4)
	`, filter.ID, filter.Status, nullTime(filter.CreatedFrom), nullTime(filter.CreatedTo)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) AggregateDaySales(ctx context.Context, from time.Time, to time.Time) (domain.DaySales, error) {
	row := domain.DaySales{Day: from, TotalRevenue: decimal.Zero}

	// Bucketing is by update time: an order counts as sales on the day it
	// was invoiced, not the day it was opened.
	var orderCount, itemCount sql.NullInt64
	var revenue decimal.NullDecimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT o.id)::bigint,
			COALESCE(SUM(oi.quantity),0)::bigint,
			COALESCE(SUM(oi.quantity * oi.selling_price),0)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status = $1
			AND o.updated_at >= $2
			AND o.updated_at < $3
	`, domain.OrderStatusInvoiced, from, to).Scan(&orderCount, &itemCount, &revenue)
	if err != nil {
		return row, err
	}
	if orderCount.Valid {
		row.InvoicedOrdersCount = orderCount.Int64
	}
	if itemCount.Valid {
		row.InvoicedItemsCount = itemCount.Int64
	}
	if revenue.Valid {
		row.TotalRevenue = revenue.Decimal
	}
	return row, nil
}

func (s *Store) UpsertDaySales(ctx context.Context, row domain.DaySales) error {
	if row.Day.IsZero() {
		return store.ErrDateRequired
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO day_sales (id, day, invoiced_orders_count, invoiced_items_count, total_revenue, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (day)
		DO UPDATE SET invoiced_orders_count = EXCLUDED.invoiced_orders_count,
			invoiced_items_count = EXCLUDED.invoiced_items_count,
			total_revenue = EXCLUDED.total_revenue,
			updated_at = now()
	`, xid.New("ds"), row.Day, row.InvoicedOrdersCount, row.InvoicedItemsCount, row.TotalRevenue)
	return err
}

func (s *Store) GetDaySales(ctx context.Context, day time.Time) (*domain.DaySales, error) {
	var row domain.DaySales
	err := s.db.QueryRowContext(ctx, `
		SELECT day, invoiced_orders_count, invoiced_items_count, total_revenue, updated_at
		FROM day_sales
		WHERE day = $1
	`, day).Scan(&row.Day, &row.InvoicedOrdersCount, &row.InvoicedItemsCount, &row.TotalRevenue, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	row.UpdatedAt = row.UpdatedAt.UTC()
	return &row, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
