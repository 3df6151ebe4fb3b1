package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"orderdesk/backend/internal/cache"
	"orderdesk/backend/internal/domain"
	"orderdesk/backend/internal/invoice"
	"orderdesk/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	renderer   invoice.Renderer
	daySales   cache.DaySalesCache
	log        *logrus.Logger
	loc        *time.Location
	invoiceDir string
	cacheTTL   time.Duration
}

func New(repo store.Repository, renderer invoice.Renderer, daySales cache.DaySalesCache, log *logrus.Logger, loc *time.Location, invoiceDir string, cacheTTL time.Duration) *Service {
	if renderer == nil {
		renderer = invoice.LocalRenderer{}
	}
	if daySales == nil {
		daySales = cache.NoopDaySalesCache{}
	}
	if log == nil {
		log = logrus.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	if invoiceDir == "" {
		invoiceDir = "./invoices"
	}
	if cacheTTL < 1 {
		cacheTTL = 30 * time.Second
	}

	return &Service{
		repo:       repo,
		renderer:   renderer,
		daySales:   daySales,
		log:        log,
		loc:        loc,
		invoiceDir: invoiceDir,
		cacheTTL:   cacheTTL,
	}
}

// ValidateSellingPrice rejects a selling price above the product's MRP.
func (s *Service) ValidateSellingPrice(ctx context.Context, productID string, sellingPrice decimal.Decimal) error {
	if strings.TrimSpace(productID) == "" {
		return store.ErrProductRequired
	}
	if sellingPrice.IsNegative() {
		return store.ErrInvalidPrice
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if sellingPrice.GreaterThan(product.MRP) {
		return &store.PriceCeilingError{
			ProductID:    productID,
			MRP:          product.MRP,
			SellingPrice: sellingPrice,
		}
	}
	return nil
}

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderCreateResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.OrderCreateResponse{}, fmt.Errorf("%w: caller identity required", store.ErrInvalidInput)
	}

	if len(req.Items) == 0 {
		return domain.OrderCreateResponse{}, store.ErrNoItems
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return domain.OrderCreateResponse{}, store.ErrProductRequired
		}
		if item.Quantity < 1 {
			return domain.OrderCreateResponse{}, store.ErrInvalidQuantity
		}
		if item.SellingPrice.IsNegative() {
			return domain.OrderCreateResponse{}, store.ErrInvalidPrice
		}
	}

	orderID, err := s.repo.CreateOrder(ctx, req.Items)
	if err != nil {
		return domain.OrderCreateResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"orderId": orderID,
		"items":   len(req.Items),
		"actor":   actor.Username,
	}).Info("order created")

	return domain.OrderCreateResponse{OrderID: orderID}, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) GetOrderItems(ctx context.Context, orderID string) (domain.OrderItemsResponse, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.OrderItemsResponse{}, store.ErrInvalidInput
	}

	items, err := s.repo.GetOrderItems(ctx, orderID)
	if err != nil {
		return domain.OrderItemsResponse{}, err
	}
	if len(items) == 0 {
		return domain.OrderItemsResponse{}, store.ErrNoOrderItems
	}
	return domain.OrderItemsResponse{OrderID: orderID, Items: items}, nil
}

func (s *Service) SearchOrders(ctx context.Context, filter domain.OrderFilter, page int, size int) (domain.OrderSearchResponse, error) {
	if page < 0 {
		page = 0
	}
	if size < 1 || size > 200 {
		size = 20
	}

	orders, err := s.repo.SearchOrders(ctx, filter, page, size)
	if err != nil {
		return domain.OrderSearchResponse{}, err
	}
	total, err := s.repo.CountOrders(ctx, filter)
	if err != nil {
		return domain.OrderSearchResponse{}, err
	}

	return domain.OrderSearchResponse{
		Orders: orders,
		Total:  total,
		Page:   page,
		Size:   size,
	}, nil
}

func (s *Service) AddInventory(ctx context.Context, req domain.InventoryUpsertRequest) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: caller identity required", store.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return store.ErrNoItems
	}

	// Each line replaces the on-hand count outright; a batch is not additive.
	for _, line := range req.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return store.ErrProductRequired
		}
		if line.Quantity < 0 {
			return store.ErrInvalidQuantity
		}
		if _, err := s.repo.GetProduct(ctx, line.ProductID); err != nil {
			return err
		}
		if err := s.repo.UpsertInventory(ctx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"lines": len(req.Items),
		"actor": actor.Username,
	}).Info("inventory batch applied")

	return nil
}

func (s *Service) GetInventory(ctx context.Context, productID string) (domain.InventoryResponse, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.InventoryResponse{}, store.ErrProductRequired
	}

	inv, err := s.repo.GetInventory(ctx, productID)
	if err != nil {
		return domain.InventoryResponse{}, err
	}
	return domain.InventoryResponse{Inventory: *inv}, nil
}

func (s *Service) ReduceInventory(ctx context.Context, productID string, quantity int64) error {
	if strings.TrimSpace(productID) == "" {
		return store.ErrProductRequired
	}
	return s.repo.ReduceInventory(ctx, productID, quantity)
}

// GenerateInvoice renders the invoice document, writes it under the invoice
// directory and flips the order to invoiced. Calling it again on an invoiced
// order re-renders and overwrites the file.
func (s *Service) GenerateInvoice(ctx context.Context, orderID string) (*domain.Order, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: caller identity required", store.ErrInvalidInput)
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrNoOrderItems
	}

	req := domain.InvoiceRenderRequest{OrderID: order.ID}
	for _, item := range items {
		name := item.ProductID
		if product, err := s.repo.GetProduct(ctx, item.ProductID); err == nil {
			name = product.Name
		}
		req.Items = append(req.Items, domain.InvoiceRenderLine{
			Name:         name,
			Quantity:     item.Quantity,
			SellingPrice: item.SellingPrice,
		})
	}

	doc, err := s.renderer.Render(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvoiceGenFailed, err)
	}

	if err := os.MkdirAll(s.invoiceDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvoiceGenFailed, err)
	}
	path := filepath.Join(s.invoiceDir, invoiceFileName(order.ID))
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvoiceGenFailed, err)
	}

	// The path lands on the order in the same call that flips the status.
	if err := s.repo.AttachInvoice(ctx, order.ID, path); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"orderId": order.ID,
		"path":    path,
		"actor":   actor.Username,
	}).Info("invoice attached")

	updated, err := s.repo.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.invalidateDaySales(ctx, updated.UpdatedAt)
	return updated, nil
}

// DownloadInvoice returns the invoice bytes for an order, rendering one
// first when the order has not been invoiced yet.
func (s *Service) DownloadInvoice(ctx context.Context, orderID string) ([]byte, string, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}

	if order.Status != domain.OrderStatusInvoiced || order.InvoicePath == "" {
		order, err = s.GenerateInvoice(ctx, orderID)
		if err != nil {
			return nil, "", err
		}
	}

	doc, err := os.ReadFile(order.InvoicePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", store.ErrInvoiceFileMissing
		}
		return nil, "", err
	}
	return doc, invoiceFileName(order.ID), nil
}

// CalculateDaySales recomputes the aggregate row for one business day and
// stores it, replacing whatever the previous run produced.
func (s *Service) CalculateDaySales(ctx context.Context, date string) (domain.DaySalesResponse, error) {
	day, err := s.parseBusinessDay(date)
	if err != nil {
		return domain.DaySalesResponse{}, err
	}
	from := day
	to := day.AddDate(0, 0, 1)

	row, err := s.repo.AggregateDaySales(ctx, from, to)
	if err != nil {
		return domain.DaySalesResponse{}, err
	}
	row.Day = day
	if err := s.repo.UpsertDaySales(ctx, row); err != nil {
		return domain.DaySalesResponse{}, err
	}

	stored, err := s.repo.GetDaySales(ctx, day)
	if err != nil {
		return domain.DaySalesResponse{}, err
	}
	if err := s.daySales.Set(ctx, daySalesCacheKey(day), stored, s.cacheTTL); err != nil {
		s.log.WithError(err).Warn("day sales cache set failed")
	}

	return domain.DaySalesResponse{DaySales: *stored}, nil
}

func (s *Service) GetDaySales(ctx context.Context, date string) (domain.DaySalesResponse, error) {
	day, err := s.parseBusinessDay(date)
	if err != nil {
		return domain.DaySalesResponse{}, err
	}

	cached, found, err := s.daySales.Get(ctx, daySalesCacheKey(day))
	if err != nil {
		s.log.WithError(err).Warn("day sales cache get failed")
	}
	if found {
		return domain.DaySalesResponse{DaySales: *cached}, nil
	}

	stored, err := s.repo.GetDaySales(ctx, day)
	if err != nil {
		return domain.DaySalesResponse{}, err
	}
	if err := s.daySales.Set(ctx, daySalesCacheKey(day), stored, s.cacheTTL); err != nil {
		s.log.WithError(err).Warn("day sales cache set failed")
	}
	return domain.DaySalesResponse{DaySales: *stored}, nil
}

// RecomputeToday refreshes the aggregate for the current business day. The
// server runs it on a ticker when DAY_SALES_RECOMPUTE_MINUTES is set.
func (s *Service) RecomputeToday(ctx context.Context) error {
	today := time.Now().In(s.loc).Format("2006-01-02")
	_, err := s.CalculateDaySales(ctx, today)
	return err
}

func (s *Service) parseBusinessDay(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, store.ErrDateRequired
	}
	parsed, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	return parsed, nil
}

func (s *Service) invalidateDaySales(ctx context.Context, at time.Time) {
	day := at.In(s.loc)
	key := daySalesCacheKey(time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc))
	if err := s.daySales.Invalidate(ctx, key); err != nil {
		s.log.WithError(err).Warn("day sales cache invalidate failed")
	}
}

func daySalesCacheKey(day time.Time) string {
	return "daysales:" + day.Format("2006-01-02")
}

func invoiceFileName(orderID string) string {
	return fmt.Sprintf("INV-%s.pdf", orderID)
}
