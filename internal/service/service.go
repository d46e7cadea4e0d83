package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"apotekpos/backend/internal/analytics"
	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	stockDecrementAttempts = 3
	dashboardCacheKey      = "analytics:dashboard"
)

// Service is the engine facade: catalog management, the sale transaction
// coordinator, and analytics reads over catalog/ledger snapshots.
type Service struct {
	repo              store.Repository
	metricsCache      cache.MetricsCache
	metricsCacheTTL   time.Duration
	lowStockThreshold int
	saleLocks         *productLocks
	log               *zap.Logger
	now               func() time.Time
}

func New(repo store.Repository, metricsCache cache.MetricsCache, metricsCacheTTL time.Duration, lowStockThreshold int, logger *zap.Logger) *Service {
	if metricsCache == nil {
		metricsCache = cache.NoopMetricsCache{}
	}
	if lowStockThreshold < 0 {
		lowStockThreshold = domain.DefaultLowStockThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:              repo,
		metricsCache:      metricsCache,
		metricsCacheTTL:   metricsCacheTTL,
		lowStockThreshold: lowStockThreshold,
		saleLocks:         newProductLocks(),
		log:               logger,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the service clock. Tests use it to pin "today" and
// analytics windows.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.Name == "" || req.Category == "" {
		return domain.Product{}, fmt.Errorf("%w: name and category are required", store.ErrValidation)
	}
	if !req.RetailPrice.IsPositive() {
		return domain.Product{}, fmt.Errorf("%w: retail price must be greater than zero", store.ErrValidation)
	}
	if req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock must not be negative", store.ErrValidation)
	}

	wholesale := decimal.Zero
	if req.WholesalePrice != nil {
		if req.WholesalePrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: wholesale price must not be negative", store.ErrValidation)
		}
		wholesale = *req.WholesalePrice
	}

	product := domain.Product{
		ID:             xid.New("prod"),
		Name:           req.Name,
		Category:       req.Category,
		Stock:          req.Stock,
		RetailPrice:    req.RetailPrice,
		WholesalePrice: wholesale,
		BatchNumber:    strings.TrimSpace(req.BatchNumber),
		ExpiryDate:     strings.TrimSpace(req.ExpiryDate),
		CreatedAt:      s.now(),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,stock=%d,retail=%s", created.Name, created.Stock, created.RetailPrice))
	s.invalidateDashboard(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, fmt.Errorf("%w: product id required", store.ErrValidation)
	}

	// Serialize against recordSale so a concurrent stock edit cannot race
	// the coordinator's read-validate-write sequence.
	lock := s.saleLocks.get(id)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, fmt.Errorf("%w: category must not be empty", store.ErrValidation)
		}
		updated.Category = category
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, fmt.Errorf("%w: stock must not be negative", store.ErrValidation)
		}
		updated.Stock = *req.Stock
	}
	if req.RetailPrice != nil {
		if !req.RetailPrice.IsPositive() {
			return domain.Product{}, fmt.Errorf("%w: retail price must be greater than zero", store.ErrValidation)
		}
		updated.RetailPrice = *req.RetailPrice
	}
	if req.WholesalePrice != nil {
		if req.WholesalePrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: wholesale price must not be negative", store.ErrValidation)
		}
		updated.WholesalePrice = *req.WholesalePrice
	}
	if req.BatchNumber != nil {
		updated.BatchNumber = strings.TrimSpace(*req.BatchNumber)
	}
	if req.ExpiryDate != nil {
		updated.ExpiryDate = strings.TrimSpace(*req.ExpiryDate)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("stock=%d,retail=%s", saved.Stock, saved.RetailPrice))
	s.invalidateDashboard(ctx)
	return *saved, nil
}

// DeleteProduct removes a product from the catalog. The sales ledger is
// untouched: past sales keep their denormalized product name.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: product id required", store.ErrValidation)
	}

	lock := s.saleLocks.get(id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", id, "")
	s.invalidateDashboard(ctx)
	return nil
}

func (s *Service) LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold < 0 {
		threshold = s.lowStockThreshold
	}
	return s.repo.ListLowStockProducts(ctx, threshold)
}

// RecordSale executes a sale as a single logical transaction: validate
// against current stock, append the ledger entry, decrement stock. The
// product's lock is held across the whole sequence, so concurrent sales for
// one product are serialized and stock can never be overdrawn.
func (s *Service) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.Sale, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		return domain.Sale{}, fmt.Errorf("%w: product id required", store.ErrValidation)
	}

	lock := s.saleLocks.get(req.ProductID)
	lock.Lock()
	defer lock.Unlock()

	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Sale{}, err
	}

	if req.Quantity < 1 {
		return domain.Sale{}, fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
	}
	if req.SaleType != domain.SaleTypeRetail && req.SaleType != domain.SaleTypeWholesale {
		return domain.Sale{}, fmt.Errorf("%w: sale type must be retail or wholesale", store.ErrValidation)
	}
	if req.Quantity > product.Stock {
		return domain.Sale{}, fmt.Errorf("%w: only %d units available", store.ErrInsufficientStock, product.Stock)
	}

	// Wholesale price defaults to zero when unset, so a wholesale sale of a
	// retail-only product records at zero revenue rather than falling back
	// to the retail price.
	unitPrice := product.RetailPrice
	if req.SaleType == domain.SaleTypeWholesale {
		unitPrice = product.WholesalePrice
	}
	quantity := decimal.NewFromInt(int64(req.Quantity))

	sale := domain.Sale{
		ID:           xid.New("sale"),
		ProductID:    product.ID,
		ProductName:  product.Name,
		Quantity:     req.Quantity,
		SaleType:     req.SaleType,
		UnitPrice:    unitPrice,
		TotalAmount:  quantity.Mul(unitPrice),
		CustomerName: strings.TrimSpace(req.CustomerName),
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    s.now(),
	}

	appended, err := s.repo.AppendSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	// The sale is now a durable fact. The decrement must complete even if
	// the caller disconnects, so it runs detached from caller cancellation
	// and is retried before a partial failure is surfaced.
	if err := s.decrementStock(context.WithoutCancel(ctx), product.ID, req.Quantity, appended.ID); err != nil {
		return *appended, err
	}

	s.logAudit(ctx, "sale_record", "sale", appended.ID, fmt.Sprintf("product=%s,qty=%d,type=%s,total=%s", product.ID, req.Quantity, req.SaleType, appended.TotalAmount))
	s.invalidateDashboard(ctx)
	return *appended, nil
}

func (s *Service) decrementStock(ctx context.Context, productID string, quantity int, saleID string) error {
	var lastErr error
	for attempt := 1; attempt <= stockDecrementAttempts; attempt++ {
		_, err := s.repo.AdjustStock(ctx, productID, -quantity)
		if err == nil {
			return nil
		}
		// Validation against stock happened under the product lock, so an
		// insufficient-stock or not-found result here is not transient and
		// retrying cannot help.
		if errors.Is(err, store.ErrInsufficientStock) || errors.Is(err, store.ErrNotFound) {
			lastErr = err
			break
		}
		lastErr = err
		s.log.Warn("stock decrement retry",
			zap.String("product_id", productID),
			zap.String("sale_id", saleID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}

	s.log.Error("stock decrement failed after sale was recorded",
		zap.String("product_id", productID),
		zap.String("sale_id", saleID),
		zap.Error(lastErr),
	)
	return &store.PartialFailureError{SaleID: saleID, Cause: lastErr}
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) ListTodaysSales(ctx context.Context) ([]domain.Sale, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.ListSalesInRange(ctx, start, start.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

func (s *Service) ListSalesInRange(ctx context.Context, start time.Time, end time.Time) ([]domain.Sale, error) {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: invalid time range", store.ErrValidation)
	}
	return s.repo.ListSalesInRange(ctx, start, end)
}

func (s *Service) DashboardMetrics(ctx context.Context) (domain.DashboardMetrics, error) {
	if cached, found, err := s.metricsCache.Get(ctx, dashboardCacheKey); err == nil && found {
		return *cached, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.DashboardMetrics{}, err
	}
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.DashboardMetrics{}, err
	}

	metrics := analytics.DashboardMetrics(products, sales, s.now(), s.lowStockThreshold)
	if err := s.metricsCache.Set(ctx, dashboardCacheKey, &metrics, s.metricsCacheTTL); err != nil {
		s.log.Warn("dashboard cache set failed", zap.Error(err))
	}
	return metrics, nil
}

func (s *Service) SalesAnalytics(ctx context.Context, windowDays int) (domain.SalesAnalytics, error) {
	if windowDays < 1 {
		return domain.SalesAnalytics{}, fmt.Errorf("%w: window days must be greater than zero", store.ErrValidation)
	}

	now := s.now()
	sales, err := s.repo.ListSalesInRange(ctx, now.AddDate(0, 0, -windowDays), now)
	if err != nil {
		return domain.SalesAnalytics{}, err
	}
	return analytics.SalesAnalytics(sales, windowDays, now)
}

func (s *Service) TopSellingProducts(ctx context.Context, limit int) ([]domain.TopProduct, error) {
	if limit < 1 {
		return []domain.TopProduct{}, nil
	}
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.TopSellingProducts(sales, limit), nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrValidation)
		}
		from = parsed.UTC()
	}

	return s.repo.ListAuditLogs(ctx, from, from.Add(24*time.Hour), limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	})
	if err != nil {
		s.log.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	if err := s.metricsCache.Delete(ctx, dashboardCacheKey); err != nil {
		s.log.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
