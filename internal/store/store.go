package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apotekpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPartialFailure    = errors.New("partial failure")
)

// PartialFailureError reports a sale that was durably appended to the ledger
// while the matching stock decrement could not be applied. The ledger entry is
// never retracted; stock must be restored by a compensating adjustment.
type PartialFailureError struct {
	SaleID string
	Cause  error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("stock decrement failed after sale %s was recorded: %v", e.SaleID, e.Cause)
}

func (e *PartialFailureError) Unwrap() error { return ErrPartialFailure }

// Repository is the persistence contract for the catalog and the sales
// ledger. Implementations must enforce stock >= 0 on AdjustStock and keep
// sale records immutable once appended.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListLowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error)
	// AdjustStock applies a signed delta to a product's stock and returns the
	// updated product. It fails with ErrInsufficientStock when the result
	// would be negative.
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)

	AppendSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	ListSalesInRange(ctx context.Context, start time.Time, end time.Time) ([]domain.Sale, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
