package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

func testProduct(name string, stock int, price string) domain.Product {
	return domain.Product{
		Name:        name,
		Category:    "Tablets",
		Stock:       stock,
		RetailPrice: dec(price),
	}
}

func TestCreateAndGetProduct(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, testProduct("Paracetamol 500mg", 50, "12.50"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected created at to be set")
	}

	got, err := s.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Paracetamol 500mg" || got.Stock != 50 {
		t.Fatalf("unexpected product: %+v", got)
	}

	if _, err := s.GetProduct(ctx, "prod-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateProduct(ctx, testProduct("", 1, "1")); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, err := s.CreateProduct(ctx, testProduct("X", -1, "1")); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for negative stock, got %v", err)
	}
	if _, err := s.CreateProduct(ctx, testProduct("X", 1, "0")); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for zero price, got %v", err)
	}
}

func TestUpdateProductKeepsCreatedAt(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, testProduct("Ibuprofen 400mg", 20, "18.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	modified := *created
	modified.Stock = 5
	modified.CreatedAt = time.Now().Add(48 * time.Hour)

	updated, err := s.UpdateProduct(ctx, modified)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Stock != 5 {
		t.Fatalf("expected stock 5, got %d", updated.Stock)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created at must not change, got %s want %s", updated.CreatedAt, created.CreatedAt)
	}

	missing := *created
	missing.ID = "prod-missing"
	if _, err := s.UpdateProduct(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteProduct(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, testProduct("Zinc Tablets", 10, "0.95"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteProduct(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestAdjustStockEnforcesFloor(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, testProduct("Cough Syrup 100ml", 3, "58.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.AdjustStock(ctx, created.ID, -2)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if updated.Stock != 1 {
		t.Fatalf("expected stock 1, got %d", updated.Stock)
	}

	if _, err := s.AdjustStock(ctx, created.ID, -2); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	after, err := s.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Stock != 1 {
		t.Fatalf("rejected adjust must not change stock, got %d", after.Stock)
	}

	if _, err := s.AdjustStock(ctx, "prod-missing", -1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListLowStockProductsSortedByStock(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, p := range []domain.Product{
		testProduct("Plenty", 200, "1"),
		testProduct("Almost Out", 2, "1"),
		testProduct("At Threshold", 10, "1"),
	} {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.Name, err)
		}
	}

	low, err := s.ListLowStockProducts(ctx, 10)
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("expected 2 low stock products, got %d", len(low))
	}
	if low[0].Name != "Almost Out" || low[1].Name != "At Threshold" {
		t.Fatalf("unexpected order: %+v", low)
	}
}

func TestAppendAndListSalesNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{base, base.Add(2 * time.Hour), base.Add(time.Hour)} {
		if _, err := s.AppendSale(ctx, domain.Sale{
			ProductID:   "prod-1",
			ProductName: "Paracetamol 500mg",
			Quantity:    i + 1,
			SaleType:    domain.SaleTypeRetail,
			TotalAmount: dec("10"),
			CreatedAt:   at,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	sales, err := s.ListSales(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sales) != 3 {
		t.Fatalf("expected 3 sales, got %d", len(sales))
	}
	for i := 1; i < len(sales); i++ {
		if sales[i].CreatedAt.After(sales[i-1].CreatedAt) {
			t.Fatalf("sales not in descending order: %+v", sales)
		}
	}
}

func TestAppendSaleValidation(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.AppendSale(ctx, domain.Sale{ProductName: "X", Quantity: 1}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for missing product id, got %v", err)
	}
	if _, err := s.AppendSale(ctx, domain.Sale{ProductID: "p", ProductName: "X", Quantity: 0}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
}

func TestListSalesInRangeBoundsInclusive(t *testing.T) {
	s := New()
	ctx := context.Background()

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{
		start.Add(-time.Second),
		start,
		start.Add(12 * time.Hour),
		end,
		end.Add(time.Second),
	} {
		if _, err := s.AppendSale(ctx, domain.Sale{
			ProductID:   "prod-1",
			ProductName: "Ibuprofen 400mg",
			Quantity:    1,
			SaleType:    domain.SaleTypeRetail,
			CreatedAt:   at,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	sales, err := s.ListSalesInRange(ctx, start, end)
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(sales) != 3 {
		t.Fatalf("expected 3 sales within bounds, got %d", len(sales))
	}
}

func TestAuditLogRangeAndLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.CreateAuditLog(ctx, domain.AuditLog{
			Action:    "product_update",
			CreatedAt: day.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("create audit: %v", err)
		}
	}

	logs, err := s.ListAuditLogs(ctx, day, day.Add(24*time.Hour), 3)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(logs))
	}
	if !logs[0].CreatedAt.After(logs[1].CreatedAt) {
		t.Fatalf("audit logs not newest first: %+v", logs)
	}

	outside, err := s.ListAuditLogs(ctx, day.Add(24*time.Hour), day.Add(48*time.Hour), 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(outside) != 0 {
		t.Fatalf("expected empty window, got %d entries", len(outside))
	}
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	user := domain.UserAccount{Username: "admin", Password: "hash", Role: "admin", Active: true}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, user); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error on duplicate, got %v", err)
	}

	if err := s.UpdateUserPassword(ctx, "admin", "newhash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if err := s.UpdateUserPassword(ctx, "ghost", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].Password != "newhash" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestNewSeededHasCatalogAndAccounts(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) == 0 {
		t.Fatal("expected seeded catalog")
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 seeded accounts, got %d", len(users))
	}
}
