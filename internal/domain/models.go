package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SaleTypeRetail    = "retail"
	SaleTypeWholesale = "wholesale"
)

// DefaultLowStockThreshold is the stock level at or below which a product
// counts as low stock on the dashboard.
const DefaultLowStockThreshold = 10

type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Stock          int             `json:"stock"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	BatchNumber    string          `json:"batch_number,omitempty"`
	ExpiryDate     string          `json:"expiry_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type ProductCreateRequest struct {
	Name           string           `json:"name"`
	Category       string           `json:"category"`
	Stock          int              `json:"stock"`
	RetailPrice    decimal.Decimal  `json:"retail_price"`
	WholesalePrice *decimal.Decimal `json:"wholesale_price,omitempty"`
	BatchNumber    string           `json:"batch_number,omitempty"`
	ExpiryDate     string           `json:"expiry_date,omitempty"`
}

type ProductUpdateRequest struct {
	Name           *string          `json:"name,omitempty"`
	Category       *string          `json:"category,omitempty"`
	Stock          *int             `json:"stock,omitempty"`
	RetailPrice    *decimal.Decimal `json:"retail_price,omitempty"`
	WholesalePrice *decimal.Decimal `json:"wholesale_price,omitempty"`
	BatchNumber    *string          `json:"batch_number,omitempty"`
	ExpiryDate     *string          `json:"expiry_date,omitempty"`
}

// Sale is an append-only ledger entry. ProductName and UnitPrice are
// snapshots taken at sale time so the record stays displayable after the
// product is renamed or deleted.
type Sale struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	SaleType     string          `json:"sale_type"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CustomerName string          `json:"customer_name,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type RecordSaleRequest struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	SaleType     string `json:"sale_type"`
	CustomerName string `json:"customer_name,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type DashboardMetrics struct {
	TotalProducts    int             `json:"total_products"`
	TodaysRevenue    decimal.Decimal `json:"todays_revenue"`
	TodaysSalesCount int             `json:"todays_sales_count"`
	LowStockCount    int             `json:"low_stock_count"`
}

type SalesAnalytics struct {
	WindowDays          int             `json:"window_days"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TotalSales          int             `json:"total_sales"`
	AverageDailyRevenue decimal.Decimal `json:"average_daily_revenue"`
}

type TopProduct struct {
	ProductName   string          `json:"product_name"`
	TotalQuantity int             `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
