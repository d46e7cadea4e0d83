// Package analytics derives dashboard and report metrics from catalog and
// ledger snapshots. All functions are pure: they never mutate their inputs
// and every time-dependent calculation takes an explicit reference instant.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

// DashboardMetrics summarizes the catalog and today's ledger activity.
// "Today" is the calendar day of now in now's location, midnight to
// midnight.
func DashboardMetrics(products []domain.Product, sales []domain.Sale, now time.Time, lowStockThreshold int) domain.DashboardMetrics {
	dayStart, dayEnd := dayBounds(now)

	metrics := domain.DashboardMetrics{
		TotalProducts: len(products),
		TodaysRevenue: decimal.Zero,
	}
	for _, sale := range sales {
		local := sale.CreatedAt.In(now.Location())
		if local.Before(dayStart) || !local.Before(dayEnd) {
			continue
		}
		metrics.TodaysRevenue = metrics.TodaysRevenue.Add(sale.TotalAmount)
		metrics.TodaysSalesCount++
	}
	for _, product := range products {
		if product.Stock <= lowStockThreshold {
			metrics.LowStockCount++
		}
	}
	return metrics
}

// SalesAnalytics aggregates sales whose CreatedAt falls within the last
// windowDays days ending at now, bounds inclusive.
func SalesAnalytics(sales []domain.Sale, windowDays int, now time.Time) (domain.SalesAnalytics, error) {
	if windowDays < 1 {
		return domain.SalesAnalytics{}, store.ErrValidation
	}

	start := now.AddDate(0, 0, -windowDays)
	result := domain.SalesAnalytics{
		WindowDays:   windowDays,
		TotalRevenue: decimal.Zero,
	}
	for _, sale := range sales {
		if sale.CreatedAt.Before(start) || sale.CreatedAt.After(now) {
			continue
		}
		result.TotalRevenue = result.TotalRevenue.Add(sale.TotalAmount)
		result.TotalSales++
	}
	result.AverageDailyRevenue = result.TotalRevenue.Div(decimal.NewFromInt(int64(windowDays)))
	return result, nil
}

// TopSellingProducts groups all-time sales by product name and returns the
// first limit groups ordered by total quantity descending. Ties keep the
// order in which the group was first seen in the input, so the result is
// deterministic for a given ledger snapshot.
func TopSellingProducts(sales []domain.Sale, limit int) []domain.TopProduct {
	if limit < 1 {
		return []domain.TopProduct{}
	}

	index := make(map[string]int, 32)
	groups := make([]domain.TopProduct, 0, 32)
	for _, sale := range sales {
		i, seen := index[sale.ProductName]
		if !seen {
			i = len(groups)
			index[sale.ProductName] = i
			groups = append(groups, domain.TopProduct{
				ProductName:  sale.ProductName,
				TotalRevenue: decimal.Zero,
			})
		}
		groups[i].TotalQuantity += sale.Quantity
		groups[i].TotalRevenue = groups[i].TotalRevenue.Add(sale.TotalAmount)
	}

	// Insertion sort keeps equal-quantity groups in discovery order.
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && groups[j].TotalQuantity > groups[j-1].TotalQuantity; j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}

	if len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// LowStock filters products at or below threshold. Order follows the input
// snapshot, which repository scans already keep stable.
func LowStock(products []domain.Product, threshold int) []domain.Product {
	result := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if product.Stock <= threshold {
			result = append(result, product)
		}
	}
	return result
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}
