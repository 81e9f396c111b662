package services

import (
	"context"

	"github.com/shopspring/decimal"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
)

// DashboardStats summarises a seller's catalog and sales.
type DashboardStats struct {
	TotalProducts   int             `json:"totalProducts"`
	TotalOrders     int             `json:"totalOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	PendingOrders   int             `json:"pendingOrders"`
	DeliveredOrders int             `json:"deliveredOrders"`
}

// SellerService serves the seller back office reports.
type SellerService struct {
	products  repositories.ProductRepository
	orders    repositories.OrderRepository
	populator orderPopulator
}

// NewSellerService creates a new SellerService.
func NewSellerService(products repositories.ProductRepository, orders repositories.OrderRepository, users repositories.UserRepository) *SellerService {
	return &SellerService{
		products:  products,
		orders:    orders,
		populator: orderPopulator{products: products, users: users},
	}
}

// Orders returns every order containing at least one of the seller's items, newest first.
func (s *SellerService) Orders(ctx context.Context, seller *models.User) ([]models.Order, error) {
	if err := requireRole(seller, models.RoleSeller); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListBySeller(ctx, seller.ID)
	if err != nil {
		return nil, storageError(err, "Orders")
	}
	if err := s.populator.populate(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Dashboard computes the seller's counters. Revenue only counts the seller's
// own line items, priced at their order-time snapshot.
func (s *SellerService) Dashboard(ctx context.Context, seller *models.User) (*DashboardStats, error) {
	if err := requireRole(seller, models.RoleSeller); err != nil {
		return nil, err
	}
	products, err := s.products.ListBySeller(ctx, seller.ID)
	if err != nil {
		return nil, storageError(err, "Products")
	}
	orders, err := s.orders.ListBySeller(ctx, seller.ID)
	if err != nil {
		return nil, storageError(err, "Orders")
	}

	stats := &DashboardStats{
		TotalProducts: len(products),
		TotalOrders:   len(orders),
		TotalRevenue:  decimal.Zero,
	}
	for i := range orders {
		stats.TotalRevenue = stats.TotalRevenue.Add(orders[i].SellerTotal(seller.ID))
		switch orders[i].Status {
		case models.StatusPending:
			stats.PendingOrders++
		case models.StatusDelivered:
			stats.DeliveredOrders++
		}
	}
	return stats, nil
}
