package repositories

import (
	"context"
	"time"

	"marketplace/internal/models"
)

// StatusUpdate describes a compare-and-set status change.
type StatusUpdate struct {
	From        models.OrderStatus
	To          models.OrderStatus
	DeliveredAt *time.Time
	UpdatedAt   time.Time
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create returns ErrDuplicate when order.PaymentReference is already used.
	Create(ctx context.Context, order *models.Order) error
	ExistsByPaymentReference(ctx context.Context, reference string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	// ListBySeller returns orders with at least one item sold by sellerID, newest first.
	ListBySeller(ctx context.Context, sellerID string) ([]models.Order, error)
	// UpdateStatus applies the change only if the order is still in update.From,
	// returning ErrStatusConflict otherwise.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
}
