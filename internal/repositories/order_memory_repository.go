package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"marketplace/internal/models"
)

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
type MemoryOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMemoryOrderRepository creates a new instance of MemoryOrderRepository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order.
func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.PaymentReference != "" && r.referenceUsed(order.PaymentReference) {
		return errors.Wrapf(ErrDuplicate, "payment reference %s", order.PaymentReference)
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

// referenceUsed must be called with the lock held.
func (r *MemoryOrderRepository) referenceUsed(reference string) bool {
	for _, o := range r.orders {
		if o.PaymentReference == reference {
			return true
		}
	}
	return false
}

// ExistsByPaymentReference reports whether an order already carries reference.
func (r *MemoryOrderRepository) ExistsByPaymentReference(_ context.Context, reference string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return reference != "" && r.referenceUsed(reference), nil
}

// GetByID returns an order by its ID.
func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "order with ID %s", id)
	}
	order = cloneOrder(order)
	return &order, nil
}

// ListByUser returns the orders placed by userID, newest first.
func (r *MemoryOrderRepository) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool { return o.UserID == userID }), nil
}

// ListBySeller returns the orders containing at least one of sellerID's items.
func (r *MemoryOrderRepository) ListBySeller(_ context.Context, sellerID string) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool {
		for _, item := range o.Items {
			if item.SellerID == sellerID {
				return true
			}
		}
		return false
	}), nil
}

func (r *MemoryOrderRepository) filter(keep func(models.Order) bool) []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]models.Order, 0)
	for _, order := range r.orders {
		if keep(order) {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders
}

// UpdateStatus moves an order from update.From to update.To.
func (r *MemoryOrderRepository) UpdateStatus(_ context.Context, id string, update StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "order with ID %s for status update", id)
	}
	if order.Status != update.From {
		return errors.Wrapf(ErrStatusConflict, "order %s is %s", id, order.Status)
	}
	order.Status = update.To
	if update.DeliveredAt != nil {
		order.DeliveredAt = update.DeliveredAt
	}
	order.UpdatedAt = update.UpdatedAt
	r.orders[id] = order
	return nil
}

// cloneOrder copies the item slice so callers cannot mutate stored state.
func cloneOrder(order models.Order) models.Order {
	items := make([]models.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}
