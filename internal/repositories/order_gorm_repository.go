package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"marketplace/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
// Line items live in their own table and are preloaded with every read.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

// Create inserts the order together with its line items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Wrapf(ErrDuplicate, "payment reference %s", order.PaymentReference)
		}
		return errors.Wrap(err, "failed to create order")
	}
	return nil
}

// ExistsByPaymentReference reports whether an order already carries reference.
func (r *GORMOrderRepository) ExistsByPaymentReference(ctx context.Context, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("payment_reference = ?", reference).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to look up payment reference")
	}
	return count > 0, nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Scopes(preloadItems).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "order with ID %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get order by ID %s", id)
	}
	return &order, nil
}

// ListByUser retrieves the orders placed by userID, newest first.
func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Scopes(preloadItems).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list orders of user %s", userID)
	}
	return orders, nil
}

// ListBySeller retrieves the orders holding at least one item sold by sellerID.
func (r *GORMOrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	sellerOrders := r.db.Model(&models.OrderItem{}).Select("order_id").Where("seller_id = ?", sellerID)

	var orders []models.Order
	err := r.db.WithContext(ctx).Scopes(preloadItems).
		Where("id IN (?)", sellerOrders).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list orders of seller %s", sellerID)
	}
	return orders, nil
}

// UpdateStatus changes the status only while the row still holds update.From.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, update StatusUpdate) error {
	changes := map[string]interface{}{
		"status":     update.To,
		"updated_at": update.UpdatedAt,
	}
	if update.DeliveredAt != nil {
		changes["delivered_at"] = *update.DeliveredAt
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, update.From).
		UpdateColumns(changes)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update status of order %s", id)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "failed to check order %s", id)
	}
	if count == 0 {
		return errors.Wrapf(ErrNotFound, "order with ID %s for status update", id)
	}
	return errors.Wrapf(ErrStatusConflict, "order %s", id)
}
