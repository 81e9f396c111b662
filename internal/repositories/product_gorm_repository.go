package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"marketplace/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// productFilter narrows a product query to the rows matching query.
func productFilter(query models.ProductQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if query.ActiveOnly {
			db = db.Where("is_active = ?", true)
		}
		if query.Category != "" {
			db = db.Where("category = ?", query.Category)
		}
		if query.Search != "" {
			pattern := "%" + likeEscaper.Replace(strings.ToLower(query.Search)) + "%"
			db = db.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
		}
		return db
	}
}

func productOrder(key models.ProductSort) string {
	switch key {
	case models.SortPriceAsc:
		return "price ASC, id ASC"
	case models.SortPriceDesc:
		return "price DESC, id ASC"
	case models.SortRatingDesc:
		return "rating DESC, id ASC"
	default:
		return "created_at DESC, id ASC"
	}
}

// List retrieves one page of products matching query plus the total match count.
func (r *GORMProductRepository) List(ctx context.Context, query models.ProductQuery) ([]models.Product, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Scopes(productFilter(query)).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count products")
	}

	tx := r.db.WithContext(ctx).Scopes(productFilter(query)).Order(productOrder(query.Sort))
	if query.Offset > 0 {
		tx = tx.Offset(query.Offset)
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}
	var products []models.Product
	if err := tx.Find(&products).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list products")
	}
	return products, total, nil
}

// ListBySeller retrieves every product owned by sellerID, newest first.
func (r *GORMProductRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order(productOrder(models.SortNewest)).
		Find(&products).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list products of seller %s", sellerID)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "product with ID %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get product by ID %s", id)
	}
	return &product, nil
}

// GetByIDs retrieves the products that exist among ids.
func (r *GORMProductRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "failed to get products by IDs")
	}
	return products, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return errors.Wrap(err, "failed to create product")
	}
	return nil
}

// Update writes only the columns set in patch, then reloads the product.
func (r *GORMProductRepository) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	changes := map[string]interface{}{"updated_at": time.Now()}
	if patch.Name != nil {
		changes["name"] = *patch.Name
	}
	if patch.Description != nil {
		changes["description"] = *patch.Description
	}
	if patch.Price != nil {
		changes["price"] = *patch.Price
	}
	if patch.OriginalPrice != nil {
		changes["original_price"] = *patch.OriginalPrice
	}
	if patch.Category != nil {
		changes["category"] = *patch.Category
	}
	if patch.Image != nil {
		changes["image"] = *patch.Image
	}
	if patch.Stock != nil {
		changes["stock"] = *patch.Stock
	}
	if patch.IsActive != nil {
		changes["is_active"] = *patch.IsActive
	}

	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to update product")
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrapf(ErrNotFound, "product with ID %s for update", id)
	}
	return r.GetByID(ctx, id)
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete product")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "product with ID %s for deletion", id)
	}
	return nil
}

// DecrementStock runs UPDATE ... SET stock = stock - n WHERE id = ? AND stock >= n,
// so the guard and the write are one statement.
func (r *GORMProductRepository) DecrementStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return errors.Wrapf(ErrInvalidQuantity, "reserve %d of product %s", quantity, id)
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", quantity),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to reserve stock for product %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrInsufficientStock, "product %s", id)
	}
	return nil
}

// IncrementStock returns quantity units to the product.
func (r *GORMProductRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return errors.Wrapf(ErrInvalidQuantity, "restore %d of product %s", quantity, id)
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", quantity),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to restore stock for product %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "product with ID %s for restock", id)
	}
	return nil
}
