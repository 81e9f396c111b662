package repositories

import (
	"context"

	"marketplace/internal/models"
)

// ProductRepository defines the interface for product data access.
//
// DecrementStock must be a single conditional update: the quantity is only
// taken when stock is still >= quantity at write time, otherwise
// ErrInsufficientStock is returned and nothing changes. Both stock methods
// reject a quantity below 1 with ErrInvalidQuantity.
type ProductRepository interface {
	List(ctx context.Context, query models.ProductQuery) ([]models.Product, int64, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	DecrementStock(ctx context.Context, id string, quantity int) error
	IncrementStock(ctx context.Context, id string, quantity int) error
}
