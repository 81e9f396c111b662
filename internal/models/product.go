package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, as the storefront expects.
	decimal.MarshalJSONWithoutQuotes = true
}

// CategoryAll disables the category filter when listing products.
const CategoryAll = "All"

// Product represents a catalog entry owned by a seller.
type Product struct {
	ID            string           `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Name          string           `json:"name" gorm:"type:varchar(200);not null" bson:"name"`
	Description   string           `json:"description" gorm:"type:text" bson:"description"`
	Price         decimal.Decimal  `json:"price" gorm:"type:decimal(12,2);not null" bson:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty" gorm:"type:decimal(12,2)" bson:"original_price,omitempty"`
	Category      string           `json:"category" gorm:"type:varchar(64);index" bson:"category"`
	Image         string           `json:"image" gorm:"type:varchar(500)" bson:"image"`
	Stock         int              `json:"stock" gorm:"not null" bson:"stock"`
	IsActive      bool             `json:"isActive" gorm:"not null;index" bson:"is_active"`
	Rating        float64          `json:"rating" bson:"rating"`
	NumReviews    int              `json:"numReviews" bson:"num_reviews"`
	SellerID      string           `json:"sellerId" gorm:"type:varchar(36);not null;index" bson:"seller_id"`
	Seller        *UserSummary     `json:"seller,omitempty" gorm:"-" bson:"-"`
	CreatedAt     time.Time        `json:"createdAt" gorm:"index" bson:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" bson:"updated_at"`
}

// Summary returns the product fields shown on order line items.
func (p *Product) Summary() *ProductSummary {
	if p == nil {
		return nil
	}
	return &ProductSummary{ID: p.ID, Name: p.Name, Image: p.Image, Price: p.Price, SellerID: p.SellerID}
}

// ProductSummary is the read-only view of a product attached to order items.
type ProductSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	SellerID string          `json:"sellerId"`
}

// ProductPatch carries a partial product update. Nil fields are left untouched,
// so a patch without Stock never overwrites a concurrent stock reservation.
type ProductPatch struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	Category      *string          `json:"category" validate:"omitempty,max=64"`
	Image         *string          `json:"image" validate:"omitempty,max=500"`
	Stock         *int             `json:"stock" validate:"omitempty,gte=0"`
	IsActive      *bool            `json:"isActive"`
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.OriginalPrice == nil &&
		p.Category == nil && p.Image == nil && p.Stock == nil && p.IsActive == nil
}

// Apply copies the set fields of the patch onto product.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.OriginalPrice != nil {
		op := *p.OriginalPrice
		product.OriginalPrice = &op
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Image != nil {
		product.Image = *p.Image
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.IsActive != nil {
		product.IsActive = *p.IsActive
	}
}

// ProductSort selects the ordering of a catalog listing.
type ProductSort string

const (
	SortNewest     ProductSort = "newest"
	SortPriceAsc   ProductSort = "price-asc"
	SortPriceDesc  ProductSort = "price-desc"
	SortRatingDesc ProductSort = "rating-desc"
)

// ParseProductSort maps a query value to a sort key. The storefront's legacy
// names are accepted; anything unknown falls back to newest first.
func ParseProductSort(s string) ProductSort {
	switch s {
	case "price-asc", "price-low":
		return SortPriceAsc
	case "price-desc", "price-high":
		return SortPriceDesc
	case "rating-desc", "rating":
		return SortRatingDesc
	default:
		return SortNewest
	}
}

// ProductQuery is a storage-level catalog query.
type ProductQuery struct {
	Category   string // empty means any
	Search     string // case-insensitive substring on name or description
	ActiveOnly bool
	Sort       ProductSort
	Offset     int
	Limit      int // zero means no limit
}
