// Package seed provisions the seller account and the sample catalog.
package seed

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"marketplace/internal/apperror"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
)

// Default seller credentials. Sellers cannot register themselves.
const (
	SellerName     = "FreshMart Admin"
	SellerEmail    = "seller@freshmart.com"
	SellerPassword = "seller123"
	SellerPhone    = "+1234567890"
)

type sampleProduct struct {
	Name          string
	Description   string
	Price         string
	OriginalPrice string
	Category      string
	Image         string
	Stock         int
	Rating        float64
	NumReviews    int
}

var sampleProducts = []sampleProduct{
	{
		Name:          "Fresh Organic Tomatoes",
		Description:   "Farm-fresh organic tomatoes, perfect for salads and cooking. Rich in vitamins and flavor.",
		Price:         "4.99",
		OriginalPrice: "6.99",
		Category:      "Vegetables",
		Image:         "https://images.unsplash.com/photo-1546470427-e26264be0b88?w=400",
		Stock:         50,
		Rating:        4.5,
		NumReviews:    12,
	},
	{
		Name:          "Sweet Red Apples",
		Description:   "Crisp and juicy red apples, perfect for snacking. Locally sourced and fresh.",
		Price:         "3.99",
		OriginalPrice: "5.99",
		Category:      "Fruits",
		Image:         "https://images.unsplash.com/photo-1560806887-1e4cd0b6cbd6?w=400",
		Stock:         75,
		Rating:        4.8,
		NumReviews:    25,
	},
	{
		Name:          "Fresh Whole Milk",
		Description:   "Farm-fresh whole milk, rich and creamy. Perfect for your morning coffee.",
		Price:         "5.49",
		OriginalPrice: "6.99",
		Category:      "Dairy",
		Image:         "https://images.unsplash.com/photo-1563636619-e9143da7973b?w=400",
		Stock:         30,
		Rating:        4.6,
		NumReviews:    18,
	},
	{
		Name:          "Organic Carrots",
		Description:   "Fresh organic carrots, crunchy and sweet. Great for cooking or snacking.",
		Price:         "2.99",
		OriginalPrice: "4.49",
		Category:      "Vegetables",
		Image:         "https://images.unsplash.com/photo-1598170845058-32b9d6a5da37?w=400",
		Stock:         60,
		Rating:        4.4,
		NumReviews:    15,
	},
	{
		Name:          "Fresh Bananas",
		Description:   "Ripe and sweet bananas, perfect for breakfast or smoothies.",
		Price:         "1.99",
		OriginalPrice: "2.99",
		Category:      "Fruits",
		Image:         "https://images.unsplash.com/photo-1571771894821-ce9b6c11b08e?w=400",
		Stock:         100,
		Rating:        4.7,
		NumReviews:    30,
	},
	{
		Name:          "Coca Cola 2L",
		Description:   "Refreshing cola drink, perfect for parties and gatherings.",
		Price:         "2.49",
		OriginalPrice: "3.49",
		Category:      "Beverages",
		Image:         "https://images.unsplash.com/photo-1554866585-cd94860890b7?w=400",
		Stock:         40,
		Rating:        4.3,
		NumReviews:    20,
	},
	{
		Name:          "Fresh Bread Loaf",
		Description:   "Artisan bread, freshly baked daily. Soft and delicious.",
		Price:         "3.99",
		OriginalPrice: "5.49",
		Category:      "Bakery",
		Image:         "https://images.unsplash.com/photo-1509440159596-0249088772ff?w=400",
		Stock:         25,
		Rating:        4.6,
		NumReviews:    22,
	},
	{
		Name:          "Potato Chips",
		Description:   "Crispy and crunchy potato chips, perfect snack for any time.",
		Price:         "2.99",
		OriginalPrice: "4.99",
		Category:      "Snacks",
		Image:         "https://images.unsplash.com/photo-1616634375264-2b2c0be7e3e0?w=400",
		Stock:         80,
		Rating:        4.5,
		NumReviews:    35,
	},
	{
		Name:          "Organic Brown Rice",
		Description:   "Premium quality brown rice, healthy and nutritious.",
		Price:         "6.99",
		OriginalPrice: "8.99",
		Category:      "Grains",
		Image:         "https://images.unsplash.com/photo-1586201375761-83865001e31c?w=400",
		Stock:         45,
		Rating:        4.4,
		NumReviews:    16,
	},
	{
		Name:          "Fresh Broccoli",
		Description:   "Crisp and fresh broccoli, packed with nutrients.",
		Price:         "3.49",
		OriginalPrice: "4.99",
		Category:      "Vegetables",
		Image:         "https://images.unsplash.com/photo-1584270354949-c26b0d5b4a0c?w=400",
		Stock:         35,
		Rating:        4.5,
		NumReviews:    14,
	},
	{
		Name:          "Fresh Strawberries",
		Description:   "Sweet and juicy strawberries, perfect for desserts.",
		Price:         "5.99",
		OriginalPrice: "7.99",
		Category:      "Fruits",
		Image:         "https://images.unsplash.com/photo-1464965911861-746a04b4bca6?w=400",
		Stock:         40,
		Rating:        4.8,
		NumReviews:    28,
	},
	{
		Name:          "Fresh Eggs (12 pack)",
		Description:   "Farm-fresh eggs, free-range and organic.",
		Price:         "4.99",
		OriginalPrice: "6.49",
		Category:      "Dairy",
		Image:         "https://images.unsplash.com/photo-1582722872445-44dc5f7e3c8f?w=400",
		Stock:         50,
		Rating:        4.7,
		NumReviews:    32,
	},
}

// Result reports what Run changed.
type Result struct {
	Seller          *models.User
	SellerCreated   bool
	ProductsCreated int
}

// Run ensures the seller exists and, if the seller has no products yet,
// creates the sample catalog. Running it twice changes nothing.
func Run(ctx context.Context, auth *services.AuthService, products repositories.ProductRepository) (*Result, error) {
	seller, created, err := auth.EnsureSeller(ctx, SellerName, SellerEmail, SellerPassword, SellerPhone)
	if err != nil {
		return nil, err
	}
	result := &Result{Seller: seller, SellerCreated: created}

	existing, err := products.ListBySeller(ctx, seller.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.Internal, "failed to list seller products")
	}
	if len(existing) > 0 {
		log.WithField("products", len(existing)).Info("seller already has products, skipping catalog seed")
		return result, nil
	}

	for _, sample := range sampleProducts {
		original := decimal.RequireFromString(sample.OriginalPrice)
		product := &models.Product{
			Name:          sample.Name,
			Description:   sample.Description,
			Price:         decimal.RequireFromString(sample.Price),
			OriginalPrice: &original,
			Category:      sample.Category,
			Image:         sample.Image,
			Stock:         sample.Stock,
			IsActive:      true,
			Rating:        sample.Rating,
			NumReviews:    sample.NumReviews,
			SellerID:      seller.ID,
		}
		if err := products.Create(ctx, product); err != nil {
			return nil, apperror.Wrap(err, apperror.Internal, "failed to create sample product "+sample.Name)
		}
		result.ProductsCreated++
	}
	log.WithFields(log.Fields{
		"seller_id": seller.ID,
		"products":  result.ProductsCreated,
	}).Info("sample catalog created")
	return result, nil
}
