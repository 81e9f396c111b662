package services

import (
	"context"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
)

// orderPopulator attaches display data (buyer and product summaries) to orders.
type orderPopulator struct {
	products repositories.ProductRepository
	users    repositories.UserRepository
}

func (p orderPopulator) populate(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	var productIDs, userIDs []string
	seenProduct := make(map[string]bool)
	seenUser := make(map[string]bool)
	for _, o := range orders {
		if !seenUser[o.UserID] {
			seenUser[o.UserID] = true
			userIDs = append(userIDs, o.UserID)
		}
		for _, id := range o.ProductIDs() {
			if !seenProduct[id] {
				seenProduct[id] = true
				productIDs = append(productIDs, id)
			}
		}
	}

	products, err := p.products.GetByIDs(ctx, productIDs)
	if err != nil {
		return storageError(err, "Products")
	}
	users, err := p.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return storageError(err, "Users")
	}

	productByID := make(map[string]*models.ProductSummary, len(products))
	for i := range products {
		productByID[products[i].ID] = products[i].Summary()
	}
	userByID := make(map[string]*models.UserSummary, len(users))
	for i := range users {
		userByID[users[i].ID] = users[i].Summary()
	}

	for i := range orders {
		orders[i].User = userByID[orders[i].UserID]
		// Deleted products leave Product nil; the item keeps its price snapshot.
		for j := range orders[i].Items {
			orders[i].Items[j].Product = productByID[orders[i].Items[j].ProductID]
		}
	}
	return nil
}

func (p orderPopulator) populateOne(ctx context.Context, order *models.Order) error {
	orders := []models.Order{*order}
	if err := p.populate(ctx, orders); err != nil {
		return err
	}
	*order = orders[0]
	return nil
}
