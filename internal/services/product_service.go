package services

import (
	"context"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"marketplace/internal/apperror"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/spreadsheet"
)

const (
	// DefaultPageSize is the catalog page size when the client asks for none.
	DefaultPageSize = 12
	// MaxPageSize caps the page size a client may request.
	MaxPageSize = 100
	// MaxPage caps the page number so the row offset always fits in 32 bits.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo  repositories.ProductRepository
	users repositories.UserRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, users repositories.UserRepository) *ProductService {
	return &ProductService{
		repo:  repo,
		users: users,
	}
}

// ProductFilter is a public catalog query as received from a client.
type ProductFilter struct {
	Category string
	Search   string
	Sort     string
	Page     int
	Limit    int
}

// ProductPage is one page of the public catalog.
type ProductPage struct {
	Products    []models.Product `json:"products"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Total       int64            `json:"total"`
}

// ProductInput is the payload for creating a product.
type ProductInput struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	Category      string           `json:"category" validate:"required,max=64"`
	Image         string           `json:"image" validate:"max=500"`
	Stock         int              `json:"stock" validate:"gte=0"`
	IsActive      *bool            `json:"isActive"`
}

func checkPrices(price *decimal.Decimal, original *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return apperror.New(apperror.InvalidInput, "price must not be negative")
	}
	if original != nil && original.IsNegative() {
		return apperror.New(apperror.InvalidInput, "originalPrice must not be negative")
	}
	return nil
}

// List returns a page of active products with their sellers attached.
func (s *ProductService) List(ctx context.Context, filter ProductFilter) (*ProductPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	category := strings.TrimSpace(filter.Category)
	if category == models.CategoryAll {
		category = ""
	}

	products, total, err := s.repo.List(ctx, models.ProductQuery{
		Category:   category,
		Search:     strings.TrimSpace(filter.Search),
		ActiveOnly: true,
		Sort:       models.ParseProductSort(filter.Sort),
		Offset:     (page - 1) * limit,
		Limit:      limit,
	})
	if err != nil {
		return nil, storageError(err, "Products")
	}
	if err := s.attachSellers(ctx, products); err != nil {
		return nil, err
	}

	return &ProductPage{
		Products:    products,
		TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
		CurrentPage: page,
		Total:       total,
	}, nil
}

// ListByCategory returns every active product of one category.
func (s *ProductService) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	products, _, err := s.repo.List(ctx, models.ProductQuery{
		Category:   category,
		ActiveOnly: true,
		Sort:       models.SortNewest,
	})
	if err != nil {
		return nil, storageError(err, "Products")
	}
	if err := s.attachSellers(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// Get returns a product with its seller attached.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "Product")
	}
	seller, err := s.users.GetByID(ctx, product.SellerID)
	if err == nil {
		product.Seller = seller.Summary()
	} else {
		log.WithError(err).WithField("product_id", id).Warn("seller of product could not be loaded")
	}
	return product, nil
}

func (s *ProductService) attachSellers(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, 0, len(products))
	seen := make(map[string]bool)
	for _, p := range products {
		if !seen[p.SellerID] {
			seen[p.SellerID] = true
			ids = append(ids, p.SellerID)
		}
	}
	sellers, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return storageError(err, "Sellers")
	}
	byID := make(map[string]*models.UserSummary, len(sellers))
	for i := range sellers {
		byID[sellers[i].ID] = sellers[i].Summary()
	}
	for i := range products {
		products[i].Seller = byID[products[i].SellerID]
	}
	return nil
}

// ListSellerProducts returns all products owned by seller, active or not, newest first.
func (s *ProductService) ListSellerProducts(ctx context.Context, seller *models.User) ([]models.Product, error) {
	products, err := s.repo.ListBySeller(ctx, seller.ID)
	if err != nil {
		return nil, storageError(err, "Products")
	}
	return products, nil
}

// Create adds a product owned by seller.
func (s *ProductService) Create(ctx context.Context, seller *models.User, in ProductInput) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := checkPrices(&in.Price, in.OriginalPrice); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		Category:      in.Category,
		Image:         in.Image,
		Stock:         in.Stock,
		IsActive:      in.IsActive == nil || *in.IsActive,
		SellerID:      seller.ID,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, storageError(err, "Product")
	}
	log.WithFields(log.Fields{"product_id": product.ID, "seller_id": seller.ID}).Info("product created")
	return product, nil
}

// loadOwned fetches a product and checks that seller owns it.
func (s *ProductService) loadOwned(ctx context.Context, seller *models.User, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "Product")
	}
	if product.SellerID != seller.ID {
		return nil, apperror.New(apperror.Forbidden, "Access denied")
	}
	return product, nil
}

// Update applies patch to a product owned by seller. Only the fields present
// in the patch are written.
func (s *ProductService) Update(ctx context.Context, seller *models.User, id string, patch models.ProductPatch) (*models.Product, error) {
	if _, err := s.loadOwned(ctx, seller, id); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	if patch.Name != nil && *patch.Name == "" {
		return nil, apperror.New(apperror.InvalidInput, "name cannot be empty")
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) == "" {
		return nil, apperror.New(apperror.InvalidInput, "category cannot be empty")
	}
	if err := checkPrices(patch.Price, patch.OriginalPrice); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, storageError(err, "Product")
	}
	return updated, nil
}

// Delete removes a product owned by seller.
func (s *ProductService) Delete(ctx context.Context, seller *models.User, id string) error {
	if _, err := s.loadOwned(ctx, seller, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storageError(err, "Product")
	}
	log.WithFields(log.Fields{"product_id": id, "seller_id": seller.ID}).Info("product deleted")
	return nil
}

// ImportResult summarises a spreadsheet import.
type ImportResult struct {
	Created  []models.Product       `json:"created"`
	Rejected []spreadsheet.RowError `json:"rejected"`
}

// Import creates one product per valid spreadsheet row. Invalid rows are
// reported and skipped.
func (s *ProductService) Import(ctx context.Context, seller *models.User, r io.Reader) (*ImportResult, error) {
	rows, rejected, err := spreadsheet.ReadProducts(r)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.InvalidInput, "Invalid Excel file: "+err.Error())
	}

	result := &ImportResult{Created: []models.Product{}, Rejected: rejected}
	for _, row := range rows {
		product, err := s.Create(ctx, seller, ProductInput{
			Name:          row.Name,
			Description:   row.Description,
			Price:         row.Price,
			OriginalPrice: row.OriginalPrice,
			Category:      row.Category,
			Image:         row.Image,
			Stock:         row.Stock,
		})
		if err != nil {
			if apperror.KindOf(err) == apperror.Internal {
				return nil, err
			}
			result.Rejected = append(result.Rejected, spreadsheet.RowError{Line: row.Line, Message: apperror.PublicMessage(err)})
			continue
		}
		result.Created = append(result.Created, *product)
	}
	if result.Rejected == nil {
		result.Rejected = []spreadsheet.RowError{}
	}
	log.WithFields(log.Fields{
		"seller_id": seller.ID,
		"created":   len(result.Created),
		"rejected":  len(result.Rejected),
	}).Info("product import finished")
	return result, nil
}

// Export writes the seller's products as a workbook.
func (s *ProductService) Export(ctx context.Context, seller *models.User, w io.Writer) error {
	products, err := s.ListSellerProducts(ctx, seller)
	if err != nil {
		return err
	}
	if err := spreadsheet.WriteProducts(w, products); err != nil {
		return apperror.Wrap(err, apperror.Internal, "failed to export products")
	}
	return nil
}
