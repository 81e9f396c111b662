package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// stockRepository wraps the in-memory product store and lets a test fail the
// decrement of chosen products. Increments are recorded.
type stockRepository struct {
	*repositories.MemoryProductRepository
	mock.Mock
	failDecrement map[string]error
}

func newStockRepository() *stockRepository {
	return &stockRepository{
		MemoryProductRepository: repositories.NewMemoryProductRepository(),
		failDecrement:           map[string]error{},
	}
}

func (r *stockRepository) DecrementStock(ctx context.Context, id string, quantity int) error {
	if err, ok := r.failDecrement[id]; ok {
		return err
	}
	return r.MemoryProductRepository.DecrementStock(ctx, id, quantity)
}

func (r *stockRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	r.Called(id, quantity)
	return r.MemoryProductRepository.IncrementStock(ctx, id, quantity)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mock.Mock
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	args := p.Called(event.Type, event.Status)
	return args.Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAuthService(users repositories.UserRepository) *services.AuthService {
	return services.NewAuthService(users, services.AuthConfig{
		JWTSecret:  "test_jwt_secret",
		BcryptCost: bcrypt.MinCost,
	})
}

func createUser(t *testing.T, users repositories.UserRepository, email string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Name: email, Email: email, Role: role, Password: "x"}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func createProduct(t *testing.T, products repositories.ProductRepository, seller *models.User, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     name,
		Price:    dec(price),
		Category: "Fruits",
		Stock:    stock,
		IsActive: true,
		SellerID: seller.ID,
	}
	require.NoError(t, products.Create(context.Background(), product))
	return product
}

func shipping() models.ShippingAddress {
	return models.ShippingAddress{Street: "1 Main St", City: "Springfield", ZipCode: "12345"}
}
