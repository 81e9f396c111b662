package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"marketplace/internal/apperror"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
)

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "jane@example.com" && u.Role == models.RoleClient &&
			bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret1")) == nil
	})).Return(nil).Once()

	result, err := authService.Register(ctx, services.RegisterInput{
		Name:     "  Jane  ",
		Email:    " Jane@Example.com ",
		Password: "secret1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "Jane", result.User.Name)
	assert.Equal(t, models.RoleClient, result.User.Role)
	assert.Empty(t, result.User.Password)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Return(errors.Wrap(repositories.ErrDuplicate, "email jane@example.com")).Once()

	_, err := authService.Register(ctx, services.RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "secret1"})

	assert.Equal(t, apperror.Conflict, apperror.KindOf(err))
	assert.Equal(t, "User already exists", apperror.PublicMessage(err))
}

func TestAuthService_RegisterValidation(t *testing.T) {
	authService := newAuthService(new(MockUserRepository))

	tests := []struct {
		name  string
		input services.RegisterInput
		msg   string
	}{
		{"missing name", services.RegisterInput{Email: "a@b.co", Password: "secret1"}, "name is required"},
		{"bad email", services.RegisterInput{Name: "A", Email: "nope", Password: "secret1"}, "email must be a valid email address"},
		{"short password", services.RegisterInput{Name: "A", Email: "a@b.co", Password: "123"}, "password must be at least 6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authService.Register(context.Background(), tt.input)
			assert.Equal(t, apperror.InvalidInput, apperror.KindOf(err))
			assert.Equal(t, tt.msg, apperror.PublicMessage(err))
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	users := repositories.NewMemoryUserRepository()
	authService := newAuthService(users)

	_, err := authService.Register(ctx, services.RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)

	result, err := authService.Login(ctx, "JANE@example.com", "secret1")
	require.NoError(t, err)
	assert.Empty(t, result.User.Password)

	user, err := authService.VerifyToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)

	_, wrongPassword := authService.Login(ctx, "jane@example.com", "wrong-password")
	_, unknownEmail := authService.Login(ctx, "nobody@example.com", "secret1")
	for _, err := range []error{wrongPassword, unknownEmail} {
		assert.Equal(t, apperror.Unauthorized, apperror.KindOf(err))
		assert.Equal(t, "Invalid email or password", apperror.PublicMessage(err))
	}
}

func TestAuthService_VerifyToken(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	t.Run("missing token", func(t *testing.T) {
		_, err := authService.VerifyToken(ctx, "")
		assert.Equal(t, "Not authorized, no token", apperror.PublicMessage(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := services.NewAuthService(mockRepo, services.AuthConfig{JWTSecret: "other", BcryptCost: bcrypt.MinCost})
		token, err := other.GenerateToken("u1")
		require.NoError(t, err)

		_, err = authService.VerifyToken(ctx, token)
		assert.Equal(t, apperror.Unauthorized, apperror.KindOf(err))
	})

	t.Run("expired token", func(t *testing.T) {
		claims := services.Claims{
			UserID:         "u1",
			StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test_jwt_secret"))
		require.NoError(t, err)

		_, err = authService.VerifyToken(ctx, token)
		assert.Equal(t, "Not authorized, token failed", apperror.PublicMessage(err))
	})

	t.Run("deleted user", func(t *testing.T) {
		token, err := authService.GenerateToken("gone")
		require.NoError(t, err)
		mockRepo.On("GetByID", ctx, "gone").Return(nil, errors.Wrap(repositories.ErrNotFound, "user gone")).Once()

		_, err = authService.VerifyToken(ctx, token)
		assert.Equal(t, apperror.Unauthorized, apperror.KindOf(err))
		assert.Equal(t, "User not found", apperror.PublicMessage(err))
	})

	t.Run("strips password", func(t *testing.T) {
		token, err := authService.GenerateToken("u1")
		require.NoError(t, err)
		mockRepo.On("GetByID", ctx, "u1").Return(&models.User{ID: "u1", Password: "hash", Role: models.RoleSeller}, nil).Once()

		user, err := authService.VerifyToken(ctx, token)
		require.NoError(t, err)
		assert.Empty(t, user.Password)
		assert.Equal(t, models.RoleSeller, user.Role)
	})
}

func TestAuthService_RequireRole(t *testing.T) {
	authService := newAuthService(new(MockUserRepository))
	client := &models.User{ID: "c", Role: models.RoleClient}
	seller := &models.User{ID: "s", Role: models.RoleSeller}

	assert.NoError(t, authService.RequireRole(seller, models.RoleSeller))
	assert.NoError(t, authService.RequireRole(client, models.RoleClient))

	err := authService.RequireRole(client, models.RoleSeller)
	assert.Equal(t, apperror.Forbidden, apperror.KindOf(err))
	assert.Equal(t, "Access denied. Seller only.", apperror.PublicMessage(err))

	err = authService.RequireRole(seller, models.RoleClient)
	assert.Equal(t, "Access denied. Client only.", apperror.PublicMessage(err))

	assert.Equal(t, apperror.Unauthorized, apperror.KindOf(authService.RequireRole(nil, models.RoleClient)))
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	users := repositories.NewMemoryUserRepository()
	authService := newAuthService(users)

	jane := createUser(t, users, "jane@example.com", models.RoleClient)
	createUser(t, users, "taken@example.com", models.RoleClient)

	name, phone := "Jane Doe", "+15550100"
	updated, err := authService.UpdateProfile(ctx, jane, models.ProfilePatch{
		Name:    &name,
		Phone:   &phone,
		Address: &models.Address{Street: "1 Main St", City: "Springfield"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.Name)
	assert.Equal(t, "Springfield", updated.Address.City)
	assert.Equal(t, models.RoleClient, updated.Role)
	assert.Empty(t, updated.Password)

	taken := "Taken@example.com"
	_, err = authService.UpdateProfile(ctx, jane, models.ProfilePatch{Email: &taken})
	assert.Equal(t, apperror.Conflict, apperror.KindOf(err))

	bad := "not-an-email"
	_, err = authService.UpdateProfile(ctx, jane, models.ProfilePatch{Email: &bad})
	assert.Equal(t, apperror.InvalidInput, apperror.KindOf(err))
}

func TestAuthService_EnsureSeller(t *testing.T) {
	ctx := context.Background()
	users := repositories.NewMemoryUserRepository()
	authService := newAuthService(users)

	seller, created, err := authService.EnsureSeller(ctx, "FreshMart Admin", "seller@freshmart.com", "seller123", "+1234567890")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RoleSeller, seller.Role)

	again, created, err := authService.EnsureSeller(ctx, "FreshMart Admin", "seller@freshmart.com", "seller123", "+1234567890")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, seller.ID, again.ID)

	result, err := authService.Login(ctx, "seller@freshmart.com", "seller123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, result.User.Role)

	createUser(t, users, "client@example.com", models.RoleClient)
	_, _, err = authService.EnsureSeller(ctx, "X", "client@example.com", "seller123", "")
	assert.Equal(t, apperror.Conflict, apperror.KindOf(err))
}
