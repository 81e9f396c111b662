package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"marketplace/internal/apperror"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID string `json:"id"`
	jwt.StandardClaims
}

// AuthConfig configures token signing and password hashing.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(cfg.JWTSecret),
		tokenTTL:   cfg.TokenTTL,
		bcryptCost: cfg.BcryptCost,
	}
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Phone    string `json:"phone" validate:"max=32"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  *models.User
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func invalidCredentials() error {
	return apperror.New(apperror.Unauthorized, "Invalid email or password")
}

// Register creates a client account. Seller accounts are never created here.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user := &models.User{Name: in.Name, Email: in.Email, Role: models.RoleClient, Phone: in.Phone}
	if err := s.createUser(ctx, user, in.Password); err != nil {
		return nil, err
	}
	log.WithField("user_id", user.ID).Info("user registered")
	return s.issue(user)
}

func (s *AuthService) createUser(ctx context.Context, user *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return apperror.Wrap(err, apperror.Internal, "failed to hash password")
	}
	user.Password = string(hash)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return apperror.Wrap(err, apperror.Conflict, "User already exists")
		}
		return apperror.Wrap(err, apperror.Internal, "failed to register user")
	}
	return nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return &AuthResult{Token: token, User: user}, nil
}

// Login checks the credentials and issues a token. Unknown emails and wrong
// passwords produce the same error and take comparable time.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.Wrap(err, apperror.Internal, "failed to look up user")
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, invalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalidCredentials()
	}
	return s.issue(user)
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
		if err != nil {
			log.WithError(err).Error("failed to prepare dummy password hash")
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// GenerateToken signs an HS256 token for userID.
func (s *AuthService) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", apperror.Wrap(err, apperror.Internal, "failed to generate token")
	}
	return signed, nil
}

// VerifyToken validates the token and loads the user it names. The returned
// user never carries the password hash.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, apperror.New(apperror.Unauthorized, "Not authorized, no token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		if err == nil {
			err = errors.New("token carries no user id")
		}
		return nil, apperror.Wrap(err, apperror.Unauthorized, "Not authorized, token failed")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.Wrap(err, apperror.Unauthorized, "User not found")
		}
		return nil, apperror.Wrap(err, apperror.Internal, "failed to load user")
	}
	user.Password = ""
	return user, nil
}

// RequireRole fails with Forbidden unless user holds role.
func (s *AuthService) RequireRole(user *models.User, role models.Role) error {
	return requireRole(user, role)
}

func requireRole(user *models.User, role models.Role) error {
	if user == nil {
		return apperror.New(apperror.Unauthorized, "Not authorized")
	}
	if user.Role == role {
		return nil
	}
	switch role {
	case models.RoleSeller:
		return apperror.New(apperror.Forbidden, "Access denied. Seller only.")
	case models.RoleClient:
		return apperror.New(apperror.Forbidden, "Access denied. Client only.")
	default:
		return apperror.New(apperror.Internal, "unknown role %q", role)
	}
}

// UpdateProfile applies patch to the caller's name, email, phone and address.
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, patch models.ProfilePatch) (*models.User, error) {
	current, err := s.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		return nil, storageError(err, "User")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.New(apperror.InvalidInput, "name cannot be empty")
		}
		current.Name = name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if err := validate.Var(email, "required,email,max=255"); err != nil {
			return nil, apperror.Wrap(err, apperror.InvalidInput, "email must be a valid email address")
		}
		current.Email = email
	}
	if patch.Phone != nil {
		current.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Address != nil {
		current.Address = *patch.Address
	}

	if err := s.userRepo.UpdateProfile(ctx, current); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperror.Wrap(err, apperror.Conflict, "Email is already in use")
		}
		return nil, storageError(err, "User")
	}
	current.Password = ""
	return current, nil
}

// EnsureSeller returns the seller registered under email, creating it when
// absent. Sellers are provisioned out-of-band, never through Register.
func (s *AuthService) EnsureSeller(ctx context.Context, name, email, password, phone string) (*models.User, bool, error) {
	email = normalizeEmail(email)
	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleSeller {
			return nil, false, apperror.New(apperror.Conflict, "%s is registered as a %s", email, existing.Role)
		}
		existing.Password = ""
		return existing, false, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, false, apperror.Wrap(err, apperror.Internal, "failed to look up seller")
	}

	seller := &models.User{Name: name, Email: email, Role: models.RoleSeller, Phone: phone}
	if err := s.createUser(ctx, seller, password); err != nil {
		return nil, false, err
	}
	seller.Password = ""
	return seller, true, nil
}
