package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"marketplace/internal/apperror"
	"marketplace/internal/models"
	"marketplace/internal/services"
)

// userKey is the fiber.Ctx Locals key holding the authenticated *models.User.
const userKey = "user"

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthRequired is a Fiber middleware to check for a valid JWT token. The
// user it names is loaded and stored for the handlers that follow.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := authService.VerifyToken(c.UserContext(), bearerToken(c.Get(fiber.HeaderAuthorization)))
		if err != nil {
			return err
		}
		c.Locals(userKey, user)
		return c.Next()
	}
}

// RequireRole rejects authenticated users without role. It must run after AuthRequired.
func RequireRole(authService *services.AuthService, role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := authService.RequireRole(CurrentUser(c), role); err != nil {
			return err
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}

// MustUser is CurrentUser for handlers mounted behind AuthRequired.
func MustUser(c *fiber.Ctx) (*models.User, error) {
	user := CurrentUser(c)
	if user == nil {
		return nil, apperror.New(apperror.Unauthorized, "Not authorized, no token")
	}
	return user, nil
}
