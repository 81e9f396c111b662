package handlers

import (
	"github.com/gofiber/fiber/v2"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/services"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)

	requireAuth := middleware.AuthRequired(h.authService)
	authRoutes.Get("/me", requireAuth, h.HandleMe)
	authRoutes.Put("/profile", requireAuth, h.HandleUpdateProfile)
}

// authResponse is the user plus a fresh token. The legacy "_id" key is kept
// for the storefront.
type authResponse struct {
	LegacyID string `json:"_id"`
	*models.User
	Token string `json:"token"`
}

func newAuthResponse(result *services.AuthResult) authResponse {
	return authResponse{LegacyID: result.User.ID, User: result.User, Token: result.Token}
}

// HandleRegister handles new client registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newAuthResponse(result))
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(newAuthResponse(result))
}

// HandleMe returns the authenticated user.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	user, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// HandleUpdateProfile changes the caller's name, email, phone or address.
func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	user, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	var patch models.ProfilePatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}

	updated, err := h.authService.UpdateProfile(c.UserContext(), user, patch)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}
