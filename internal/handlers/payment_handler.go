package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"marketplace/internal/middleware"
	"marketplace/internal/services"
)

// PaymentHandler exposes the card payment collaborator to the storefront.
type PaymentHandler struct {
	orders      *services.OrderService
	authService *services.AuthService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(orders *services.OrderService, authService *services.AuthService) *PaymentHandler {
	return &PaymentHandler{
		orders:      orders,
		authService: authService,
	}
}

// RegisterRoutes registers the payment routes with the Fiber app.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payment", middleware.AuthRequired(h.authService))
	paymentRoutes.Post("/create-payment-intent", h.HandleCreateIntent)
	paymentRoutes.Post("/confirm-payment", h.HandleConfirmPayment)
}

// HandleCreateIntent starts a card payment for the given amount.
func (h *PaymentHandler) HandleCreateIntent(c *fiber.Ctx) error {
	user, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	var req struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	intent, err := h.orders.CreatePaymentIntent(c.UserContext(), user, req.Amount, req.Currency)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
	})
}

// HandleConfirmPayment reports whether an intent has been paid.
func (h *PaymentHandler) HandleConfirmPayment(c *fiber.Ctx) error {
	var req struct {
		PaymentIntentID string `json:"paymentIntentId"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	intent, err := h.orders.ConfirmPayment(c.UserContext(), req.PaymentIntentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"paymentIntent": fiber.Map{
			"id":     intent.ID,
			"amount": intent.Amount(),
			"status": intent.Status,
		},
	})
}
