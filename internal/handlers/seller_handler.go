package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"marketplace/internal/apperror"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/services"
)

// maxImportSize bounds the uploaded workbook.
const maxImportSize = 5 << 20

// SellerHandler serves the seller back office.
type SellerHandler struct {
	products    *services.ProductService
	sellers     *services.SellerService
	authService *services.AuthService
}

// NewSellerHandler creates a new SellerHandler.
func NewSellerHandler(products *services.ProductService, sellers *services.SellerService, authService *services.AuthService) *SellerHandler {
	return &SellerHandler{
		products:    products,
		sellers:     sellers,
		authService: authService,
	}
}

// RegisterRoutes registers the seller routes. Every route requires a seller token.
func (h *SellerHandler) RegisterRoutes(router fiber.Router) {
	sellerRoutes := router.Group("/seller",
		middleware.AuthRequired(h.authService),
		middleware.RequireRole(h.authService, models.RoleSeller),
	)
	sellerRoutes.Get("/products", h.HandleListProducts)
	sellerRoutes.Post("/products", h.HandleCreateProduct)
	sellerRoutes.Get("/products/export", h.HandleExportProducts)
	sellerRoutes.Post("/products/import", h.HandleImportProducts)
	sellerRoutes.Put("/products/:id", h.HandleUpdateProduct)
	sellerRoutes.Delete("/products/:id", h.HandleDeleteProduct)
	sellerRoutes.Get("/orders", h.HandleListOrders)
	sellerRoutes.Get("/dashboard", h.HandleDashboard)
}

// HandleListProducts returns all of the seller's products, active or not.
func (h *SellerHandler) HandleListProducts(c *fiber.Ctx) error {
	seller, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	products, err := h.products.ListSellerProducts(c.UserContext(), seller)
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// HandleCreateProduct adds a product owned by the caller.
func (h *SellerHandler) HandleCreateProduct(c *fiber.Ctx) error {
	seller, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	var req services.ProductInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.products.Create(c.UserContext(), seller, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct applies a partial update to one of the caller's products.
func (h *SellerHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	seller, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	var patch models.ProductPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}

	product, err := h.products.Update(c.UserContext(), seller, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes one of the caller's products.
func (h *SellerHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	seller, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	if err := h.products.Delete(c.UserContext(), seller, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

// HandleImportProducts creates products from an uploaded .xlsx file (form field "file").
func (h *SellerHandler) HandleImportProducts(c *fiber.Ctx) error {
	seller, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperror.Wrap(err, apperror.InvalidInput, "Excel file is required")
	}
	if header.Size > maxImportSize {
		return apperror.New(apperror.InvalidInput, "Excel file is too large")
	}
	file, err := header.Open()
	if err != nil {
		return apperror.Wrap(err, apperror.InvalidInput, "Excel file could not be read")
	}
	defer file.Close()

	result, err := h.products.Import(c.UserContext(), seller, file)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleExportProducts downloads the caller's products as a workbook.
func (h *SellerHandler) HandleExportProducts(c *fiber.Ctx) error {
	seller, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.products.Export(c.UserContext(), seller, &buf); err != nil {
		return err
	}
	c.Attachment("products.xlsx")
	return c.Send(buf.Bytes())
}

// HandleListOrders returns orders containing the seller's products.
func (h *SellerHandler) HandleListOrders(c *fiber.Ctx) error {
	seller, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	orders, err := h.sellers.Orders(c.UserContext(), seller)
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

// HandleDashboard returns the seller's counters.
func (h *SellerHandler) HandleDashboard(c *fiber.Ctx) error {
	seller, err := middleware.MustUser(c)
	if err != nil {
		return err
	}
	stats, err := h.sellers.Dashboard(c.UserContext(), seller)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
