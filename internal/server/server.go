// Package server assembles the Fiber application.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"marketplace/internal/handlers"
	"marketplace/internal/services"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Auth     *services.AuthService
	Products *services.ProductService
	Orders   *services.OrderService
	Sellers  *services.SellerService
}

// Options tunes the HTTP layer.
type Options struct {
	CORSOrigins string
	// AccessLog enables the per-request log line.
	AccessLog bool
}

// New builds the Fiber app with every route mounted under /api.
func New(svc Services, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "marketplace",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    8 << 20,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Output: log.StandardLogger().WriterLevel(log.InfoLevel),
		}))
	}
	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	health := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "OK",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
	app.Get("/health", health)

	api := app.Group("/api")
	api.Get("/health", health)
	handlers.NewAuthHandler(svc.Auth).RegisterRoutes(api)
	handlers.NewProductHandler(svc.Products).RegisterRoutes(api)
	handlers.NewOrderHandler(svc.Orders, svc.Auth).RegisterRoutes(api)
	handlers.NewSellerHandler(svc.Products, svc.Sellers, svc.Auth).RegisterRoutes(api)
	handlers.NewPaymentHandler(svc.Orders, svc.Auth).RegisterRoutes(api)

	return app
}
