package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/logging"
	"marketplace/internal/seed"
	"marketplace/internal/server"
	"marketplace/internal/services"
	"marketplace/pkg/payment"
	"marketplace/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.WithError(err).Fatal("marketplace exited")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "marketplace",
		Usage: "grocery marketplace API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "optional config file (yaml, toml or json); environment variables take precedence",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded into the environment if it exists",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "seed",
				Usage:  "create the seller account and the sample catalog",
				Action: runSeed,
			},
			{
				Name:   "worker",
				Usage:  "consume order events from RabbitMQ",
				Action: runWorker,
			},
		},
		DefaultCommand: "serve",
	}
}

// loadConfig reads and validates the configuration and sets up logging.
func loadConfig(c *cli.Context, validate func(*config.Config) error) (*config.Config, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newPaymentGateway returns nil when card payments are not configured.
func newPaymentGateway(cfg config.Payment) (payment.Gateway, error) {
	switch cfg.Driver {
	case config.PaymentStripe:
		gateway, err := payment.NewStripeGateway(cfg.StripeSecretKey)
		if errors.Is(err, payment.ErrNotConfigured) {
			log.Warn("Stripe secret key not configured, card payments will not work")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return gateway, nil
	case config.PaymentMemory:
		log.Warn("using the in-memory payment gateway, every intent is confirmed immediately")
		return payment.NewMemoryGateway(true), nil
	default:
		return nil, nil
	}
}

func newServices(cfg *config.Config, store *database.Store, gateway payment.Gateway, events services.EventPublisher) server.Services {
	auth := services.NewAuthService(store.Users, services.AuthConfig{
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.JWTTTL,
		BcryptCost: cfg.BcryptCost,
	})
	return server.Services{
		Auth:     auth,
		Products: services.NewProductService(store.Products, store.Users),
		Orders:   services.NewOrderService(store.Orders, store.Products, store.Users, gateway, events),
		Sellers:  services.NewSellerService(store.Products, store.Orders, store.Users),
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c, (*config.Config).ValidateServer)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(store)

	gateway, err := newPaymentGateway(cfg.Payment)
	if err != nil {
		return err
	}

	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			return err
		}
		defer mqClient.Close()
		events = mqClient
	} else {
		log.Info("RABBITMQ_URL not set, order events are not published")
	}

	app := server.New(newServices(cfg, store, gateway, events), server.Options{
		CORSOrigins: cfg.CORSOrigins,
		AccessLog:   true,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"port":   cfg.Port,
			"driver": cfg.Database.Driver,
		}).Info("starting server")
		serverErr <- app.Listen(cfg.Port)
	}()

	select {
	case err := <-serverErr:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	log.Info("server gracefully stopped")
	return nil
}

func runSeed(c *cli.Context) error {
	cfg, err := loadConfig(c, (*config.Config).Validate)
	if err != nil {
		return err
	}

	store, err := database.Open(c.Context, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(store)

	auth := services.NewAuthService(store.Users, services.AuthConfig{BcryptCost: cfg.BcryptCost})
	result, err := seed.Run(c.Context, auth, store.Products)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"email":            result.Seller.Email,
		"seller_created":   result.SellerCreated,
		"products_created": result.ProductsCreated,
	}).Info("database seeded")
	return nil
}

func runWorker(c *cli.Context) error {
	cfg, err := loadConfig(c, (*config.Config).Validate)
	if err != nil {
		return err
	}
	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
	if err != nil {
		return err
	}
	defer mqClient.Close()

	return mqClient.ConsumeOrderEvents(ctx, rabbitmq.LogOrderEvent)
}

func closeStore(store *database.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		log.WithError(err).Error("failed to close database")
	}
}
