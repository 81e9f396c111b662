// Package database opens the configured backing store and hands out its repositories.
package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"marketplace/internal/config"
	"marketplace/internal/logging"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
)

// Store bundles the repositories of one backing store. It is created once at
// start-up, passed to the services, and closed on shutdown.
type Store struct {
	Users    repositories.UserRepository
	Products repositories.ProductRepository
	Orders   repositories.OrderRepository

	close func(ctx context.Context) error
}

// Close releases the underlying connections.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Database) (*Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return OpenGORM(sqlite.Open(cfg.DSN))
	case config.DriverPostgres:
		return OpenGORM(postgres.Open(cfg.DSN))
	case config.DriverMongo:
		return OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case config.DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenGORM opens a relational store and migrates its schema.
func OpenGORM(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logging.NewGormLogger(log.WithField("component", "gorm"), 200*time.Millisecond),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get database handle")
	}
	if db.Dialector.Name() == "sqlite" {
		// SQLite allows a single writer; serialising avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	}

	store := NewGORMStore(db)
	store.close = func(context.Context) error { return sqlDB.Close() }
	return store, nil
}

// Migrate creates or updates the relational schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}, &models.OrderItem{}); err != nil {
		return errors.Wrap(err, "failed to auto-migrate database")
	}
	return nil
}

// NewGORMStore wraps an already migrated GORM handle.
func NewGORMStore(db *gorm.DB) *Store {
	return &Store{
		Users:    repositories.NewGORMUserRepository(db),
		Products: repositories.NewGORMProductRepository(db),
		Orders:   repositories.NewGORMOrderRepository(db),
	}
}

// OpenMongo connects to MongoDB, registers the decimal codec and ensures indexes.
func OpenMongo(ctx context.Context, url, name string) (*Store, error) {
	opts := options.Client().ApplyURI(url).SetRegistry(NewMongoRegistry())
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	db := client.Database(name)
	if err := repositories.EnsureMongoIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &Store{
		Users:    repositories.NewMongoUserRepository(db),
		Products: repositories.NewMongoProductRepository(db),
		Orders:   repositories.NewMongoOrderRepository(db),
		close:    client.Disconnect,
	}, nil
}

// NewMemoryStore returns a process-local store. Data is lost on exit.
func NewMemoryStore() *Store {
	return &Store{
		Users:    repositories.NewMemoryUserRepository(),
		Products: repositories.NewMemoryProductRepository(),
		Orders:   repositories.NewMemoryOrderRepository(),
	}
}
