// Package config loads process settings from the environment and an optional file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"

	PaymentStripe = "stripe"
	PaymentMemory = "memory"
)

// Database selects and addresses the backing store.
type Database struct {
	Driver        string
	DSN           string
	MongoURL      string
	MongoDatabase string
}

// Payment configures the payment collaborator. An empty Driver means none.
type Payment struct {
	Driver          string
	StripeSecretKey string
}

// Config holds every setting read at start-up.
type Config struct {
	Port        string
	Database    Database
	JWTSecret   string
	JWTTTL      time.Duration
	RabbitMQURL string
	Payment     Payment
	CORSOrigins string
	LogLevel    string
	LogFormat   string
	BcryptCost  int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "marketplace.db")
	v.SetDefault("MONGO_URL", "")
	v.SetDefault("MONGO_DATABASE", "marketplace")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "720h") // 30 days
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("PAYMENT_DRIVER", "")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
}

// Load reads the configuration. Environment variables take precedence over
// values from the file at path, which is optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	port := v.GetString("APP_PORT")
	if port != "" && !strings.Contains(port, ":") {
		port = ":" + port
	}

	return &Config{
		Port: port,
		Database: Database{
			Driver:        strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DSN:           v.GetString("DATABASE_DSN"),
			MongoURL:      v.GetString("MONGO_URL"),
			MongoDatabase: v.GetString("MONGO_DATABASE"),
		},
		JWTSecret:   v.GetString("JWT_SECRET"),
		JWTTTL:      v.GetDuration("JWT_TTL"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		Payment: Payment{
			Driver:          strings.ToLower(v.GetString("PAYMENT_DRIVER")),
			StripeSecretKey: v.GetString("STRIPE_SECRET_KEY"),
		},
		CORSOrigins: v.GetString("CORS_ORIGINS"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   strings.ToLower(v.GetString("LOG_FORMAT")),
		BcryptCost:  v.GetInt("BCRYPT_COST"),
	}, nil
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			return errors.Errorf("DATABASE_DSN is required for driver %q", c.Database.Driver)
		}
	case DriverMongo:
		if c.Database.MongoURL == "" {
			return errors.New("MONGO_URL is required for driver \"mongo\"")
		}
		if c.Database.MongoDatabase == "" {
			return errors.New("MONGO_DATABASE must not be empty")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown DATABASE_DRIVER %q", c.Database.Driver)
	}

	switch c.Payment.Driver {
	case "", PaymentMemory:
	case PaymentStripe:
		if c.Payment.StripeSecretKey == "" {
			return errors.New("STRIPE_SECRET_KEY is required for payment driver \"stripe\"")
		}
	default:
		return errors.Errorf("unknown PAYMENT_DRIVER %q", c.Payment.Driver)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errors.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// ValidateServer additionally checks what the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.Port == "" {
		return errors.New("APP_PORT must not be empty")
	}
	return nil
}

// LoadDotEnv copies KEY=VALUE pairs from path into the process environment.
// Variables already set win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to read env file %s", path)
	}
	return nil
}
