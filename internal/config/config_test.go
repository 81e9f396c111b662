package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 30*24*time.Hour, cfg.JWTTTL)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateServer(), "JWT secret has no default")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "MEMORY")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "1h")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, config.DriverMemory, cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketplace.yaml")
	content := "database_driver: postgres\ndatabase_dsn: host=db user=shop\nlog_format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "host=db user=shop", cfg.Database.DSN)
	assert.Equal(t, "json", cfg.LogFormat)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Port:       ":8080",
			Database:   config.Database{Driver: config.DriverMemory},
			JWTSecret:  "x",
			JWTTTL:     time.Hour,
			LogFormat:  "text",
			BcryptCost: 10,
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "oracle" }},
		{"mongo without url", func(c *config.Config) { c.Database.Driver = config.DriverMongo }},
		{"postgres without dsn", func(c *config.Config) { c.Database.Driver = config.DriverPostgres }},
		{"stripe without key", func(c *config.Config) { c.Payment.Driver = config.PaymentStripe }},
		{"unknown payment driver", func(c *config.Config) { c.Payment.Driver = "paypal" }},
		{"bcrypt cost too low", func(c *config.Config) { c.BcryptCost = 1 }},
		{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }},
	}

	require.NoError(t, base().ValidateServer())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MARKETPLACE_DOTENV_TEST=from-file\nAPP_PORT=7070\n"), 0o600))
	t.Setenv("APP_PORT", "6060")
	t.Cleanup(func() { os.Unsetenv("MARKETPLACE_DOTENV_TEST") })

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("MARKETPLACE_DOTENV_TEST"))

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Port, "variables already set are not overridden")

	assert.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, config.LoadDotEnv(""))
}
