package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Poll.DefaultTimeout)
	assert.Equal(t, time.Second, cfg.Poll.DefaultInterval)
	assert.Equal(t, 15, cfg.Poll.DefaultMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Poll.HandlerGrace)
	assert.Equal(t, 60*time.Second, cfg.Reconciler.SweepInterval)
	assert.Equal(t, 50, cfg.Reconciler.BatchSize)
	assert.Equal(t, "payconfirm", cfg.Database.Database)
	assert.NotEmpty(t, cfg.Gateway.BaseURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PAYCONFIRM_INSTANCE_ID", "payconfirm-test-7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "payconfirm-test-7", cfg.InstanceID)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
		},
		Database: DatabaseConfig{Host: "localhost", Port: 5432},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Gateway:  GatewayConfig{BaseURL: "https://gateway.example/api/v3"},
		Poll: PollConfig{
			DefaultTimeout:     15 * time.Second,
			DefaultInterval:    time.Second,
			DefaultMaxAttempts: 15,
			HandlerGrace:       5 * time.Second,
			MaxTimeout:         60 * time.Second,
		},
		Reconciler: ReconcilerConfig{
			SweepInterval: time.Minute,
			BatchSize:     50,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"missing gateway url", func(c *Config) { c.Gateway.BaseURL = "" }, "gateway.base_url"},
		{"zero interval", func(c *Config) { c.Poll.DefaultInterval = 0 }, "poll.default_interval"},
		{"timeout not above interval", func(c *Config) { c.Poll.DefaultTimeout = c.Poll.DefaultInterval }, "poll.default_timeout"},
		{"zero grace", func(c *Config) { c.Poll.HandlerGrace = 0 }, "poll.handler_grace"},
		{"zero sweep interval", func(c *Config) { c.Reconciler.SweepInterval = 0 }, "reconciler.sweep_interval"},
		{"zero batch size", func(c *Config) { c.Reconciler.BatchSize = 0 }, "reconciler.batch_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ProductionRequirements(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg := validConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.password")
	assert.Contains(t, err.Error(), "gateway.api_key")

	cfg.Database.Password = "secret"
	cfg.Gateway.APIKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", Database: "payconfirm", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=payconfirm sslmode=disable", c.DatabaseDSN())
}

func TestRedisAddr(t *testing.T) {
	c := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", c.RedisAddr())
}
