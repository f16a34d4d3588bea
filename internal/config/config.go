// Package config provides gateway configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/invocation-gateway/pkg/provider"
)

const logPrefix = "config:LoadConfig"

// Config holds invocation-gateway configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"invocation-gateway"`

	// Subjects
	GatewaySubject string `envconfig:"GATEWAY_SUBJECT" default:"gateway.v1"`
	EventSubject   string `envconfig:"GATEWAY_EVENT_SUBJECT"`

	// Timeouts
	RequestTimeout  time.Duration `envconfig:"GATEWAY_REQUEST_TIMEOUT" default:"25s"`
	InvokeTimeout   time.Duration `envconfig:"INVOKE_TIMEOUT" default:"0s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Provider credentials handed to every provider factory
	AccessKeyID     string `envconfig:"PROVIDER_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"PROVIDER_SECRET_ACCESS_KEY"`
	Region          string `envconfig:"PROVIDER_REGION" default:"us-east-1"`

	// Invocation
	WorkerPoolSize int `envconfig:"WORKER_POOL_SIZE" default:"64"`

	// Result store
	ResultStoreCapacity int           `envconfig:"RESULT_STORE_CAPACITY" default:"10000"`
	ResultStoreShards   int           `envconfig:"RESULT_STORE_SHARDS" default:"32"`
	ResultTTL           time.Duration `envconfig:"RESULT_TTL" default:"0s"`

	// Optional backends; the matching provider is registered only when set
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	RedisURL    string `envconfig:"REDIS_URL"`

	// HTTP API (GATEWAY_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"GATEWAY_HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the gateway server.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForClient(); err != nil {
		return err
	}
	if c.GatewaySubject == "" {
		return fmt.Errorf("%s - GATEWAY_SUBJECT must not be empty", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - GATEWAY_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.InvokeTimeout < 0 {
		return fmt.Errorf("%s - INVOKE_TIMEOUT must not be negative", logPrefix)
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("%s - WORKER_POOL_SIZE must be positive", logPrefix)
	}
	if c.ResultStoreCapacity <= 0 {
		return fmt.Errorf("%s - RESULT_STORE_CAPACITY must be positive", logPrefix)
	}
	if c.ResultStoreShards <= 0 {
		return fmt.Errorf("%s - RESULT_STORE_SHARDS must be positive", logPrefix)
	}
	if c.ResultTTL < 0 {
		return fmt.Errorf("%s - RESULT_TTL must not be negative", logPrefix)
	}
	if c.Region == "" {
		return fmt.Errorf("%s - PROVIDER_REGION must not be empty", logPrefix)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%s - LOG_FORMAT must be text or json, got %q", logPrefix, c.LogFormat)
	}
	return nil
}

// ValidateForClient checks required config for CLI commands that talk to a running gateway.
func (c *Config) ValidateForClient() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required", logPrefix)
	}
	return nil
}

// Credentials returns the provider config built from the PROVIDER_* variables.
func (c *Config) Credentials() provider.Config {
	return provider.Config{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Region:          c.Region,
	}
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}
