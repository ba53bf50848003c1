package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	// Ops server configuration
	Server ServerConfig `env:",prefix=SERVER_"`

	// Database configuration
	Database DatabaseConfig `env:",prefix=DB_"`

	// Chat bot configuration
	Bot BotConfig `env:",prefix=BOT_"`

	// Payment gateway configuration
	Payment PaymentConfig `env:",prefix=PAYMENT_"`

	// Application configuration
	App AppConfig `env:",prefix=APP_"`
}

// ServerConfig holds the ops HTTP server configuration
type ServerConfig struct {
	Port         string `env:"PORT,default=8080"`
	Host         string `env:"HOST,default=0.0.0.0"`
	ReadTimeout  int    `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT,default=30"` // seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=shopbot"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`
}

// BotConfig holds the chat platform and shop-front configuration
type BotConfig struct {
	Token         string `env:"TOKEN,required"`
	APIBaseURL    string `env:"API_BASE_URL,default=https://api.telegram.org"`
	PollTimeout   int    `env:"POLL_TIMEOUT,default=30"` // seconds
	AdminUserID   int64  `env:"ADMIN_USER_ID,required"`
	SupportHandle string `env:"SUPPORT_HANDLE,default=@support"`
	Currency      string `env:"CURRENCY,default=GBP"`
	CatalogPath   string `env:"CATALOG_PATH,default=catalog.json"`

	// Minimum interval between admin commands, in seconds.
	AdminRateLimit int `env:"ADMIN_RATE_LIMIT,default=60"`
}

// PaymentConfig holds the crypto payment processor configuration.
// An empty APIKey selects the deterministic always-settled test gateway.
type PaymentConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL,default=https://api.crypto-provider.com/merchant"`
	Timeout int    `env:"TIMEOUT,default=15"` // seconds
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	Debug       bool   `env:"DEBUG,default=false"`
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// GetDatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetServerAddr returns the ops server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// AdminInterval returns the minimum gap between admin commands
func (c *BotConfig) AdminInterval() time.Duration {
	return time.Duration(c.AdminRateLimit) * time.Second
}

// RequestTimeout returns the payment gateway request timeout
func (c *PaymentConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
