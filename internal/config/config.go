// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// GatewayConfig holds the Razorpay-compatible payment gateway credentials.
// KeyID is publishable and returned to checkout clients; KeySecret and
// WebhookSecret never leave the server.
type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	KeyID          string `yaml:"key_id"`
	KeySecret      string `yaml:"key_secret"`
	WebhookSecret  string `yaml:"webhook_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type Config struct {
	SiteName        string          `yaml:"site_name"`
	BaseURL         string          `yaml:"base_url"`
	Port            int             `yaml:"port"`
	AppEnv          string          `yaml:"app_env"`
	Database        DatabaseConfig  `yaml:"database"`
	Gateway         GatewayConfig   `yaml:"gateway"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	DefaultCurrency string          `yaml:"default_currency"`
	CSRFAuthKey     string
}

func getStringEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
		slog.Warn("Environment variable is not a number, using default", "key", key, "value", valueStr)
	}
	return defaultValue
}

func LoadConfig(filename string) (*Config, error) {
	appEnvFromSystem := os.Getenv("APP_ENV")
	if appEnvFromSystem != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			slog.Info("configs/.env not found; expected in production or when variables are set system-wide.", "error", err)
		}
	}

	file, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", filename, err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode YAML from '%s': %w", filename, err)
	}

	cfg.AppEnv = getStringEnvOrDefault("APP_ENV", cfg.AppEnv)
	isProduction := cfg.AppEnv == "production"

	cfg.BaseURL = getStringEnvOrDefault("BASE_URL", cfg.BaseURL)
	cfg.Port = getIntEnvOrDefault("PORT", cfg.Port)

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
		cfg.Database.Host = ""
		cfg.Database.Port = 0
		cfg.Database.User = ""
		cfg.Database.DBName = ""
	} else {
		cfg.Database.Host = getStringEnvOrDefault("DB_HOST", cfg.Database.Host)
		cfg.Database.Port = getIntEnvOrDefault("DB_PORT", cfg.Database.Port)
		cfg.Database.User = getStringEnvOrDefault("DB_USER", cfg.Database.User)
		cfg.Database.DBName = getStringEnvOrDefault("DB_NAME", cfg.Database.DBName)
		cfg.Database.Password = getStringEnvOrDefault("DB_PASSWORD", "")
	}

	cfg.Gateway.BaseURL = getStringEnvOrDefault("GATEWAY_BASE_URL", cfg.Gateway.BaseURL)
	cfg.Gateway.KeyID = getStringEnvOrDefault("GATEWAY_KEY_ID", cfg.Gateway.KeyID)
	cfg.Gateway.KeySecret = getStringEnvOrDefault("GATEWAY_KEY_SECRET", cfg.Gateway.KeySecret)
	if isProduction && cfg.Gateway.KeySecret == "" {
		slog.Error("GATEWAY_KEY_SECRET must be set in the environment for production")
		return nil, fmt.Errorf("GATEWAY_KEY_SECRET must be set in the environment for production")
	}

	cfg.Gateway.WebhookSecret = getStringEnvOrDefault("GATEWAY_WEBHOOK_SECRET", cfg.Gateway.WebhookSecret)
	if isProduction && cfg.Gateway.WebhookSecret == "" {
		slog.Warn("GATEWAY_WEBHOOK_SECRET not set; webhook signatures will be checked against the key secret")
	}

	cfg.CSRFAuthKey = getStringEnvOrDefault("CSRF_AUTH_KEY", "")
	if isProduction && cfg.CSRFAuthKey == "" {
		slog.Error("CSRF_AUTH_KEY must be set in the environment for production (32 random bytes recommended)")
		return nil, fmt.Errorf("CSRF_AUTH_KEY must be set in the environment for production")
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "INR"
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 5
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BASE_URL is not set")
	}
	if isProduction && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("BASE_URL must start with https:// in production")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database connection parameters (DATABASE_DSN or DB_HOST etc.) are not set")
	}
	if cfg.Database.Host != "" {
		if cfg.Database.User == "" {
			return nil, fmt.Errorf("DB_USER is not set")
		}
		if cfg.Database.DBName == "" {
			return nil, fmt.Errorf("DB_NAME is not set")
		}
	}
	if cfg.Gateway.BaseURL == "" {
		return nil, fmt.Errorf("gateway.base_url (GATEWAY_BASE_URL) is not set")
	}
	if cfg.Gateway.KeyID == "" {
		return nil, fmt.Errorf("gateway.key_id (GATEWAY_KEY_ID) is not set")
	}

	slog.Info("Configuration loaded", "app_env", cfg.AppEnv, "base_url", cfg.BaseURL, "port", cfg.Port)
	return &cfg, nil
}

func InitLogger(appEnv string) {
	var logger *slog.Logger
	logLevel := slog.LevelInfo

	if appEnv == "development" {
		logLevel = slog.LevelDebug
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: false,
		}))
	}
	slog.SetDefault(logger)
}
