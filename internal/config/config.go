package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env       string `mapstructure:"BLG_ENV"`
	HTTPAddr  string `mapstructure:"BLG_HTTP_ADDR"`
	PublicURL string `mapstructure:"BLG_PUBLIC_ORIGIN"`

	Database DBConfig       `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Auth     AuthConfig     `mapstructure:",squash"`
	Mail     MailConfig     `mapstructure:",squash"`
	Blog     BlogConfig     `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type DBConfig struct {
	// PostgresDSN empty means the in-memory store is used.
	PostgresDSN string `mapstructure:"BLG_POSTGRES_DSN"`
}

type CacheConfig struct {
	RedisAddr string `mapstructure:"BLG_REDIS_ADDR"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"BLG_JWT_SECRET"`
	SessionTTL time.Duration `mapstructure:"BLG_SESSION_TTL"`
}

type MailConfig struct {
	SMTPAddr     string `mapstructure:"BLG_SMTP_ADDR"`
	SMTPUsername string `mapstructure:"BLG_SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"BLG_SMTP_PASSWORD"`
	From         string `mapstructure:"BLG_MAIL_FROM"`
}

type BlogConfig struct {
	PageSize int `mapstructure:"BLG_PAGE_SIZE"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"BLG_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"BLG_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("BLG_ENV", "dev")
	viper.SetDefault("BLG_HTTP_ADDR", ":8080")
	viper.SetDefault("BLG_PUBLIC_ORIGIN", "http://localhost:3000")
	viper.SetDefault("BLG_POSTGRES_DSN", "")
	viper.SetDefault("BLG_REDIS_ADDR", "127.0.0.1:6379")
	viper.SetDefault("BLG_JWT_SECRET", "")
	viper.SetDefault("BLG_SESSION_TTL", "24h")
	viper.SetDefault("BLG_SMTP_ADDR", "")
	viper.SetDefault("BLG_SMTP_USERNAME", "")
	viper.SetDefault("BLG_SMTP_PASSWORD", "")
	viper.SetDefault("BLG_MAIL_FROM", "no-reply@blogicum.local")
	viper.SetDefault("BLG_PAGE_SIZE", 10)
	viper.SetDefault("BLG_RATE_LIMIT_RPM", 120)
	viper.SetDefault("BLG_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	// Handle array parsing for comma-separated values
	if origins := viper.GetString("BLG_CORS_ALLOWED_ORIGINS"); origins != "" {
		viper.Set("BLG_CORS_ALLOWED_ORIGINS", strings.Split(origins, ","))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Blog.PageSize <= 0 {
		return fmt.Errorf("BLG_PAGE_SIZE must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("BLG_SESSION_TTL must be positive")
	}
	if c.IsProd() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("BLG_JWT_SECRET is required in prod")
		}
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("BLG_POSTGRES_DSN is required in prod")
		}
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
