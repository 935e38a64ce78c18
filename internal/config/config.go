package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// devMobileTokenSecret is only accepted when APP_ENV=dev.
const devMobileTokenSecret = "fitcoach-dev-mobile-secret-do-not-use-in-prod"

// ErrInsecureMobileSecret is returned outside dev when MOBILE_TOKEN_SECRET is unset.
var ErrInsecureMobileSecret = errors.New("MOBILE_TOKEN_SECRET must be set outside dev")

// Config is built once at startup and passed down; nothing mutates it afterwards.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Identity IdentityConfig
	Billing  BillingConfig
	Mobile   MobileBillingConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins for cookie auth
	// WebAppURL is the page server that guarded navigations are proxied to.
	// Empty means this process serves only the API.
	WebAppURL string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	RunMigrations  bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey            []byte
	SessionDuration      time.Duration
	RefreshTokenDuration time.Duration

	MobileTokenSecret   []byte
	MobileTokenDuration time.Duration

	TrialDuration         time.Duration
	PasswordResetTTL      time.Duration
	EmailChangeTTL        time.Duration
	WebhookDedupRetention time.Duration
}

// IdentityConfig configures third-party sign-in (Google).
type IdentityConfig struct {
	GoogleClientID string
	GoogleJWKSURL  string
	GoogleIssuers  []string
}

// BillingConfig is the first-party payment processor (Stripe).
type BillingConfig struct {
	SecretKey       string
	WebhookSecret   string
	PortalReturnURL string
	APITimeout      time.Duration
}

// MobileBillingConfig is the mobile billing aggregator (RevenueCat).
type MobileBillingConfig struct {
	WebhookSecret string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromEmail    string
	FrontendURL  string // Frontend URL for links in emails
}

// Load reads configuration from environment variables, loading .env first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
			WebAppURL:       getEnv("WEB_APP_URL", ""),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "fitcoach"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			RunMigrations:  getBoolEnv("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			PasetoKey:             []byte(getEnv("PASETO_KEY", "")),
			SessionDuration:       getDurationEnv("SESSION_DURATION", 15*time.Minute),
			RefreshTokenDuration:  getDurationEnv("REFRESH_TOKEN_DURATION", 30*24*time.Hour),
			MobileTokenSecret:     []byte(getEnv("MOBILE_TOKEN_SECRET", "")),
			MobileTokenDuration:   getDurationEnv("MOBILE_TOKEN_DURATION", 30*24*time.Hour),
			TrialDuration:         getDurationEnv("TRIAL_DURATION", 7*24*time.Hour),
			PasswordResetTTL:      getDurationEnv("PASSWORD_RESET_TTL", time.Hour),
			EmailChangeTTL:        getDurationEnv("EMAIL_CHANGE_TTL", 24*time.Hour),
			WebhookDedupRetention: getDurationEnv("WEBHOOK_DEDUP_RETENTION", 72*time.Hour),
		},
		Identity: IdentityConfig{
			GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleJWKSURL:  getEnv("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
			GoogleIssuers:  getSliceEnv("GOOGLE_ISSUERS", []string{"https://accounts.google.com", "accounts.google.com"}),
		},
		Billing: BillingConfig{
			SecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PortalReturnURL: getEnv("STRIPE_PORTAL_RETURN_URL", "http://localhost:3000/settings"),
			APITimeout:      getDurationEnv("BILLING_API_TIMEOUT", 10*time.Second),
		},
		Mobile: MobileBillingConfig{
			WebhookSecret: getEnv("REVENUECAT_WEBHOOK_SECRET", ""),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			FromEmail:    getEnv("SMTP_FROM", getEnv("SMTP_USER", "")),
			FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	// v4.local requires a 32 byte key
	if len(c.Auth.PasetoKey) != 32 {
		return fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey))
	}

	if len(c.Auth.MobileTokenSecret) == 0 {
		if !c.Server.IsDevelopment() {
			return ErrInsecureMobileSecret
		}
		slog.Warn("MOBILE_TOKEN_SECRET not set, using insecure development secret")
		c.Auth.MobileTokenSecret = []byte(devMobileTokenSecret)
	}

	if !c.Server.IsDevelopment() {
		if c.Billing.WebhookSecret == "" {
			return errors.New("STRIPE_WEBHOOK_SECRET must be set outside dev")
		}
		if c.Mobile.WebhookSecret == "" {
			return errors.New("REVENUECAT_WEBHOOK_SECRET must be set outside dev")
		}
	}

	if c.Auth.TrialDuration <= 0 {
		return fmt.Errorf("TRIAL_DURATION must be positive, got %s", c.Auth.TrialDuration)
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return b
}

// getDurationEnv accepts Go duration strings ("15m") or plain seconds ("900").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
