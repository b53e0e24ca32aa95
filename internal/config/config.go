// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "accounts-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "accounts-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "2h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTPActivationTTLSeconds is the validity window for account-activation codes.
	OTPActivationTTLSeconds int `mapstructure:"OTP_ACTIVATION_TTL_SECONDS"`
	// OTPShortTTLSeconds is the validity window for forgot-password and two-factor codes.
	OTPShortTTLSeconds int `mapstructure:"OTP_SHORT_TTL_SECONDS"`

	// SMTPHost is the outbound mail server host. Empty disables real sending (mailer logs instead).
	SMTPHost string `mapstructure:"SMTP_HOST"`
	// SMTPPort is the outbound mail server port (implicit TLS, e.g. 465).
	SMTPPort int `mapstructure:"SMTP_PORT"`
	// SMTPUser is the SMTP auth username.
	SMTPUser string `mapstructure:"SMTP_USER"`
	// SMTPPassword is the SMTP auth password.
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// FromEmail is the From address on outbound mail; defaults to SMTP_USER.
	FromEmail string `mapstructure:"FROM_EMAIL"`
	// MailerWorkers is the number of mail dispatch workers.
	MailerWorkers int `mapstructure:"MAILER_WORKERS"`
	// MailerQueueSize is the bounded mail queue capacity; enqueue drops (with a log) when full.
	MailerQueueSize int `mapstructure:"MAILER_QUEUE_SIZE"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. localhost:4317). Empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "accounts-auth")
	v.SetDefault("JWT_AUDIENCE", "accounts-api")
	v.SetDefault("JWT_ACCESS_TTL", "2h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_ACTIVATION_TTL_SECONDS", 320)
	v.SetDefault("OTP_SHORT_TTL_SECONDS", 120)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("FROM_EMAIL", "")
	v.SetDefault("MAILER_WORKERS", 2)
	v.SetDefault("MAILER_QUEUE_SIZE", 64)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.OTPActivationTTLSeconds <= 0 || cfg.OTPShortTTLSeconds <= 0 {
		return nil, errors.New("config: OTP TTLs must be positive")
	}
	if cfg.MailerWorkers <= 0 {
		cfg.MailerWorkers = 2
	}
	if cfg.MailerQueueSize <= 0 {
		cfg.MailerQueueSize = 64
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.SMTPUser
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 2h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 2 * time.Hour
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// ActivationWindow returns the account-activation OTP validity window.
func (c *Config) ActivationWindow() time.Duration {
	return time.Duration(c.OTPActivationTTLSeconds) * time.Second
}

// ShortWindow returns the forgot-password / two-factor OTP validity window.
func (c *Config) ShortWindow() time.Duration {
	return time.Duration(c.OTPShortTTLSeconds) * time.Second
}
