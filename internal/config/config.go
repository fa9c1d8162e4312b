package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

// SeatReservationMode selects how seat counters are incremented.
type SeatReservationMode string

const (
	// SeatReservationAtomic only increments when the grant still has room.
	SeatReservationAtomic SeatReservationMode = "atomic"
	// SeatReservationBestEffort increments unconditionally; concurrent creates may oversell.
	SeatReservationBestEffort SeatReservationMode = "best_effort"
)

type Config struct {
	Port               int      `env:"PORT" envDefault:"8080"`
	AppEnv             string   `env:"APP_ENV" envDefault:"development"`
	AppBaseURL         string   `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	DatabaseURL        string   `env:"DATABASE_URL,required"`
	RedisURL           string   `env:"REDIS_URL,required"`
	AutoMigrate        bool     `env:"AUTO_MIGRATE" envDefault:"true"`
	DBMaxOpenConns     int      `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int      `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	JWTSecret          string   `env:"JWT_SECRET,required"`
	JWTIssuer          string   `env:"JWT_ISSUER" envDefault:"prepwise"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	SeatReservationMode   SeatReservationMode `env:"SEAT_RESERVATION_MODE" envDefault:"atomic"`
	InviteTokenTTLHours   int                 `env:"INVITE_TOKEN_TTL_HOURS" envDefault:"24"`
	InviteExpiryDays      int                 `env:"INVITE_EXPIRY_DAYS" envDefault:"0"`
	MaxCSVUploadBytes     int64               `env:"MAX_CSV_UPLOAD_BYTES" envDefault:"10485760"`
	AcceptInviteRateLimit int                 `env:"ACCEPT_INVITE_RATE_LIMIT" envDefault:"10"`
	APIRateLimitPerMin    int                 `env:"API_RATE_LIMIT_PER_MIN" envDefault:"120"`

	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`

	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername  string `env:"SMTP_USERNAME"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	SMTPFromEmail string `env:"SMTP_FROM_EMAIL" envDefault:"no-reply@prepwise.local"`
	SMTPFromName  string `env:"SMTP_FROM_NAME" envDefault:"PrepWise"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) InviteTokenTTL() time.Duration {
	return time.Duration(c.InviteTokenTTLHours) * time.Hour
}

// InviteExpiryAge is how long an invitation may stay pending before the expiry
// job marks it expired. Zero disables the job.
func (c *Config) InviteExpiryAge() time.Duration {
	return time.Duration(c.InviteExpiryDays) * 24 * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	switch c.SeatReservationMode {
	case SeatReservationAtomic, SeatReservationBestEffort:
	default:
		return fmt.Errorf("SEAT_RESERVATION_MODE must be %q or %q, got %q",
			SeatReservationAtomic, SeatReservationBestEffort, c.SeatReservationMode)
	}

	if c.InviteTokenTTLHours <= 0 {
		return fmt.Errorf("INVITE_TOKEN_TTL_HOURS must be positive")
	}
	if c.InviteExpiryDays < 0 {
		return fmt.Errorf("INVITE_EXPIRY_DAYS must not be negative")
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}

		if c.SeatReservationMode == SeatReservationBestEffort {
			log.Warn().Msg("SEAT_RESERVATION_MODE=best_effort in production: concurrent creates may oversell seats")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.S3Bucket == "" {
			log.Warn().Msg("S3_BUCKET is empty in production: uploaded CSV files will not be archived")
		}
		if c.SMTPHost == "" {
			log.Warn().Msg("SMTP_HOST is empty in production: invitation emails will only be logged")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
