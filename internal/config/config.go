package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort           string        `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout        time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout       time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	DBMaxConnIdle    time.Duration `envconfig:"DB_MAX_CONN_IDLE" default:"30m"`
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"10s"`

	// Queue
	MaxAttempts       int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	BatchSize         int           `envconfig:"BATCH_SIZE" default:"10"`
	DrainInterval     time.Duration `envconfig:"DRAIN_INTERVAL" default:"5m"`
	SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	StuckAfter        time.Duration `envconfig:"STUCK_AFTER" default:"30m"`
	RetentionDays     int           `envconfig:"RETENTION_DAYS" default:"30"`
	RetryDelayInitial time.Duration `envconfig:"RETRY_DELAY_INITIAL" default:"0"`
	RetryDelayMax     time.Duration `envconfig:"RETRY_DELAY_MAX" default:"1h"`

	// Transport: "smtp" or "webhook"
	Transport            string        `envconfig:"TRANSPORT" default:"smtp"`
	SMTPHost             string        `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort             int           `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername         string        `envconfig:"SMTP_USERNAME"`
	SMTPPassword         string        `envconfig:"SMTP_PASSWORD"`
	SMTPFrom             string        `envconfig:"SMTP_FROM" default:"no-reply@localhost"`
	SMTPFromName         string        `envconfig:"SMTP_FROM_NAME"`
	SMTPTimeout          time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`
	SMTPInsecureTLS      bool          `envconfig:"SMTP_INSECURE_SKIP_VERIFY" default:"false"`
	WebhookURL           string        `envconfig:"WEBHOOK_URL"`
	WebhookTimeout       time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	RateLimitPerCategory int           `envconfig:"RATE_LIMIT_PER_CATEGORY" default:"10"`

	// Rendering
	TemplateDir string `envconfig:"TEMPLATE_DIR"`
	SiteName    string `envconfig:"SITE_NAME" default:"Learning Hub"`
	SiteURL     string `envconfig:"SITE_URL" default:"http://localhost:8080"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load(files...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Transport {
	case "smtp":
	case "webhook":
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when TRANSPORT=webhook")
		}
	default:
		return fmt.Errorf("TRANSPORT must be smtp or webhook, got %q", c.Transport)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", c.RetentionDays)
	}
	if c.DrainInterval <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("DRAIN_INTERVAL and SWEEP_INTERVAL must be positive")
	}
	return nil
}

// RetryDelayEnabled reports whether failed attempts are rescheduled instead
// of becoming eligible again on the next drain.
func (c *Config) RetryDelayEnabled() bool {
	return c.RetryDelayInitial > 0
}
