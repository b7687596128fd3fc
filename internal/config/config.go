package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"OnlyIf"`
		Port int    `envconfig:"PORT" default:"8080"`
		Env  string `envconfig:"APP_ENV" default:"development"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"onlyif"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	}

	Sales struct {
		// StrictProgression rejects out-of-order pipeline transitions instead
		// of logging a warning and proceeding.
		StrictProgression bool `envconfig:"SALES_STRICT_PROGRESSION" default:"false"`
	}

	Notify struct {
		WebhookURL   string        `envconfig:"NOTIFY_WEBHOOK_URL"`
		WebhookToken string        `envconfig:"NOTIFY_WEBHOOK_TOKEN"`
		PollInterval time.Duration `envconfig:"NOTIFY_POLL_INTERVAL" default:"2s"`
		MaxAttempts  int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"5"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
