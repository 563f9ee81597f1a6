package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Checkout CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.API.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DISCOTEK_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"DISCOTEK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DISCOTEK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	BaseURL        string        `envconfig:"DISCOTEK_API_BASE_URL" required:"true"`
	Token          string        `envconfig:"DISCOTEK_API_TOKEN"`
	RequestTimeout time.Duration `envconfig:"DISCOTEK_API_REQUEST_TIMEOUT" default:"10s"`
	RetryAttempts  uint64        `envconfig:"DISCOTEK_API_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"DISCOTEK_API_RETRY_BASE_DELAY" default:"250ms"`
}

func (a APIConfig) validate() error {
	parsed, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api base url must be http or https, got %q", a.BaseURL)
	}
	if a.RequestTimeout <= 0 {
		return fmt.Errorf("api request timeout must be positive")
	}
	return nil
}

type CheckoutConfig struct {
	// Delay before the caller should navigate away after a successful
	// purchase.
	RedirectDelay time.Duration `envconfig:"DISCOTEK_CHECKOUT_REDIRECT_DELAY" default:"3s"`
}
