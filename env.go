package apiclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultEnvPrefix is the environment variable prefix read by LoadEnvConfig
// when no prefix is given.
const DefaultEnvPrefix = "APICLIENT"

// AppVersionHeader carries EnvConfig.AppVersion on every request.
const AppVersionHeader = "X-App-Version"

// EnvConfig holds the settings that may come from the environment.
// Example: APICLIENT_BASE_URL=https://api.example.com APICLIENT_RETRY_COUNT=2 .
type EnvConfig struct {
	BaseURL    string        `envconfig:"BASE_URL"    default:"http://localhost:3000/api"`
	AppVersion string        `envconfig:"APP_VERSION" default:""`
	Timeout    time.Duration `envconfig:"TIMEOUT"     default:"10s"`
	RetryCount int           `envconfig:"RETRY_COUNT" default:"0"`
	Debug      bool          `envconfig:"DEBUG"       default:"false"`
}

// LoadEnvConfig populates EnvConfig from environment variables with prefix.
func LoadEnvConfig(prefix string) (EnvConfig, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	var ec EnvConfig
	if err := envconfig.Process(prefix, &ec); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if ec.RetryCount < 0 {
		return EnvConfig{}, fmt.Errorf("unsupported %s_RETRY_COUNT: %d", prefix, ec.RetryCount)
	}
	return ec, nil
}

// Config converts the environment settings into a client Config.
func (ec EnvConfig) Config() Config {
	cfg := Config{
		BaseURL:        ec.BaseURL,
		DefaultTimeout: ec.Timeout,
		DefaultRetry:   &RetryConfig{Count: ec.RetryCount},
	}
	if ec.AppVersion != "" {
		cfg.DefaultHeaders = http.Header{AppVersionHeader: []string{ec.AppVersion}}
	}
	return cfg
}
