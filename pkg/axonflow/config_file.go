package axonflow

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads a YAML client configuration. Values absent from the
// file take the same defaults a literal Config would.
func LoadConfigFile(path string) (Config, error) {
	// #nosec G304 -- path is supplied by the operator at startup
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Config{Retry: DefaultRetryConfig(), Cache: DefaultCacheConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Environment variable names read by ConfigFromEnv.
const (
	EnvAgentURL        = "AXONFLOW_AGENT_URL"
	EnvOrchestratorURL = "AXONFLOW_ORCHESTRATOR_URL"
	EnvClientID        = "AXONFLOW_CLIENT_ID"
	EnvClientSecret    = "AXONFLOW_CLIENT_SECRET"
	EnvLicenseKey      = "AXONFLOW_LICENSE_KEY"
	EnvMode            = "AXONFLOW_MODE"
	EnvDebug           = "AXONFLOW_DEBUG"
	EnvTimeout         = "AXONFLOW_TIMEOUT"
)

// ConfigFromEnv builds a Config from AXONFLOW_* environment variables,
// loading a .env file first when one is present in the working directory.
// Only the variables that are set override the defaults.
func ConfigFromEnv() (Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	cfg := DefaultConfig(os.Getenv(EnvAgentURL))
	cfg.OrchestratorURL = os.Getenv(EnvOrchestratorURL)
	cfg.ClientID = os.Getenv(EnvClientID)
	cfg.ClientSecret = os.Getenv(EnvClientSecret)
	cfg.LicenseKey = os.Getenv(EnvLicenseKey)

	if v := os.Getenv(EnvMode); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidConfig, EnvDebug, v)
		}
		cfg.Debug = debug
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s must be a duration, got %q", ErrInvalidConfig, EnvTimeout, v)
		}
		cfg.Timeout = timeout
	}
	return cfg, nil
}
