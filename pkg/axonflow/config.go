package axonflow

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Mode selects the operating environment of the client.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeSandbox    Mode = "sandbox"
)

// Default endpoints and limits.
const (
	sandboxAgentURL = "https://staging-eu.getaxonflow.com"

	// The orchestrator listens on a fixed alternate port of the agent host
	// unless an explicit URL is configured.
	defaultOrchestratorPort = "8081"

	defaultTimeout    = 60 * time.Second
	defaultMapTimeout = 120 * time.Second

	maxRetryAttempts = 10
)

// RetryConfig controls exponential backoff for transient failures.
type RetryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	ExponentialBase float64       `yaml:"exponential_base"`
}

// DefaultRetryConfig returns the standard backoff schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:         true,
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// CacheConfig controls response caching.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	MaxSize int           `yaml:"max_size"`
}

// DefaultCacheConfig returns the standard cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: true,
		TTL:     60 * time.Second,
		MaxSize: 1000,
	}
}

// Config holds every setting of a client. It is a value type frozen at
// construction: New copies it, and overrides require building a new Config
// rather than mutating one owned by a running client.
//
// ClientID and ClientSecret are optional. When absent the client runs in
// self-hosted mode and sends no authentication headers at all.
type Config struct {
	AgentURL        string        `yaml:"agent_url"`
	OrchestratorURL string        `yaml:"orchestrator_url"`
	ClientID        string        `yaml:"client_id"`
	ClientSecret    string        `yaml:"client_secret"`
	LicenseKey      string        `yaml:"license_key"`
	Mode            Mode          `yaml:"mode"`
	Debug           bool          `yaml:"debug"`
	Timeout         time.Duration `yaml:"timeout"`
	MapTimeout      time.Duration `yaml:"map_timeout"`

	// InsecureSkipVerify disables TLS verification. Development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	Retry RetryConfig `yaml:"retry"`
	Cache CacheConfig `yaml:"cache"`
}

// DefaultConfig returns a production-mode Config pointed at agentURL with
// standard timeouts, retry, and cache settings.
func DefaultConfig(agentURL string) Config {
	return Config{
		AgentURL:   agentURL,
		Mode:       ModeProduction,
		Timeout:    defaultTimeout,
		MapTimeout: defaultMapTimeout,
		Retry:      DefaultRetryConfig(),
		Cache:      DefaultCacheConfig(),
	}
}

// SandboxConfig returns a Config for the shared staging environment with
// debug logging enabled.
func SandboxConfig() Config {
	cfg := DefaultConfig(sandboxAgentURL)
	cfg.Mode = ModeSandbox
	cfg.Debug = true
	return cfg
}

// normalized returns a copy with defaults applied, trailing slashes stripped,
// and the orchestrator URL derived from the agent URL when unset.
func (c Config) normalized() (Config, error) {
	c.AgentURL = strings.TrimRight(strings.TrimSpace(c.AgentURL), "/")
	c.OrchestratorURL = strings.TrimRight(strings.TrimSpace(c.OrchestratorURL), "/")

	if c.AgentURL == "" {
		return c, fmt.Errorf("%w: agent URL is required", ErrInvalidConfig)
	}
	agent, err := url.Parse(c.AgentURL)
	if err != nil || agent.Scheme == "" || agent.Host == "" {
		return c, fmt.Errorf("%w: agent URL %q is not an absolute URL", ErrInvalidConfig, c.AgentURL)
	}

	if c.OrchestratorURL == "" {
		derived := *agent
		derived.Host = agent.Hostname() + ":" + defaultOrchestratorPort
		c.OrchestratorURL = derived.String()
	}

	if c.Mode == "" {
		c.Mode = ModeProduction
	}
	if c.Mode != ModeProduction && c.Mode != ModeSandbox {
		return c, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MapTimeout == 0 {
		c.MapTimeout = defaultMapTimeout
	}

	// Zero numeric fields take defaults; Enabled flags are honored as given
	// so a literal Config can switch retry or caching off.
	def := DefaultRetryConfig()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = def.MaxAttempts
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = def.InitialDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = def.MaxDelay
	}
	if c.Retry.ExponentialBase == 0 {
		c.Retry.ExponentialBase = def.ExponentialBase
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheConfig().TTL
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = DefaultCacheConfig().MaxSize
	}

	return c, c.validate()
}

func (c Config) validate() error {
	switch {
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case c.MapTimeout <= 0:
		return fmt.Errorf("%w: map timeout must be positive", ErrInvalidConfig)
	case c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > maxRetryAttempts:
		return fmt.Errorf("%w: retry max_attempts must be in [1,%d]", ErrInvalidConfig, maxRetryAttempts)
	case c.Retry.InitialDelay <= 0:
		return fmt.Errorf("%w: retry initial_delay must be positive", ErrInvalidConfig)
	case c.Retry.MaxDelay <= 0:
		return fmt.Errorf("%w: retry max_delay must be positive", ErrInvalidConfig)
	case c.Retry.ExponentialBase <= 1:
		return fmt.Errorf("%w: retry exponential_base must be greater than 1", ErrInvalidConfig)
	case c.Cache.TTL <= 0:
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfig)
	case c.Cache.MaxSize <= 0:
		return fmt.Errorf("%w: cache max_size must be positive", ErrInvalidConfig)
	}
	return nil
}
