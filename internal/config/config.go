// Package config handles loading and validation of service configuration.
// Supports both development (env vars, .env, CONFIG_FILE) and production
// (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
	"golang.org/x/mod/semver"

	"dropship-gateway/internal/model"
)

// Defaults for settings with no env override.
const (
	DefaultProviderBaseURL    = "https://developers.cjdropshipping.com"
	DefaultProviderAPIVersion = "v2.0"
	DefaultProviderSecret     = "dropship-provider"
	DefaultInboundRPS         = 20
	DefaultQuoteCacheTTL      = time.Hour
)

// Config holds all service configuration.
// Environment determines whether provider credentials load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string

	// Storage. Empty means in-memory.
	DatabaseURL string
	RedisURL    string

	// Inbound request limit across all clients; 0 disables it.
	InboundRPS float64

	// How long shipping quotes are reused.
	QuoteCacheTTL time.Duration

	Provider ProviderConfig
}

// ProviderConfig contains the dropshipping provider account settings.
// In production the credential fields are loaded from Secret Manager as JSON.
type ProviderConfig struct {
	BaseURL       string `json:"base_url,omitempty"`
	APIVersion    string `json:"api_version,omitempty"`
	Email         string `json:"email"`
	APIKey        string `json:"api_key"`
	Tier          string `json:"tier,omitempty"`
	PlatformToken string `json:"platform_token,omitempty"`
	Enabled       *bool  `json:"enabled,omitempty"` // nil means enabled
	ChromeTLS     bool   `json:"chrome_tls,omitempty"`
	SecretName    string `json:"-"`
}

// APIPath returns the versioned path prefix, e.g. "/api2.0/v1" for v2.0.
func (p ProviderConfig) APIPath() string {
	return "/api" + strings.TrimPrefix(semver.MajorMinor(p.APIVersion), "v") + "/v1"
}

// Endpoint is the base URL every provider path is appended to.
func (p ProviderConfig) Endpoint() string {
	return strings.TrimSuffix(p.BaseURL, "/") + p.APIPath()
}

// Credentials converts the settings into provider credentials.
// Missing email or key is not an error here; it surfaces per call.
func (p ProviderConfig) Credentials() (model.Credentials, error) {
	tier, err := model.ParseTier(p.Tier)
	if err != nil {
		return model.Credentials{}, err
	}
	return model.Credentials{
		Email:         p.Email,
		APIKey:        p.APIKey,
		Tier:          tier,
		PlatformToken: p.PlatformToken,
		Enabled:       p.Enabled == nil || *p.Enabled,
	}, nil
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → .env + ENV vars / Secret Manager.
// Validates all fields and returns an error if any are malformed.
func Load(ctx context.Context) (*Config, error) {
	// A .env file is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Provider: ProviderConfig{
			BaseURL:    envOrDefault("PROVIDER_BASE_URL", DefaultProviderBaseURL),
			APIVersion: envOrDefault("PROVIDER_API_VERSION", DefaultProviderAPIVersion),
			SecretName: envOrDefault("PROVIDER_SECRET", DefaultProviderSecret),
		},
	}

	var err error
	if cfg.InboundRPS, err = envFloat("INBOUND_RPS", DefaultInboundRPS); err != nil {
		return nil, err
	}
	if cfg.QuoteCacheTTL, err = envDuration("QUOTE_CACHE_TTL", DefaultQuoteCacheTTL); err != nil {
		return nil, err
	}
	if cfg.Provider.ChromeTLS, err = envBool("PROVIDER_CHROME_TLS", false); err != nil {
		return nil, err
	}

	// Load provider credentials based on environment
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading provider config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Use a struct that matches the JSON structure
	var fileConfig struct {
		Port          string         `json:"port"`
		Environment   string         `json:"environment"`
		LogLevel      string         `json:"log_level"`
		DatabaseURL   string         `json:"database_url"`
		RedisURL      string         `json:"redis_url"`
		InboundRPS    *float64       `json:"inbound_rps"`
		QuoteCacheTTL string         `json:"quote_cache_ttl"`
		Provider      ProviderConfig `json:"provider"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:          withDefault(fileConfig.Port, "8080"),
		Environment:   withDefault(fileConfig.Environment, "development"),
		LogLevel:      withDefault(fileConfig.LogLevel, "info"),
		DatabaseURL:   fileConfig.DatabaseURL,
		RedisURL:      fileConfig.RedisURL,
		InboundRPS:    DefaultInboundRPS,
		QuoteCacheTTL: DefaultQuoteCacheTTL,
		Provider:      fileConfig.Provider,
	}
	if fileConfig.InboundRPS != nil {
		cfg.InboundRPS = *fileConfig.InboundRPS
	}
	if fileConfig.QuoteCacheTTL != "" {
		ttl, err := time.ParseDuration(fileConfig.QuoteCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid quote_cache_ttl: %w", err)
		}
		cfg.QuoteCacheTTL = ttl
	}
	cfg.Provider.BaseURL = withDefault(cfg.Provider.BaseURL, DefaultProviderBaseURL)
	cfg.Provider.APIVersion = withDefault(cfg.Provider.APIVersion, DefaultProviderAPIVersion)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches provider credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret}/versions/latest
// Non-credential fields (base URL, version, TLS) keep their env values.
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.Provider.SecretName)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecret(result.Payload.Data)
}

// applySecret merges the credential fields of a secret payload.
func (c *Config) applySecret(data []byte) error {
	var secret ProviderConfig
	if err := json.Unmarshal(data, &secret); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	c.Provider.Email = secret.Email
	c.Provider.APIKey = secret.APIKey
	c.Provider.Tier = secret.Tier
	c.Provider.PlatformToken = secret.PlatformToken
	c.Provider.Enabled = secret.Enabled
	return nil
}

// loadFromEnv reads provider credentials from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Provider.Email = os.Getenv("PROVIDER_EMAIL")
	c.Provider.APIKey = os.Getenv("PROVIDER_API_KEY")
	c.Provider.Tier = os.Getenv("PROVIDER_TIER")
	c.Provider.PlatformToken = os.Getenv("PROVIDER_PLATFORM_TOKEN")

	if raw := os.Getenv("PROVIDER_ENABLED"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid PROVIDER_ENABLED %q: %w", raw, err)
		}
		c.Provider.Enabled = &enabled
	}

	return nil
}

// validate checks that configured values are well-formed. Missing provider
// credentials are allowed: calls fail with a config error until they are set.
func (c *Config) validate() error {
	if _, err := model.ParseTier(c.Provider.Tier); err != nil {
		return fmt.Errorf("invalid provider tier: %w", err)
	}
	if !semver.IsValid(c.Provider.APIVersion) {
		return fmt.Errorf("invalid provider api_version %q: want a semantic version like v2.0", c.Provider.APIVersion)
	}
	u, err := url.Parse(c.Provider.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid provider base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid provider base_url %q: scheme must be http or https", c.Provider.BaseURL)
	}
	if c.InboundRPS < 0 {
		return fmt.Errorf("inbound_rps must not be negative")
	}
	if c.QuoteCacheTTL <= 0 {
		return fmt.Errorf("quote_cache_ttl must be positive")
	}
	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
