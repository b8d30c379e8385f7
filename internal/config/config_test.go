package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dropship-gateway/internal/model"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL", "GCP_PROJECT",
		"DATABASE_URL", "REDIS_URL", "INBOUND_RPS", "QUOTE_CACHE_TTL",
		"PROVIDER_BASE_URL", "PROVIDER_API_VERSION", "PROVIDER_SECRET",
		"PROVIDER_EMAIL", "PROVIDER_API_KEY", "PROVIDER_TIER",
		"PROVIDER_PLATFORM_TOKEN", "PROVIDER_ENABLED", "PROVIDER_CHROME_TLS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.InboundRPS != DefaultInboundRPS {
		t.Errorf("InboundRPS = %v, want %v", cfg.InboundRPS, DefaultInboundRPS)
	}
	if cfg.QuoteCacheTTL != time.Hour {
		t.Errorf("QuoteCacheTTL = %v, want 1h", cfg.QuoteCacheTTL)
	}
	if cfg.Provider.Endpoint() != "https://developers.cjdropshipping.com/api2.0/v1" {
		t.Errorf("Endpoint() = %q", cfg.Provider.Endpoint())
	}
	if cfg.Provider.ChromeTLS {
		t.Error("ChromeTLS should default to false")
	}

	creds, err := cfg.Provider.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Usable() {
		t.Error("credentials without email or key should not be usable")
	}
	if !creds.Enabled {
		t.Error("credentials should default to enabled")
	}
	if creds.Tier != model.TierFree {
		t.Errorf("Tier = %q, want free", creds.Tier)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://localhost/dropship")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("INBOUND_RPS", "5.5")
	t.Setenv("QUOTE_CACHE_TTL", "30m")
	t.Setenv("PROVIDER_BASE_URL", "http://localhost:9999/")
	t.Setenv("PROVIDER_EMAIL", "ops@example.com")
	t.Setenv("PROVIDER_API_KEY", "key-123")
	t.Setenv("PROVIDER_TIER", "Prime")
	t.Setenv("PROVIDER_PLATFORM_TOKEN", "platform")
	t.Setenv("PROVIDER_ENABLED", "true")
	t.Setenv("PROVIDER_CHROME_TLS", "true")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://localhost/dropship" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.InboundRPS != 5.5 {
		t.Errorf("InboundRPS = %v, want 5.5", cfg.InboundRPS)
	}
	if cfg.QuoteCacheTTL != 30*time.Minute {
		t.Errorf("QuoteCacheTTL = %v, want 30m", cfg.QuoteCacheTTL)
	}
	if got := cfg.Provider.Endpoint(); got != "http://localhost:9999/api2.0/v1" {
		t.Errorf("Endpoint() = %q, want http://localhost:9999/api2.0/v1", got)
	}
	if !cfg.Provider.ChromeTLS {
		t.Error("ChromeTLS = false, want true")
	}

	creds, err := cfg.Provider.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	want := model.Credentials{
		Email:         "ops@example.com",
		APIKey:        "key-123",
		Tier:          model.TierPrime,
		PlatformToken: "platform",
		Enabled:       true,
	}
	if creds != want {
		t.Errorf("Credentials() = %+v, want %+v", creds, want)
	}
}

func TestLoadDisabledProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER_EMAIL", "ops@example.com")
	t.Setenv("PROVIDER_API_KEY", "key-123")
	t.Setenv("PROVIDER_ENABLED", "false")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	creds, err := cfg.Provider.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Enabled || creds.Usable() {
		t.Errorf("Credentials() = %+v, want disabled", creds)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad tier", "PROVIDER_TIER", "platinum", "tier"},
		{"bad version", "PROVIDER_API_VERSION", "two", "api_version"},
		{"bad scheme", "PROVIDER_BASE_URL", "ftp://example.com", "base_url"},
		{"bad rps", "INBOUND_RPS", "fast", "INBOUND_RPS"},
		{"negative rps", "INBOUND_RPS", "-1", "inbound_rps"},
		{"bad ttl", "QUOTE_CACHE_TTL", "hourly", "QUOTE_CACHE_TTL"},
		{"zero ttl", "QUOTE_CACHE_TTL", "0s", "quote_cache_ttl"},
		{"bad tls flag", "PROVIDER_CHROME_TLS", "maybe", "PROVIDER_CHROME_TLS"},
		{"bad enabled flag", "PROVIDER_ENABLED", "maybe", "PROVIDER_ENABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(context.Background())
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProductionRequiresProject(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load(context.Background())
	if err == nil {
		t.Fatal("Load() in production without GCP_PROJECT should fail")
	}
	if !strings.Contains(err.Error(), "GCP_PROJECT") {
		t.Errorf("error = %v, want GCP_PROJECT mention", err)
	}
}

func TestAPIPath(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"v2.0", "/api2.0/v1"},
		{"v2", "/api2.0/v1"},
		{"v3.1.4", "/api3.1/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			p := ProviderConfig{APIVersion: tt.version}
			if got := p.APIPath(); got != tt.want {
				t.Errorf("APIPath(%q) = %q, want %q", tt.version, got, tt.want)
			}
		})
	}
}

func TestApplySecret(t *testing.T) {
	cfg := &Config{Provider: ProviderConfig{
		BaseURL:    DefaultProviderBaseURL,
		APIVersion: DefaultProviderAPIVersion,
		ChromeTLS:  true,
	}}

	err := cfg.applySecret([]byte(`{"email":"ops@example.com","api_key":"secret","tier":"plus","enabled":false,"base_url":"http://ignored"}`))
	if err != nil {
		t.Fatalf("applySecret() error = %v", err)
	}

	if cfg.Provider.Email != "ops@example.com" || cfg.Provider.APIKey != "secret" {
		t.Errorf("credentials not applied: %+v", cfg.Provider)
	}
	if cfg.Provider.Tier != "plus" {
		t.Errorf("Tier = %q, want plus", cfg.Provider.Tier)
	}
	if cfg.Provider.Enabled == nil || *cfg.Provider.Enabled {
		t.Error("Enabled should be false from secret")
	}
	if cfg.Provider.BaseURL != DefaultProviderBaseURL {
		t.Errorf("BaseURL = %q, secret must not override it", cfg.Provider.BaseURL)
	}
	if !cfg.Provider.ChromeTLS {
		t.Error("ChromeTLS should keep its env value")
	}

	if err := cfg.applySecret([]byte(`not json`)); err == nil {
		t.Error("applySecret() with invalid JSON should fail")
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "custom")
	if got := envOrDefault("TEST_ENV_VAR", "default"); got != "custom" {
		t.Errorf("envOrDefault with set var = %q, want custom", got)
	}

	os.Unsetenv("TEST_ENV_VAR_UNSET")
	if got := envOrDefault("TEST_ENV_VAR_UNSET", "default"); got != "default" {
		t.Errorf("envOrDefault with unset var = %q, want default", got)
	}
}

func TestWithDefault(t *testing.T) {
	if got := withDefault("value", "default"); got != "value" {
		t.Errorf("withDefault(value, default) = %q, want value", got)
	}
	if got := withDefault("", "default"); got != "default" {
		t.Errorf("withDefault('', default) = %q, want default", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `{
		"port": "9191",
		"log_level": "warn",
		"database_url": "postgres://db/dropship",
		"inbound_rps": 0,
		"quote_cache_ttl": "15m",
		"provider": {
			"email": "file@example.com",
			"api_key": "file-key",
			"tier": "advanced",
			"chrome_tls": true
		}
	}`

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	clearEnv(t)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "9191" {
		t.Errorf("Port = %q, want 9191", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.DatabaseURL != "postgres://db/dropship" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.InboundRPS != 0 {
		t.Errorf("InboundRPS = %v, want 0 (explicitly disabled)", cfg.InboundRPS)
	}
	if cfg.QuoteCacheTTL != 15*time.Minute {
		t.Errorf("QuoteCacheTTL = %v, want 15m", cfg.QuoteCacheTTL)
	}
	if cfg.Provider.BaseURL != DefaultProviderBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.Provider.BaseURL)
	}
	if !cfg.Provider.ChromeTLS {
		t.Error("ChromeTLS = false, want true")
	}
	creds, err := cfg.Provider.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if !creds.Usable() || creds.Tier != model.TierAdvanced {
		t.Errorf("Credentials() = %+v", creds)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{not json`},
		{"bad ttl", `{"quote_cache_ttl": "soon"}`},
		{"bad tier", `{"provider": {"tier": "gold"}}`},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "config"+string(rune('a'+i))+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("writing config file: %v", err)
			}
			if _, err := loadFromFile(path); err == nil {
				t.Error("loadFromFile() should fail")
			}
		})
	}

	if _, err := loadFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("loadFromFile() with missing file should fail")
	}
}
