package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dropship-gateway/internal/model"
)

// configRowID keys the single provider_config row.
const configRowID = "provider"

// PostgresStore persists credentials and the token pair in PostgreSQL so a
// restarted process reuses the last token instead of logging in again.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed token store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the provider_config table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS provider_config (
			id               VARCHAR(32) PRIMARY KEY,
			email            TEXT NOT NULL DEFAULT '',
			api_key          TEXT NOT NULL DEFAULT '',
			tier             VARCHAR(16) NOT NULL DEFAULT 'free',
			platform_token   TEXT NOT NULL DEFAULT '',
			enabled          BOOLEAN NOT NULL DEFAULT TRUE,
			access_token     TEXT,
			refresh_token    TEXT,
			token_expires_at TIMESTAMPTZ,
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// SeedCredentials writes creds into the config row, leaving any stored token untouched.
func (s *PostgresStore) SeedCredentials(ctx context.Context, creds model.Credentials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_config (id, email, api_key, tier, platform_token, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			api_key = EXCLUDED.api_key,
			tier = EXCLUDED.tier,
			platform_token = EXCLUDED.platform_token,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
	`, configRowID, creds.Email, creds.APIKey, string(creds.Tier), creds.PlatformToken, creds.Enabled)
	if err != nil {
		return fmt.Errorf("failed to seed provider credentials: %w", err)
	}
	return nil
}

// LoadCredentials returns zero credentials (not an error) when the row is missing;
// Lifecycle turns that into a ConfigError at call time.
func (s *PostgresStore) LoadCredentials(ctx context.Context) (model.Credentials, error) {
	var (
		creds model.Credentials
		tier  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT email, api_key, tier, platform_token, enabled
		FROM provider_config
		WHERE id = $1
	`, configRowID).Scan(&creds.Email, &creds.APIKey, &tier, &creds.PlatformToken, &creds.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credentials{}, nil
	}
	if err != nil {
		return model.Credentials{}, fmt.Errorf("failed to load provider credentials: %w", err)
	}

	creds.Tier, err = model.ParseTier(tier)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("stored provider credentials: %w", err)
	}
	return creds, nil
}

func (s *PostgresStore) LoadToken(ctx context.Context) (*model.TokenState, error) {
	var (
		access, refresh sql.NullString
		expiresAt       sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_expires_at
		FROM provider_config
		WHERE id = $1
	`, configRowID).Scan(&access, &refresh, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load provider token: %w", err)
	}
	if !access.Valid || access.String == "" {
		return nil, nil
	}

	return &model.TokenState{
		AccessToken:  access.String,
		RefreshToken: refresh.String,
		ExpiresAt:    expiresAt.Time,
	}, nil
}

func (s *PostgresStore) SaveToken(ctx context.Context, state model.TokenState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_config (id, access_token, refresh_token, token_expires_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = NOW()
	`, configRowID, state.AccessToken, state.RefreshToken, state.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save provider token: %w", err)
	}
	return nil
}
