package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dropship-gateway/internal/model"
)

// PostgresStore persists products and variants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed catalog store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the products and product_variants tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id                  VARCHAR(64) PRIMARY KEY,
			source              VARCHAR(16) NOT NULL DEFAULT 'local',
			provider_product_id VARCHAR(64),
			origin_country      CHAR(2),
			name                TEXT NOT NULL DEFAULT '',
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS product_variants (
			id                  VARCHAR(64) NOT NULL,
			product_id          VARCHAR(64) NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			position            INTEGER NOT NULL DEFAULT 0,
			provider_variant_id VARCHAR(64),
			sku                 TEXT NOT NULL DEFAULT '',
			name                TEXT NOT NULL DEFAULT '',
			price               NUMERIC(12,4) NOT NULL DEFAULT 0,
			available           BOOLEAN NOT NULL DEFAULT FALSE,
			stock               INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (product_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_products_provider_id
			ON products (provider_product_id) WHERE provider_product_id IS NOT NULL;
	`)
	return err
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var (
		p                  Product
		source             string
		providerID, origin sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, provider_product_id, origin_country, name, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &source, &providerID, &origin, &p.Name, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("product " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	p.Source = Source(source)
	p.ProviderProductID = providerID.String
	p.OriginCountry = origin.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_variant_id, sku, name, price, available, stock
		FROM product_variants
		WHERE product_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	p.Variants = []Variant{}
	for rows.Next() {
		var (
			v           Variant
			providerVID sql.NullString
		)
		if err := rows.Scan(&v.ID, &providerVID, &v.SKU, &v.Name, &v.Price, &v.Available, &v.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		v.ProviderVariantID = providerVID.String
		p.Variants = append(p.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	return &p, nil
}

// UpsertProduct writes the product row and replaces its variants in one transaction.
func (s *PostgresStore) UpsertProduct(ctx context.Context, p *Product) error {
	if p == nil || p.ID == "" {
		return model.NewValidationError("product id", "required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, source, provider_product_id, origin_country, name, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			provider_product_id = EXCLUDED.provider_product_id,
			origin_country = EXCLUDED.origin_country,
			name = EXCLUDED.name,
			updated_at = NOW()
	`, p.ID, string(p.Source), p.ProviderProductID, p.OriginCountry, p.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, p.ID); err != nil {
		return fmt.Errorf("failed to clear variants: %w", err)
	}

	for i, v := range p.Variants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_variants (id, product_id, position, provider_variant_id, sku, name, price, available, stock)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		`, v.ID, p.ID, i, v.ProviderVariantID, v.SKU, v.Name, v.Price, v.Available, v.Stock)
		if err != nil {
			return fmt.Errorf("failed to insert variant %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateVariantStock(ctx context.Context, productID, variantID string, stock int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = $3, available = $3 > 0
		WHERE product_id = $1 AND id = $2
	`, productID, variantID, stock)
	if err != nil {
		return fmt.Errorf("failed to update variant stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update variant stock: %w", err)
	}
	if n == 0 {
		return model.NewNotFoundError("variant " + variantID)
	}
	return nil
}
