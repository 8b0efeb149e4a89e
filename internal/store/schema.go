package store

import (
	"context"
	"fmt"
	"log"
)

// schemaStatements creates the storefront schema. Every statement is
// idempotent so Migrate can run on every start. gen_random_uuid() is
// built in from PostgreSQL 13.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS storefront`,

	`CREATE TABLE IF NOT EXISTS storefront.users (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email            TEXT NOT NULL,
		password_hash    TEXT,
		name             TEXT NOT NULL DEFAULT '',
		image            TEXT,
		role             TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
		provider         TEXT NOT NULL DEFAULT 'credentials',
		provider_subject TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT users_email_key UNIQUE (email),
		CONSTRAINT users_provider_subject_key UNIQUE (provider, provider_subject)
	)`,

	`CREATE TABLE IF NOT EXISTS storefront.categories (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name_en    VARCHAR(255) NOT NULL,
		name_ar    VARCHAR(255) NOT NULL DEFAULT '',
		slug       VARCHAR(255) NOT NULL,
		parent_id  UUID,
		image      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT categories_slug_key UNIQUE (slug),
		CONSTRAINT categories_parent_id_fkey FOREIGN KEY (parent_id)
			REFERENCES storefront.categories (id) ON DELETE RESTRICT,
		CONSTRAINT categories_not_own_parent CHECK (parent_id IS NULL OR parent_id <> id)
	)`,
	`CREATE INDEX IF NOT EXISTS categories_parent_id_idx ON storefront.categories (parent_id)`,

	`CREATE TABLE IF NOT EXISTS storefront.brands (
		id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name_en        VARCHAR(255) NOT NULL,
		name_ar        VARCHAR(255) NOT NULL DEFAULT '',
		description_en TEXT NOT NULL DEFAULT '',
		description_ar TEXT NOT NULL DEFAULT '',
		slug           VARCHAR(255) NOT NULL,
		image          TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT brands_slug_key UNIQUE (slug)
	)`,

	`CREATE TABLE IF NOT EXISTS storefront.products (
		id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		slug           VARCHAR(255) NOT NULL,
		name_en        VARCHAR(255) NOT NULL,
		name_ar        VARCHAR(255) NOT NULL DEFAULT '',
		description_en TEXT NOT NULL DEFAULT '',
		description_ar TEXT NOT NULL DEFAULT '',
		price          NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
		image          TEXT NOT NULL DEFAULT '',
		images         TEXT[] NOT NULL DEFAULT '{}',
		category_id    UUID NOT NULL,
		brand_id       UUID,
		specs          JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT products_slug_key UNIQUE (slug),
		CONSTRAINT products_category_id_fkey FOREIGN KEY (category_id)
			REFERENCES storefront.categories (id) ON DELETE RESTRICT,
		CONSTRAINT products_brand_id_fkey FOREIGN KEY (brand_id)
			REFERENCES storefront.brands (id) ON DELETE RESTRICT
	)`,
	`CREATE INDEX IF NOT EXISTS products_category_id_idx ON storefront.products (category_id)`,
	`CREATE INDEX IF NOT EXISTS products_brand_id_idx ON storefront.products (brand_id)`,

	`CREATE TABLE IF NOT EXISTS storefront.carts (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id     UUID NOT NULL,
		items       JSONB NOT NULL DEFAULT '[]'::jsonb,
		total_price NUMERIC(12, 2) NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT carts_user_id_key UNIQUE (user_id),
		CONSTRAINT carts_user_id_fkey FOREIGN KEY (user_id)
			REFERENCES storefront.users (id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS storefront.orders (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id     UUID NOT NULL,
		items       JSONB NOT NULL,
		total_price NUMERIC(12, 2) NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'processing', 'shipped', 'delivered', 'cancelled')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT orders_user_id_fkey FOREIGN KEY (user_id)
			REFERENCES storefront.users (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_id_created_at_idx ON storefront.orders (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_status_idx ON storefront.orders (status)`,
}

// Migrate applies the schema inside a single transaction.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: Migrate failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: Migrate statement %d failed: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: Migrate failed to commit: %w", err)
	}
	log.Printf("INFO: Database schema is up to date (%d statements applied).", len(schemaStatements))
	return nil
}
