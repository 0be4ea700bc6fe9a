package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scriptguard/pkg/models"
)

const productColumns = `id, name, description, version, enabled, created_at`

// ListProducts returns all products, newest first.
func (s *Storage) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Version, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProduct returns a product by id, or nil if absent.
func (s *Storage) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Version, &p.Enabled, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// CreateProduct inserts a new product.
func (s *Storage) CreateProduct(ctx context.Context, name, description, version string, enabled bool) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, version, enabled)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		RETURNING `+productColumns,
		name, description, version, enabled,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Version, &p.Enabled, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// UpdateProduct replaces the mutable fields of a product.
func (s *Storage) UpdateProduct(ctx context.Context, id int64, name, description, version string, enabled bool) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = NULLIF($3, ''), version = $4, enabled = $5
		WHERE id = $1
		RETURNING `+productColumns,
		id, name, description, version, enabled,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Version, &p.Enabled, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return &p, nil
}

// DeleteProduct removes a product; its script and licenses cascade.
func (s *Storage) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
