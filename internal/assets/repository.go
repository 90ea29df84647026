package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for assets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one asset by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Asset, error) {
	var asset Asset
	var kind, status string
	err := r.pool.QueryRow(ctx, `SELECT id, name, kind, location, address, criticality, status, created_at, updated_at
FROM assets WHERE id = $1`, id).Scan(
		&asset.ID, &asset.Name, &kind, &asset.Location, &asset.Address, &asset.Criticality, &status, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, fmt.Errorf("assets: get: %w", err)
	}
	asset.Kind = Kind(kind)
	asset.Status = AssetStatus(status)
	return asset, nil
}

// List returns assets matching the filter ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Asset, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM assets "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("assets: count: %w", err)
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT id, name, kind, location, address, criticality, status, created_at, updated_at
FROM assets %s ORDER BY name, id LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("assets: list: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var asset Asset
		var kind, status string
		if err := rows.Scan(&asset.ID, &asset.Name, &kind, &asset.Location, &asset.Address, &asset.Criticality, &status, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("assets: scan: %w", err)
		}
		asset.Kind = Kind(kind)
		asset.Status = AssetStatus(status)
		out = append(out, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("assets: rows: %w", err)
	}
	return out, total, nil
}

// Create inserts a new asset and returns its ID.
func (r *Repository) Create(ctx context.Context, asset Asset) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO assets (name, kind, location, address, criticality, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id`,
		asset.Name, string(asset.Kind), asset.Location, asset.Address, asset.Criticality, string(asset.Status)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("assets: create: %w", err)
	}
	return id, nil
}

// Update persists the mutable asset fields.
func (r *Repository) Update(ctx context.Context, asset Asset) error {
	tag, err := r.pool.Exec(ctx, `UPDATE assets SET name = $1, location = $2, address = $3, criticality = $4, status = $5, updated_at = NOW()
WHERE id = $6`,
		asset.Name, asset.Location, asset.Address, asset.Criticality, string(asset.Status), asset.ID)
	if err != nil {
		return fmt.Errorf("assets: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
