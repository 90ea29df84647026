package modification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridops/gridops/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for modifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the modification header.
func (r *Repository) Create(ctx context.Context, mod Modification) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO modifications (id, asset_id, title, payload, proposer_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		mod.ID, mod.AssetID, mod.Title, mod.Payload, mod.ProposerID, string(mod.Status), mod.CreatedAt, mod.UpdatedAt)
	if err != nil {
		return fmt.Errorf("modification: create: %w", err)
	}
	return nil
}

// Get loads one modification with its ordered decision history.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Modification, error) {
	var mod Modification
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, asset_id, title, payload, proposer_id, status, created_at, updated_at
FROM modifications WHERE id = $1`, id).Scan(
		&mod.ID, &mod.AssetID, &mod.Title, &mod.Payload, &mod.ProposerID, &status, &mod.CreatedAt, &mod.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Modification{}, ErrNotFound
		}
		return Modification{}, fmt.Errorf("modification: get: %w", err)
	}
	mod.Status = Status(status)

	history, err := r.history(ctx, id)
	if err != nil {
		return Modification{}, err
	}
	mod.History = history
	return mod, nil
}

// List returns matching modifications ordered by recency, plus total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Modification, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.AssetID != 0 {
		args = append(args, filter.AssetID)
		where += fmt.Sprintf(" AND asset_id = $%d", len(args))
	}
	if filter.ProposerID != 0 {
		args = append(args, filter.ProposerID)
		where += fmt.Sprintf(" AND proposer_id = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM modifications "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("modification: count: %w", err)
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
	query := fmt.Sprintf(`SELECT id, asset_id, title, payload, proposer_id, status, created_at, updated_at
FROM modifications %s ORDER BY updated_at DESC, id LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("modification: list: %w", err)
	}
	defer rows.Close()

	var mods []Modification
	for rows.Next() {
		var mod Modification
		var status string
		if err := rows.Scan(&mod.ID, &mod.AssetID, &mod.Title, &mod.Payload, &mod.ProposerID, &status, &mod.CreatedAt, &mod.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("modification: scan: %w", err)
		}
		mod.Status = Status(status)
		mods = append(mods, mod)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("modification: rows: %w", err)
	}
	return mods, total, nil
}

// AppendTransition updates the status and appends the decision row in one
// transaction. The status update is guarded by the expected source status so
// a concurrent winner makes the loser fail cleanly instead of double-moving.
func (r *Repository) AppendTransition(ctx context.Context, id uuid.UUID, from, to Status, at time.Time, entry HistoryEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE modifications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			string(to), at, id, string(from))
		if err != nil {
			return fmt.Errorf("modification: update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT true FROM modifications WHERE id = $1`, id).Scan(&exists); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrNotFound
				}
				return fmt.Errorf("modification: stale check: %w", err)
			}
			return ErrIllegalTransition
		}
		_, err = tx.Exec(ctx, `INSERT INTO modification_decisions (modification_id, actor_id, actor_name, action, comment, at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			id, entry.ActorID, entry.ActorName, entry.Action, entry.Comment, entry.At)
		if err != nil {
			return fmt.Errorf("modification: append decision: %w", err)
		}
		return nil
	})
}

func (r *Repository) history(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT actor_id, actor_name, action, comment, at
FROM modification_decisions WHERE modification_id = $1 ORDER BY at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("modification: history: %w", err)
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(&entry.ActorID, &entry.ActorName, &entry.Action, &entry.Comment, &entry.At); err != nil {
			return nil, fmt.Errorf("modification: history scan: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("modification: history rows: %w", err)
	}
	return history, nil
}
