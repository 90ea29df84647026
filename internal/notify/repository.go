package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores one notification row.
func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (user_id, kind, title, body, modification_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.UserID, n.Kind, n.Title, n.Body, n.ModificationID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notify: insert: %w", err)
	}
	return nil
}

// ListForUser returns the newest notifications for one user.
func (r *Repository) ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, kind, title, body, modification_id, read_at, created_at
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.ModificationID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: rows: %w", err)
	}
	return out, nil
}

// MarkRead stamps one notification as read. The user filter stops one user
// acknowledging another user's inbox.
func (r *Repository) MarkRead(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		id, userID)
	if err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reviewers returns active users allowed to decide on pending changes.
func (r *Repository) Reviewers(ctx context.Context) ([]Recipient, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, name FROM users
		 WHERE is_active AND (role IN ('ADMIN', 'NETWORK_MANAGER') OR 'EDIT_INFRASTRUCTURE' = ANY(grants))
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("notify: reviewers: %w", err)
	}
	defer rows.Close()
	return scanRecipients(rows)
}

// UserByID loads one active recipient.
func (r *Repository) UserByID(ctx context.Context, id int64) (Recipient, error) {
	var rec Recipient
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name FROM users WHERE id = $1 AND is_active`, id).
		Scan(&rec.ID, &rec.Email, &rec.Name)
	if err != nil {
		return Recipient{}, fmt.Errorf("notify: user by id: %w", err)
	}
	return rec, nil
}

// StalePending lists modifications waiting for review since before the cutoff.
type StalePendingItem struct {
	ID         uuid.UUID
	Title      string
	ProposerID int64
	UpdatedAt  time.Time
}

// StalePending returns pending modifications untouched since the cutoff.
func (r *Repository) StalePending(ctx context.Context, cutoff time.Time) ([]StalePendingItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, proposer_id, updated_at FROM modifications
		 WHERE status = 'PENDING' AND updated_at < $1 ORDER BY updated_at`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("notify: stale pending: %w", err)
	}
	defer rows.Close()

	var out []StalePendingItem
	for rows.Next() {
		var item StalePendingItem
		if err := rows.Scan(&item.ID, &item.Title, &item.ProposerID, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan stale: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: rows: %w", err)
	}
	return out, nil
}

type recipientRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecipients(rows recipientRows) ([]Recipient, error) {
	var out []Recipient
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.Name); err != nil {
			return nil, fmt.Errorf("notify: scan recipient: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: rows: %w", err)
	}
	return out, nil
}
