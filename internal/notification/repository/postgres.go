package repository

import (
	"context"
	"database/sql"
	"time"

	"quillaborn/backend/internal/notification/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a notification repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, profile_id, kind, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.ProfileID, n.Kind, n.Body, n.CreatedAt)
	return err
}

// ListByProfile returns notifications for the profile, newest first, paginated
// by limit and offset.
func (r *PostgresRepository) ListByProfile(ctx context.Context, profileID string, limit, offset int32) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, profile_id, kind, body, read_at, created_at
		 FROM notifications
		 WHERE profile_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		profileID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.ProfileID, &n.Kind, &n.Body, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkRead is conditional on ownership and the row still being unread, so a
// user can never mark someone else's notification and repeats are no-ops.
func (r *PostgresRepository) MarkRead(ctx context.Context, id, profileID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $3
		 WHERE id = $1 AND profile_id = $2 AND read_at IS NULL`,
		id, profileID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PostgresRepository) CountUnread(ctx context.Context, profileID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM notifications WHERE profile_id = $1 AND read_at IS NULL`,
		profileID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
