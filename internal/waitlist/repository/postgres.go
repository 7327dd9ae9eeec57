package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"quillaborn/backend/internal/waitlist/domain"
)

const uniqueViolationCode = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a waitlist repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetEntry returns the entry for the (pre-normalized) email, or nil if not found.
func (r *PostgresRepository) GetEntry(ctx context.Context, email string) (*domain.Entry, error) {
	var e domain.Entry
	err := r.db.QueryRowContext(ctx,
		`SELECT email, status, created_at FROM waitlist_entries WHERE email = $1`,
		email).Scan(&e.Email, &e.Status, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// InsertEntry inserts the entry. Returns ErrDuplicate when the email is already present,
// so a racing double-submit resolves by re-reading.
func (r *PostgresRepository) InsertEntry(ctx context.Context, e *domain.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO waitlist_entries (email, status, created_at) VALUES ($1, $2, $3)`,
		e.Email, e.Status, e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// MarkApproved flips the entry to approved only from pending. The WHERE clause is the
// guard: the affected-row count, not a prior read, decides whether the transition happened.
func (r *PostgresRepository) MarkApproved(ctx context.Context, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = $2 WHERE email = $1 AND status = $3`,
		email, domain.StatusApproved, domain.StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListEntries returns entries newest first, optionally filtered by status.
func (r *PostgresRepository) ListEntries(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Entry, error) {
	query := `SELECT email, status, created_at FROM waitlist_entries`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.Email, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// GetToken returns the approval token by its opaque value, or nil if not found.
func (r *PostgresRepository) GetToken(ctx context.Context, token string) (*domain.ApprovalToken, error) {
	var (
		t      domain.ApprovalToken
		usedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token, email, created_at, used_at FROM approval_tokens WHERE token = $1`,
		token).Scan(&t.Token, &t.Email, &t.CreatedAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	return &t, nil
}

// InsertToken persists a freshly minted token.
func (r *PostgresRepository) InsertToken(ctx context.Context, t *domain.ApprovalToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO approval_tokens (token, email, created_at) VALUES ($1, $2, $3)`,
		t.Token, t.Email, t.CreatedAt)
	return err
}

// RedeemToken consumes the token with a single conditional update. At most one concurrent
// caller observes an affected row; everyone else sees used_at already set.
func (r *PostgresRepository) RedeemToken(ctx context.Context, token, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE approval_tokens SET used_at = $3 WHERE token = $1 AND email = $2 AND used_at IS NULL`,
		token, email, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
