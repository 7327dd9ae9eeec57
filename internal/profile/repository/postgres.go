package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"quillaborn/backend/internal/profile/domain"
)

const uniqueViolationCode = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a profile repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the profile for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, bio, interests, onboarding_complete, early_access, created_at, updated_at
		FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

// GetByUsername returns the profile with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, bio, interests, onboarding_complete, early_access, created_at, updated_at
		FROM profiles WHERE username = $1`, username)
	return scanProfile(row)
}

// Create persists the profile. The profile must have ID set; it is not assigned by this method.
// Returns ErrDuplicate when a profile with the same id already exists so callers can re-read.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Profile) error {
	username := sql.NullString{String: p.Username, Valid: p.Username != ""}
	displayName := sql.NullString{String: p.DisplayName, Valid: p.DisplayName != ""}
	interests, err := json.Marshal(emptyIfNil(p.Interests))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, display_name, bio, interests, onboarding_complete, early_access, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, username, displayName, p.Bio, interests, p.OnboardingComplete, p.EarlyAccess, p.CreatedAt, p.UpdatedAt)
	return mapUniqueViolation(err)
}

// SetUsername sets the username and bumps updated_at. Returns ErrDuplicate if taken.
func (r *PostgresRepository) SetUsername(ctx context.Context, id, username string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET username = $2, updated_at = $3 WHERE id = $1`,
		id, username, time.Now().UTC())
	return mapUniqueViolation(err)
}

// UpdateBio replaces the bio text.
func (r *PostgresRepository) UpdateBio(ctx context.Context, id, bio string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET bio = $2, updated_at = $3 WHERE id = $1`,
		id, bio, time.Now().UTC())
	return err
}

// SetInterests replaces the interests list.
func (r *PostgresRepository) SetInterests(ctx context.Context, id string, interests []string) error {
	raw, err := json.Marshal(emptyIfNil(interests))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE profiles SET interests = $2, updated_at = $3 WHERE id = $1`,
		id, raw, time.Now().UTC())
	return err
}

// SetOnboardingComplete flips onboarding_complete to true. The statement can only
// set the flag, never clear it.
func (r *PostgresRepository) SetOnboardingComplete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET onboarding_complete = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	return err
}

// SetEarlyAccess sets the early_access flag.
func (r *PostgresRepository) SetEarlyAccess(ctx context.Context, id string, earlyAccess bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET early_access = $2, updated_at = $3 WHERE id = $1`,
		id, earlyAccess, time.Now().UTC())
	return err
}

// List returns profiles newest first.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, display_name, bio, interests, onboarding_complete, early_access, created_at, updated_at
		FROM profiles ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*domain.Profile
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfileRow(row rowScanner) (*domain.Profile, error) {
	var (
		p           domain.Profile
		username    sql.NullString
		displayName sql.NullString
		interests   []byte
	)
	err := row.Scan(&p.ID, &username, &displayName, &p.Bio, &interests,
		&p.OnboardingComplete, &p.EarlyAccess, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Username = username.String
	p.DisplayName = displayName.String
	if len(interests) > 0 {
		if err := json.Unmarshal(interests, &p.Interests); err != nil {
			return nil, fmt.Errorf("decode interests: %w", err)
		}
	}
	return &p, nil
}

func scanProfile(row *sql.Row) (*domain.Profile, error) {
	p, err := scanProfileRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicate
	}
	return err
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
