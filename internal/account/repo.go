package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"hackhub/internal/role"
)

const uniqueViolation = "23505"

// Repository persists users in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts u, filling ID, timestamps and the default role when unset.
func (r *Repository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = role.Default
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, onboarding_complete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.OnboardingComplete, u.CreatedAt, u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}

// Get returns a user by id.
func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, onboarding_complete, created_at, updated_at
		FROM users WHERE id = $1
	`, id))
}

// GetByEmail returns a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, onboarding_complete, created_at, updated_at
		FROM users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))))
}

// Role returns only the persisted role.
func (r *Repository) Role(ctx context.Context, id string) (role.Role, error) {
	var raw string
	if err := r.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	parsed, ok := role.Parse(raw)
	if !ok {
		return "", fmt.Errorf("%w: stored value %q", ErrInvalidRole, raw)
	}
	return parsed, nil
}

// SetRole updates the persisted role.
func (r *Repository) SetRole(ctx context.Context, id string, rl role.Role) error {
	if !rl.Valid() {
		return ErrInvalidRole
	}
	return r.update(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, id, string(rl), time.Now().UTC())
}

// SetOnboarded updates the onboarding flag.
func (r *Repository) SetOnboarded(ctx context.Context, id string, done bool) error {
	return r.update(ctx, `UPDATE users SET onboarding_complete = $2, updated_at = $3 WHERE id = $1`, id, done, time.Now().UTC())
}

func (r *Repository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(row *sql.Row) (User, error) {
	var u User
	var raw string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &raw, &u.OnboardingComplete, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Role = role.Role(raw)
	return u, nil
}
