package account

import (
	"context"
	"errors"
	"time"

	"hackhub/internal/role"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("account: user not found")
	// ErrEmailTaken is returned when provisioning a duplicate email.
	ErrEmailTaken = errors.New("account: email already registered")
	// ErrInvalidCredentials is returned by Authenticate for any credential mismatch.
	ErrInvalidCredentials = errors.New("account: invalid credentials")
	// ErrInvalidRole is returned for roles outside the enumeration.
	ErrInvalidRole = errors.New("account: invalid role")
	// ErrInvalidInput wraps provisioning validation failures.
	ErrInvalidInput = errors.New("account: invalid input")
)

// User is the persisted account. Role is the authoritative role record.
type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	Role               role.Role `json:"role"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Store persists users.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Role(ctx context.Context, id string) (role.Role, error)
	SetRole(ctx context.Context, id string, r role.Role) error
	SetOnboarded(ctx context.Context, id string, done bool) error
}
