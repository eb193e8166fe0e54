// Package session implements the auth/session provider: login sessions plus the per-user
// claims (role, onboarding state) attached to them. Claims here are advisory; the account
// store is authoritative for roles.
package session

import (
	"context"
	"errors"
	"time"

	"hackhub/internal/role"
)

var (
	// ErrNoSession is returned when a session id is unknown, expired or signed out.
	ErrNoSession = errors.New("session: not found")
	// ErrNoClaims is returned when no claims were ever written for a user.
	ErrNoClaims = errors.New("session: no claims for user")
)

// Claims is the metadata the provider keeps for a user. Role is stored verbatim and may hold
// a value outside the role enumeration if it drifted.
type Claims struct {
	Role               role.Role
	OnboardingComplete bool
}

// Session is a live login.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// Provider is the contract the guard, reconciler and handlers depend on.
type Provider interface {
	Create(ctx context.Context, userID string, claims Claims) (Session, error)
	Get(ctx context.Context, sid string) (Session, error)
	Claims(ctx context.Context, userID string) (Claims, error)
	SetRole(ctx context.Context, userID string, r role.Role) error
	SetOnboarded(ctx context.Context, userID string, done bool) error
	SignOut(ctx context.Context, sid string) error
}

var (
	_ Provider = (*RedisProvider)(nil)
	_ Provider = (*MemoryProvider)(nil)
)
