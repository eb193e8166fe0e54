package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"hackhub/internal/logging"
	"hackhub/internal/role"
)

// ErrForbidden is returned when the acting role may not perform an account change.
var ErrForbidden = errors.New("account: forbidden")

// ClaimWriter mirrors account changes into the session provider's claims.
type ClaimWriter interface {
	SetRole(ctx context.Context, userID string, r role.Role) error
	SetOnboarded(ctx context.Context, userID string, done bool) error
}

// ProvisionParams describe a new account.
type ProvisionParams struct {
	ID       string
	Name     string
	Email    string
	Password string
}

// Service coordinates account provisioning, credentials and role assignment.
type Service struct {
	store      Store
	claims     ClaimWriter
	bcryptCost int
}

// NewService creates a service.
func NewService(store Store, claims ClaimWriter) *Service {
	return &Service{store: store, claims: claims, bcryptCost: bcrypt.DefaultCost}
}

// Provision creates an account with the default role and seeds its claims.
func (s *Service) Provision(ctx context.Context, p ProvisionParams) (User, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return User{}, fmt.Errorf("%w: valid email required", ErrInvalidInput)
	}
	if len(p.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{ID: p.ID, Name: name, Email: p.Email, PasswordHash: string(hash), Role: role.Default}
	if err := s.store.Create(ctx, &u); err != nil {
		return User{}, err
	}
	if err := s.claims.SetRole(ctx, u.ID, u.Role); err != nil {
		logging.FromContext(ctx).Warn("seed role claim failed", "user_id", u.ID, "error", err)
	}
	if err := s.claims.SetOnboarded(ctx, u.ID, false); err != nil {
		logging.FromContext(ctx).Warn("seed onboarding claim failed", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// Authenticate checks an email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// AssignRole changes a user's persisted role. Only masters may assign roles. The claim is
// updated best-effort; the reconciler repairs it on the user's next validation if this fails.
func (s *Service) AssignRole(ctx context.Context, actor role.Role, userID string, r role.Role) (User, error) {
	if actor != role.Master {
		return User{}, ErrForbidden
	}
	if !r.Valid() {
		return User{}, ErrInvalidRole
	}
	if err := s.store.SetRole(ctx, userID, r); err != nil {
		return User{}, err
	}
	if err := s.claims.SetRole(ctx, userID, r); err != nil {
		logging.FromContext(ctx).Warn("role claim update failed, left for reconciliation", "user_id", userID, "error", err)
	}
	return s.store.Get(ctx, userID)
}

// CompleteOnboarding marks onboarding done in both the store and the claims the guard reads.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string) error {
	if err := s.store.SetOnboarded(ctx, userID, true); err != nil {
		return err
	}
	if err := s.claims.SetOnboarded(ctx, userID, true); err != nil {
		return fmt.Errorf("update onboarding claim: %w", err)
	}
	return nil
}
