package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"hackhub/internal/role"
)

// MemoryProvider keeps sessions in process memory for dev and tests.
type MemoryProvider struct {
	mu       sync.Mutex
	maxAge   time.Duration
	now      func() time.Time
	sessions map[string]memSession
	claims   map[string]Claims
}

type memSession struct {
	Session
	expires time.Time
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider(maxAge time.Duration) *MemoryProvider {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &MemoryProvider{
		maxAge:   maxAge,
		now:      time.Now,
		sessions: make(map[string]memSession),
		claims:   make(map[string]Claims),
	}
}

// Create starts a session and overwrites the user's claims.
func (p *MemoryProvider) Create(_ context.Context, userID string, claims Claims) (Session, error) {
	if userID == "" {
		return Session{}, errors.New("session: user id required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	s := Session{ID: uuid.NewString(), UserID: userID, CreatedAt: now.UTC()}
	p.sessions[s.ID] = memSession{Session: s, expires: now.Add(p.maxAge)}
	p.claims[userID] = claims
	return s, nil
}

// Get resolves a session id to its user.
func (p *MemoryProvider) Get(_ context.Context, sid string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sid]
	if !ok {
		return Session{}, ErrNoSession
	}
	if !p.now().Before(s.expires) {
		delete(p.sessions, sid)
		return Session{}, ErrNoSession
	}
	return s.Session, nil
}

// Claims returns the user's claims.
func (p *MemoryProvider) Claims(_ context.Context, userID string) (Claims, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.claims[userID]
	if !ok {
		return Claims{}, ErrNoClaims
	}
	return c, nil
}

// SetRole overwrites the role claim.
func (p *MemoryProvider) SetRole(_ context.Context, userID string, r role.Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.claims[userID]
	c.Role = r
	p.claims[userID] = c
	return nil
}

// SetOnboarded overwrites the onboarding claim.
func (p *MemoryProvider) SetOnboarded(_ context.Context, userID string, done bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.claims[userID]
	c.OnboardingComplete = done
	p.claims[userID] = c
	return nil
}

// SignOut deletes the session.
func (p *MemoryProvider) SignOut(_ context.Context, sid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, sid)
	return nil
}
