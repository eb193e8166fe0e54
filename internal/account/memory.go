package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hackhub/internal/role"
)

// MemoryStore is an in-process Store used for dev and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (m *MemoryStore) Create(_ context.Context, u *User) error {
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
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemoryStore) Role(ctx context.Context, id string) (role.Role, error) {
	u, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (m *MemoryStore) SetRole(_ context.Context, id string, r role.Role) error {
	if !r.Valid() {
		return ErrInvalidRole
	}
	return m.mutate(id, func(u *User) { u.Role = r })
}

func (m *MemoryStore) SetOnboarded(_ context.Context, id string, done bool) error {
	return m.mutate(id, func(u *User) { u.OnboardingComplete = done })
}

func (m *MemoryStore) mutate(id string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)
