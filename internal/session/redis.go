package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hackhub/internal/role"
)

const (
	fieldRole       = "role"
	fieldOnboarding = "onboarding_complete"
)

// RedisProvider stores sessions as expiring keys and claims as hashes.
type RedisProvider struct {
	client *redis.Client
	prefix string
	maxAge time.Duration
}

// NewRedisProvider builds a provider. maxAge bounds the lifetime of every session.
func NewRedisProvider(client *redis.Client, prefix string, maxAge time.Duration) *RedisProvider {
	if prefix == "" {
		prefix = "hackhub"
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &RedisProvider{client: client, prefix: prefix, maxAge: maxAge}
}

func (p *RedisProvider) sessionKey(sid string) string { return p.prefix + ":session:" + sid }
func (p *RedisProvider) claimsKey(uid string) string  { return p.prefix + ":claims:" + uid }

// Create starts a session and overwrites the user's claims.
func (p *RedisProvider) Create(ctx context.Context, userID string, claims Claims) (Session, error) {
	if userID == "" {
		return Session{}, errors.New("session: user id required")
	}
	s := Session{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now().UTC()}
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.sessionKey(s.ID), userID, p.maxAge)
		pipe.HSet(ctx, p.claimsKey(userID),
			fieldRole, string(claims.Role),
			fieldOnboarding, strconv.FormatBool(claims.OnboardingComplete))
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("session: create: %w", err)
	}
	return s, nil
}

// Get resolves a session id to its user.
func (p *RedisProvider) Get(ctx context.Context, sid string) (Session, error) {
	if sid == "" {
		return Session{}, ErrNoSession
	}
	uid, err := p.client.Get(ctx, p.sessionKey(sid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("session: get: %w", err)
	}
	return Session{ID: sid, UserID: uid}, nil
}

// Claims reads the claims hash for a user.
func (p *RedisProvider) Claims(ctx context.Context, userID string) (Claims, error) {
	vals, err := p.client.HGetAll(ctx, p.claimsKey(userID)).Result()
	if err != nil {
		return Claims{}, fmt.Errorf("session: claims: %w", err)
	}
	if len(vals) == 0 {
		return Claims{}, ErrNoClaims
	}
	done, _ := strconv.ParseBool(vals[fieldOnboarding])
	return Claims{Role: role.Role(vals[fieldRole]), OnboardingComplete: done}, nil
}

// SetRole overwrites the role claim.
func (p *RedisProvider) SetRole(ctx context.Context, userID string, r role.Role) error {
	if err := p.client.HSet(ctx, p.claimsKey(userID), fieldRole, string(r)).Err(); err != nil {
		return fmt.Errorf("session: set role: %w", err)
	}
	return nil
}

// SetOnboarded overwrites the onboarding claim.
func (p *RedisProvider) SetOnboarded(ctx context.Context, userID string, done bool) error {
	if err := p.client.HSet(ctx, p.claimsKey(userID), fieldOnboarding, strconv.FormatBool(done)).Err(); err != nil {
		return fmt.Errorf("session: set onboarding: %w", err)
	}
	return nil
}

// SignOut deletes the session. Signing out an unknown session is not an error.
func (p *RedisProvider) SignOut(ctx context.Context, sid string) error {
	if err := p.client.Del(ctx, p.sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("session: sign out: %w", err)
	}
	return nil
}
