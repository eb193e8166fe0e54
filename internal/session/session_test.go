package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"hackhub/internal/role"
)

func providers(t *testing.T) map[string]Provider {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Provider{
		"memory": NewMemoryProvider(time.Hour),
		"redis":  NewRedisProvider(client, "test", time.Hour),
	}
}

func TestProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			s, err := p.Create(ctx, "u1", Claims{Role: role.Student})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			got, err := p.Get(ctx, s.ID)
			if err != nil || got.UserID != "u1" {
				t.Fatalf("Get = %+v, %v", got, err)
			}

			c, err := p.Claims(ctx, "u1")
			if err != nil || c.Role != role.Student || c.OnboardingComplete {
				t.Fatalf("Claims = %+v, %v", c, err)
			}

			if err := p.SetRole(ctx, "u1", role.Admin); err != nil {
				t.Fatalf("SetRole: %v", err)
			}
			if err := p.SetOnboarded(ctx, "u1", true); err != nil {
				t.Fatalf("SetOnboarded: %v", err)
			}
			c, _ = p.Claims(ctx, "u1")
			if c.Role != role.Admin || !c.OnboardingComplete {
				t.Fatalf("claims after update = %+v", c)
			}

			if err := p.SignOut(ctx, s.ID); err != nil {
				t.Fatalf("SignOut: %v", err)
			}
			if _, err := p.Get(ctx, s.ID); !errors.Is(err, ErrNoSession) {
				t.Fatalf("Get after sign out: %v", err)
			}
			// Claims outlive sessions.
			if _, err := p.Claims(ctx, "u1"); err != nil {
				t.Fatalf("Claims after sign out: %v", err)
			}
		})
	}
}

func TestProviderUnknownIDs(t *testing.T) {
	ctx := context.Background()
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := p.Get(ctx, "nope"); !errors.Is(err, ErrNoSession) {
				t.Errorf("Get unknown: %v", err)
			}
			if _, err := p.Claims(ctx, "nobody"); !errors.Is(err, ErrNoClaims) {
				t.Errorf("Claims unknown: %v", err)
			}
			if _, err := p.Create(ctx, "", Claims{}); err == nil {
				t.Error("Create without user id should fail")
			}
		})
	}
}

func TestRedisProviderKeepsDriftedRoleVerbatim(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	p := NewRedisProvider(client, "test", time.Hour)

	mr.HSet("test:claims:u9", fieldRole, "superuser", fieldOnboarding, "true")
	c, err := p.Claims(context.Background(), "u9")
	if err != nil {
		t.Fatal(err)
	}
	if c.Role != role.Role("superuser") || !c.OnboardingComplete {
		t.Errorf("Claims = %+v", c)
	}
}

func TestRedisProviderSessionExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	p := NewRedisProvider(client, "test", time.Minute)
	ctx := context.Background()

	s, err := p.Create(ctx, "u1", Claims{Role: role.Master})
	if err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := p.Get(ctx, s.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected expired session, got %v", err)
	}
}

func TestMemoryProviderSessionExpires(t *testing.T) {
	p := NewMemoryProvider(time.Minute)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	s, _ := p.Create(context.Background(), "u1", Claims{Role: role.Student})

	now = now.Add(time.Minute)
	if _, err := p.Get(context.Background(), s.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected expired session, got %v", err)
	}
}
