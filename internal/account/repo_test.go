package account

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"hackhub/internal/role"
	"hackhub/internal/store"
)

func newPostgresRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewRepository(db.Client)
}

func TestRepositoryLifecycle(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	email := uuid.NewString() + "@Example.com"

	u := User{Name: "Ada", Email: "  " + email + " "}
	if err := repo.Create(ctx, &u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Role != role.Default {
		t.Errorf("default role = %q, want %q", u.Role, role.Default)
	}

	got, err := repo.GetByEmail(ctx, strings.ToUpper(email))
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != u.ID || got.Email != strings.ToLower(email) {
		t.Errorf("GetByEmail = %+v, want id %s", got, u.ID)
	}

	dup := User{Name: "Ada again", Email: email}
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: err = %v, want ErrEmailTaken", err)
	}

	if err := repo.SetRole(ctx, u.ID, role.Admin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if r, err := repo.Role(ctx, u.ID); err != nil || r != role.Admin {
		t.Errorf("Role = %q, %v; want ADMIN", r, err)
	}
	if err := repo.SetRole(ctx, u.ID, role.Role("ROOT")); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("invalid role: err = %v", err)
	}

	if err := repo.SetOnboarded(ctx, u.ID, true); err != nil {
		t.Fatalf("SetOnboarded: %v", err)
	}
	if got, err := repo.Get(ctx, u.ID); err != nil || !got.OnboardingComplete {
		t.Errorf("Get after onboarding = %+v, %v", got, err)
	}
}

func TestRepositoryMissingUser(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	missing := uuid.NewString()

	if _, err := repo.Get(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: %v", err)
	}
	if _, err := repo.Role(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Role: %v", err)
	}
	if err := repo.SetRole(ctx, missing, role.Master); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRole: %v", err)
	}
	if err := repo.SetOnboarded(ctx, missing, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetOnboarded: %v", err)
	}
}
