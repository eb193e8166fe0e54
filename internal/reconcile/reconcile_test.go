package reconcile

import (
	"context"
	"errors"
	"testing"

	"hackhub/internal/role"
	"hackhub/internal/session"
)

type claimStub struct {
	claims   map[string]session.Claims
	readErr  error
	writeErr error
	writes   int
}

func (c *claimStub) Claims(_ context.Context, uid string) (session.Claims, error) {
	if c.readErr != nil {
		return session.Claims{}, c.readErr
	}
	cl, ok := c.claims[uid]
	if !ok {
		return session.Claims{}, session.ErrNoClaims
	}
	return cl, nil
}

func (c *claimStub) SetRole(_ context.Context, uid string, r role.Role) error {
	c.writes++
	if c.writeErr != nil {
		return c.writeErr
	}
	cl := c.claims[uid]
	cl.Role = r
	c.claims[uid] = cl
	return nil
}

type roleStub struct {
	roles map[string]role.Role
	err   error
}

func (r roleStub) Role(_ context.Context, uid string) (role.Role, error) {
	if r.err != nil {
		return "", r.err
	}
	rl, ok := r.roles[uid]
	if !ok {
		return "", errors.New("not found")
	}
	return rl, nil
}

func TestValidateMatch(t *testing.T) {
	claims := &claimStub{claims: map[string]session.Claims{"u1": {Role: role.Admin}}}
	rec := New(claims, roleStub{roles: map[string]role.Role{"u1": role.Admin}})

	res, err := rec.Validate(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsValid || res.AutoFixed {
		t.Errorf("res = %+v, want valid without fix", res)
	}
	if claims.writes != 0 {
		t.Errorf("unexpected claim writes: %d", claims.writes)
	}
}

func TestValidateAutoFixesElevatedClaim(t *testing.T) {
	claims := &claimStub{claims: map[string]session.Claims{"u1": {Role: role.Admin, OnboardingComplete: true}}}
	rec := New(claims, roleStub{roles: map[string]role.Role{"u1": role.Student}})

	res, err := rec.Validate(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsValid || !res.AutoFixed {
		t.Fatalf("res = %+v, want valid and auto-fixed", res)
	}
	if res.SessionRole != role.Admin || res.PersistedRole != role.Student {
		t.Errorf("observed roles = %s/%s", res.SessionRole, res.PersistedRole)
	}
	if got := claims.claims["u1"].Role; got != role.Student {
		t.Errorf("claim after fix = %s, want STUDENT", got)
	}
	if res.Claims.Role != role.Student || !res.Claims.OnboardingComplete {
		t.Errorf("result claims = %+v", res.Claims)
	}
}

func TestValidateMissingClaimIsRepaired(t *testing.T) {
	claims := &claimStub{claims: map[string]session.Claims{}}
	rec := New(claims, roleStub{roles: map[string]role.Role{"u1": role.Master}})

	res, err := rec.Validate(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.AutoFixed || claims.claims["u1"].Role != role.Master {
		t.Errorf("res = %+v claims = %+v", res, claims.claims)
	}
}

func TestValidateFixFailureIsInvalid(t *testing.T) {
	claims := &claimStub{
		claims:   map[string]session.Claims{"u1": {Role: role.Master}},
		writeErr: errors.New("provider timeout"),
	}
	rec := New(claims, roleStub{roles: map[string]role.Role{"u1": role.Student}})

	res, err := rec.Validate(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.IsValid || res.AutoFixed {
		t.Errorf("res = %+v, want invalid", res)
	}
	if res.SessionRole != role.Master || res.PersistedRole != role.Student {
		t.Errorf("observed roles not surfaced: %+v", res)
	}
}

func TestValidateReadErrorsFailClosed(t *testing.T) {
	tests := []struct {
		name   string
		claims *claimStub
		roles  roleStub
	}{
		{
			name:   "claim read",
			claims: &claimStub{readErr: errors.New("redis down")},
			roles:  roleStub{roles: map[string]role.Role{"u1": role.Student}},
		},
		{
			name:   "store read",
			claims: &claimStub{claims: map[string]session.Claims{"u1": {Role: role.Student}}},
			roles:  roleStub{err: errors.New("db down")},
		},
		{
			name:   "unknown user",
			claims: &claimStub{claims: map[string]session.Claims{"u1": {Role: role.Student}}},
			roles:  roleStub{roles: map[string]role.Role{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(tt.claims, tt.roles).Validate(context.Background(), "u1")
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("err = %v, want ErrValidationFailed", err)
			}
			if res.IsValid {
				t.Error("result must not be valid on error")
			}
		})
	}
}

// Whenever the sources differ, the result is either fixed or invalid, never valid-unfixed.
func TestValidateRolePrecedence(t *testing.T) {
	values := []role.Role{role.Student, role.Admin, role.Master, "", "bogus"}
	persisted := []role.Role{role.Student, role.Admin, role.Master}
	for _, sv := range values {
		for _, pv := range persisted {
			for _, failWrite := range []bool{false, true} {
				claims := &claimStub{claims: map[string]session.Claims{"u": {Role: sv}}}
				if failWrite {
					claims.writeErr = errors.New("write failed")
				}
				res, err := New(claims, roleStub{roles: map[string]role.Role{"u": pv}}).Validate(context.Background(), "u")
				if err != nil {
					t.Fatalf("%s/%s: %v", sv, pv, err)
				}
				if sv == pv {
					continue
				}
				if res.IsValid && !res.AutoFixed {
					t.Errorf("session=%q persisted=%q: valid without fix", sv, pv)
				}
				if res.AutoFixed && claims.claims["u"].Role != pv {
					t.Errorf("session=%q persisted=%q: claim not overwritten", sv, pv)
				}
			}
		}
	}
}
