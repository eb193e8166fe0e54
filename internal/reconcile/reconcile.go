// Package reconcile keeps the session provider's role claim aligned with the persisted role
// record, which is authoritative.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"hackhub/internal/logging"
	"hackhub/internal/metrics"
	"hackhub/internal/role"
	"hackhub/internal/session"
)

// ErrValidationFailed wraps read failures. Callers treat it as "not authenticated".
var ErrValidationFailed = errors.New("reconcile: role validation failed")

// ClaimSource reads and overwrites the session role claim.
type ClaimSource interface {
	Claims(ctx context.Context, userID string) (session.Claims, error)
	SetRole(ctx context.Context, userID string, r role.Role) error
}

// RoleSource reads the persisted role record.
type RoleSource interface {
	Role(ctx context.Context, userID string) (role.Role, error)
}

// Result reports what Validate observed and did.
type Result struct {
	IsValid       bool      `json:"is_valid"`
	SessionRole   role.Role `json:"session_role"`
	PersistedRole role.Role `json:"persisted_role"`
	AutoFixed     bool      `json:"auto_fixed"`
	// Claims are the session claims after any fix.
	Claims session.Claims `json:"-"`
}

// Reconciler compares the two role sources for a user.
type Reconciler struct {
	claims ClaimSource
	roles  RoleSource
}

// New creates a reconciler.
func New(claims ClaimSource, roles RoleSource) *Reconciler {
	return &Reconciler{claims: claims, roles: roles}
}

// Validate reads both role sources. On a mismatch it overwrites the claim with the persisted
// role and reports AutoFixed. If that write fails the result is invalid with both observed
// values. Read failures return ErrValidationFailed.
func (r *Reconciler) Validate(ctx context.Context, userID string) (Result, error) {
	claims, err := r.claims.Claims(ctx, userID)
	if err != nil && !errors.Is(err, session.ErrNoClaims) {
		metrics.RoleReconciliations.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: read session claim: %v", ErrValidationFailed, err)
	}
	persisted, err := r.roles.Role(ctx, userID)
	if err != nil {
		metrics.RoleReconciliations.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: read persisted role: %v", ErrValidationFailed, err)
	}

	res := Result{SessionRole: claims.Role, PersistedRole: persisted, Claims: claims}
	if claims.Role == persisted {
		res.IsValid = true
		metrics.RoleReconciliations.WithLabelValues("match").Inc()
		return res, nil
	}

	if err := r.claims.SetRole(ctx, userID, persisted); err != nil {
		logging.FromContext(ctx).Error("role claim repair failed",
			"user_id", userID, "session_role", claims.Role, "persisted_role", persisted, "error", err)
		metrics.RoleReconciliations.WithLabelValues("fix_failed").Inc()
		return res, nil
	}
	logging.FromContext(ctx).Info("role claim repaired",
		"user_id", userID, "session_role", claims.Role, "persisted_role", persisted)
	res.IsValid = true
	res.AutoFixed = true
	res.Claims.Role = persisted
	metrics.RoleReconciliations.WithLabelValues("auto_fixed").Inc()
	return res, nil
}
