package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"hackhub/internal/logging"
	"hackhub/internal/metrics"
	"hackhub/internal/reconcile"
	"hackhub/internal/role"
	"hackhub/internal/session"
)

const principalKey = "principal"

// Login redirect reasons.
const (
	ReasonRoleMismatch     = "role_mismatch"
	ReasonValidationFailed = "validation_failed"
	ReasonSessionError     = "session_error"
)

// Principal is the request-scoped identity resolved from the session cookie.
type Principal struct {
	UserID             string
	SessionID          string
	Role               role.Role
	OnboardingComplete bool
}

type principalCtxKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext returns the principal stored by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

// PrincipalFrom returns the principal attached to a gin request.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	if v, ok := c.Get(principalKey); ok {
		p, ok := v.(Principal)
		return p, ok
	}
	return Principal{}, false
}

// Validator is satisfied by *reconcile.Reconciler.
type Validator interface {
	Validate(ctx context.Context, userID string) (reconcile.Result, error)
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name          string
	Secure        bool
	RefreshWindow time.Duration
}

// Middleware resolves session cookies into principals.
type Middleware struct {
	issuer    *Issuer
	sessions  session.Provider
	validator Validator
	cookie    CookieConfig
}

// NewMiddleware wires the guard and API middlewares.
func NewMiddleware(issuer *Issuer, sessions session.Provider, validator Validator, cookie CookieConfig) *Middleware {
	if cookie.Name == "" {
		cookie.Name = "hackhub_session"
	}
	return &Middleware{issuer: issuer, sessions: sessions, validator: validator, cookie: cookie}
}

// StartSession issues the cookie for a freshly created session.
func (m *Middleware) StartSession(c *gin.Context, s session.Session) error {
	token, exp, err := m.issuer.Issue(s.ID, s.UserID)
	if err != nil {
		return err
	}
	m.setCookie(c, token, exp)
	return nil
}

// EndSession signs the current session out and clears the cookie.
func (m *Middleware) EndSession(c *gin.Context) error {
	m.clearCookie(c)
	claims, ok := m.readCookie(c)
	if !ok {
		return nil
	}
	return m.sessions.SignOut(c.Request.Context(), claims.SessionID)
}

// Guard gates page navigations. It refreshes the session cookie before evaluating any rule,
// so every branch, public ones included, carries the cookie mutation.
func (m *Middleware) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, hasCookie := m.refreshCookie(c)
		path := c.Request.URL.Path

		if IsPublic(path) {
			metrics.GuardDecisions.WithLabelValues(string(RulePublic)).Inc()
			c.Next()
			return
		}

		req := Request{Path: path}
		if hasCookie {
			p, reason := m.resolve(c, claims)
			if reason != "" {
				metrics.GuardDecisions.WithLabelValues(reason).Inc()
				c.Redirect(http.StatusTemporaryRedirect, LoginPath+"?reason="+url.QueryEscape(reason))
				c.Abort()
				return
			}
			if p != nil {
				req.HasSession = true
				req.OnboardingComplete = p.OnboardingComplete
				req.Role = p.Role
				m.attach(c, *p)
			}
		}

		d := Decide(req)
		metrics.GuardDecisions.WithLabelValues(string(d.Rule)).Inc()
		if !d.Allow {
			c.Redirect(http.StatusTemporaryRedirect, d.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Authenticate requires a live session but does not reconcile roles. The principal's role
// is the session claim as stored.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.readCookie(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		ctx := c.Request.Context()
		s, err := m.sessions.Get(ctx, claims.SessionID)
		if err != nil || s.UserID != claims.Subject {
			if err != nil && !errors.Is(err, session.ErrNoSession) {
				logging.FromContext(ctx).Error("session lookup failed", "error", err)
			}
			abortUnauthorized(c)
			return
		}
		sc, err := m.sessions.Claims(ctx, s.UserID)
		if err != nil && !errors.Is(err, session.ErrNoClaims) {
			logging.FromContext(ctx).Error("claims lookup failed", "error", err)
			abortUnauthorized(c)
			return
		}
		m.attach(c, Principal{UserID: s.UserID, SessionID: s.ID, Role: sc.Role, OnboardingComplete: sc.OnboardingComplete})
		c.Next()
	}
}

// RequireSession requires a live session whose role claim reconciles with the persisted
// role. Validation failures are treated as unauthenticated.
func (m *Middleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.readCookie(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		p, reason := m.resolve(c, claims)
		if reason != "" || p == nil {
			abortUnauthorized(c)
			return
		}
		m.attach(c, *p)
		c.Next()
	}
}

// RequireRole allows only principals holding one of roles. It must run after
// RequireSession.
func RequireRole(roles ...role.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "InsufficientPermission"})
	}
}

// resolve looks the session up and reconciles its role. A nil principal with an empty
// reason means there is no session. A non-empty reason means the caller must fail closed.
func (m *Middleware) resolve(c *gin.Context, claims Claims) (*Principal, string) {
	ctx := c.Request.Context()
	log := logging.FromContext(ctx)

	s, err := m.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			m.clearCookie(c)
			return nil, ""
		}
		log.Error("session lookup failed", "error", err)
		return nil, ReasonSessionError
	}
	if s.UserID != claims.Subject {
		m.clearCookie(c)
		return nil, ""
	}

	res, err := m.validator.Validate(ctx, s.UserID)
	if err != nil {
		log.Error("role validation failed", "user_id", s.UserID, "error", err)
		return nil, ReasonValidationFailed
	}
	if !res.IsValid {
		if err := m.sessions.SignOut(ctx, s.ID); err != nil {
			log.Error("sign out after role mismatch failed", "user_id", s.UserID, "error", err)
		}
		m.clearCookie(c)
		return nil, ReasonRoleMismatch
	}
	return &Principal{
		UserID:             s.UserID,
		SessionID:          s.ID,
		Role:               res.PersistedRole,
		OnboardingComplete: res.Claims.OnboardingComplete,
	}, ""
}

func (m *Middleware) attach(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
	c.Request = c.Request.WithContext(ContextWithPrincipal(c.Request.Context(), p))
}

func (m *Middleware) readCookie(c *gin.Context) (Claims, bool) {
	raw, err := c.Cookie(m.cookie.Name)
	if err != nil || raw == "" {
		return Claims{}, false
	}
	claims, err := m.issuer.Parse(raw)
	if err != nil {
		return Claims{}, false
	}
	return claims, true
}

// refreshCookie parses the cookie, clears it when unusable and re-issues it when it is
// close to expiry.
func (m *Middleware) refreshCookie(c *gin.Context) (Claims, bool) {
	raw, err := c.Cookie(m.cookie.Name)
	if err != nil || raw == "" {
		return Claims{}, false
	}
	claims, err := m.issuer.Parse(raw)
	if err != nil {
		m.clearCookie(c)
		return Claims{}, false
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Sub(m.issuer.now()) < m.cookie.RefreshWindow {
		token, exp, err := m.issuer.Issue(claims.SessionID, claims.Subject)
		if err != nil {
			logging.FromContext(c.Request.Context()).Error("session cookie refresh failed", "error", err)
			return claims, true
		}
		m.setCookie(c, token, exp)
	}
	return claims, true
}

func (m *Middleware) setCookie(c *gin.Context, token string, exp time.Time) {
	maxAge := int(exp.Sub(m.issuer.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie.Name, token, maxAge, "/", "", m.cookie.Secure, true)
}

func (m *Middleware) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie.Name, "", -1, "/", "", m.cookie.Secure, true)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
}
