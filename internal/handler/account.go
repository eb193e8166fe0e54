package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hackhub/internal/account"
	"hackhub/internal/auth"
	"hackhub/internal/logging"
	"hackhub/internal/role"
	"hackhub/internal/session"
)

// WebhookSecretHeader carries the shared secret of the provisioning webhook.
const WebhookSecretHeader = "X-Webhook-Secret"

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials, opens a session seeded from the persisted record and sets the
// session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	u, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		writeError(c, err)
		return
	}
	s, err := h.Sessions.Create(ctx, u.ID, session.Claims{Role: u.Role, OnboardingComplete: u.OnboardingComplete})
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.Auth.StartSession(c, s); err != nil {
		writeError(c, err)
		return
	}
	logging.FromContext(ctx).Info("user logged in", "user_id", u.ID)

	redirect := role.DashboardRoot(u.Role)
	if !u.OnboardingComplete {
		redirect = auth.OnboardingPath
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "redirect": redirect})
}

// Logout signs the session out and clears the cookie.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.Auth.EndSession(c); err != nil {
		logging.FromContext(c.Request.Context()).Warn("sign out failed", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ValidateRole reconciles the caller's session role with the persisted record.
func (h *Handler) ValidateRole(c *gin.Context) {
	p := principal(c)
	res, err := h.Validator.Validate(c.Request.Context(), p.UserID)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("role validation failed", "user_id", p.UserID, "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Validation failed"})
		return
	}
	if !res.IsValid {
		if err := h.Auth.EndSession(c); err != nil {
			logging.FromContext(c.Request.Context()).Warn("sign out after role mismatch failed", "error", err)
		}
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Role mismatch",
			"details": gin.H{
				"sessionRole":  res.SessionRole,
				"databaseRole": res.PersistedRole,
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "autoFixed": res.AutoFixed, "role": res.PersistedRole})
}

type provisionRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Provision creates an account from the identity provider's webhook. It is disabled when no
// secret is configured.
func (h *Handler) Provision(c *gin.Context) {
	got := c.GetHeader(WebhookSecretHeader)
	if h.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.WebhookSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.Accounts.Provision(c.Request.Context(), account.ProvisionParams{
		ID:       req.ID,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Me returns the caller's account.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), principal(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// CompleteOnboarding marks the caller as onboarded.
func (h *Handler) CompleteOnboarding(c *gin.Context) {
	p := principal(c)
	if err := h.Accounts.CompleteOnboarding(c.Request.Context(), p.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": role.DashboardRoot(p.Role)})
}

type assignRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// AssignRole changes another user's persisted role.
func (h *Handler) AssignRole(c *gin.Context) {
	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, ok := role.Parse(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	u, err := h.Accounts.AssignRole(c.Request.Context(), principal(c).Role, c.Param("id"), r)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.FromContext(c.Request.Context()).Info("role assigned", "user_id", u.ID, "role", u.Role, "by", principal(c).UserID)
	c.JSON(http.StatusOK, u)
}
