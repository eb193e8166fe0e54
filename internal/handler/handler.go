// Package handler exposes the HTTP surface: dashboard pages behind the route guard and the
// JSON API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hackhub/internal/account"
	"hackhub/internal/attendance"
	"hackhub/internal/auth"
	"hackhub/internal/logging"
	"hackhub/internal/role"
	"hackhub/internal/session"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the handlers need. ScanLimiter and Health are optional.
type Deps struct {
	Accounts      *account.Service
	Users         account.Store
	Sessions      session.Provider
	Validator     auth.Validator
	Auth          *auth.Middleware
	Attendance    *attendance.Service
	Summaries     *attendance.Summaries
	WebhookSecret string
	ScanLimiter   gin.HandlerFunc
	Health        map[string]HealthCheck
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	return &Handler{Deps: d}
}

// ByOperator keys the scan limiter by the authenticated operator. It must run after a
// session middleware.
func ByOperator(c *gin.Context) string {
	if p, ok := auth.PrincipalFrom(c); ok {
		return p.UserID
	}
	return c.ClientIP()
}

// Register mounts the guard, pages and API on r.
func (h *Handler) Register(r *gin.Engine) {
	r.Use(h.Auth.Guard())

	r.GET("/healthz", h.Healthz)
	h.registerPages(r)

	api := r.Group("/api")
	{
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)
		api.GET("/auth/validate-role", h.Auth.Authenticate(), h.ValidateRole)
		api.POST("/webhooks/provision", h.Provision)
	}

	authed := api.Group("", h.Auth.RequireSession())
	{
		authed.GET("/me", h.Me)
		authed.GET("/me/qr", h.QRCode)
		authed.GET("/me/qr/token", h.QRToken)
		authed.POST("/onboarding/complete", h.CompleteOnboarding)
		authed.GET("/events/:id/schedules", h.ListSchedules)
		authed.POST("/events/:id/registrations", h.RegisterSelf)

		mark := []gin.HandlerFunc{}
		if h.ScanLimiter != nil {
			mark = append(mark, h.ScanLimiter)
		}
		authed.POST("/attendance/mark", append(mark, h.MarkAttendance)...)
	}

	staff := authed.Group("", auth.RequireRole(role.Admin, role.Master))
	{
		staff.POST("/events", h.CreateEvent)
		staff.POST("/events/:id/teams", h.CreateTeam)
		staff.POST("/events/:id/schedules", h.CreateSchedule)
		staff.POST("/teams/:id/members", h.AddTeamMember)
		staff.POST("/teams/:id/disqualify", h.setDisqualified(true))
		staff.POST("/teams/:id/reinstate", h.setDisqualified(false))
		staff.GET("/schedules/:id/attendance", h.ListAttendance)
		staff.GET("/schedules/:id/summary", h.Summary)
	}

	master := authed.Group("", auth.RequireRole(role.Master))
	master.PUT("/users/:id/role", h.AssignRole)
}

// Healthz reports each configured dependency.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// writeError maps store and service errors to responses. Unknown errors are logged and
// reported without detail.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, account.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, attendance.ErrDuplicate), errors.Is(err, account.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, attendance.ErrInvalidInput), errors.Is(err, account.ErrInvalidInput), errors.Is(err, account.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, account.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "InsufficientPermission"})
	default:
		logging.FromContext(c.Request.Context()).Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func principal(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFrom(c)
	return p
}
