package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hackhub/internal/attendance"
	"hackhub/internal/idtoken"
)

const maxQRSize = 1024

type markRequest struct {
	Token      string `json:"token"`
	SubjectID  string `json:"subject_id"`
	ScheduleID string `json:"schedule_id" binding:"required"`
	Context    string `json:"context"`
}

// MarkAttendance records a scan by the calling operator.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": attendance.CodeInvalidToken, "message": "token or subject_id and schedule_id required"})
		return
	}
	res, err := h.Attendance.Mark(c.Request.Context(), attendance.MarkRequest{
		Token:      req.Token,
		SubjectID:  req.SubjectID,
		ScheduleID: req.ScheduleID,
		OperatorID: principal(c).UserID,
		Context:    attendance.ScanContext(req.Context),
	})
	if err != nil {
		var f *attendance.Failure
		if !errors.As(err, &f) {
			f = &attendance.Failure{Code: attendance.CodeInternal, Message: "Internal error"}
		}
		c.JSON(f.Code.HTTPStatus(), gin.H{"success": false, "error": f.Code, "message": f.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subject": res.Subject, "record": res.Record})
}

type createEventRequest struct {
	Name     string    `json:"name" binding:"required"`
	Kind     string    `json:"kind"`
	StartsAt time.Time `json:"starts_at"`
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.Attendance.CreateEvent(c.Request.Context(), req.Name, attendance.EventKind(req.Kind), req.StartsAt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateTeam(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.Attendance.CreateTeam(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type memberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) AddTeamMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.Attendance.AddTeamMember(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// RegisterSelf registers the caller for an individual event.
func (h *Handler) RegisterSelf(c *gin.Context) {
	reg, err := h.Attendance.Register(c.Request.Context(), c.Param("id"), principal(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (h *Handler) setDisqualified(disqualified bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := h.Attendance.SetDisqualified(c.Request.Context(), c.Param("id"), disqualified)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

type scheduleRequest struct {
	Day         int       `json:"day" binding:"required"`
	CheckInTime time.Time `json:"check_in_time" binding:"required"`
	Description string    `json:"description"`
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sc, err := h.Attendance.CreateSchedule(c.Request.Context(), attendance.ScheduleParams{
		EventID:     c.Param("id"),
		Day:         req.Day,
		CheckInTime: req.CheckInTime,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

func (h *Handler) ListSchedules(c *gin.Context) {
	schedules, err := h.Attendance.ListSchedules(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if schedules == nil {
		schedules = []attendance.Schedule{}
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (h *Handler) ListAttendance(c *gin.Context) {
	records, err := h.Attendance.Records(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) Summary(c *gin.Context) {
	sum, err := h.Summaries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// QRCode renders the caller's identity token as a PNG. With ?hackathon=<id> the token is
// the caller's team-member token for that hackathon.
func (h *Handler) QRCode(c *gin.Context) {
	tok, ok := h.identityToken(c)
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	if size > maxQRSize {
		size = maxQRSize
	}
	png, err := idtoken.PNG(tok, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// QRToken returns the raw identity token for clients that render their own code.
func (h *Handler) QRToken(c *gin.Context) {
	tok, ok := h.identityToken(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

func (h *Handler) identityToken(c *gin.Context) (string, bool) {
	tok, err := h.Attendance.TokenFor(c.Request.Context(), principal(c).UserID, c.Query("hackathon"))
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not a member of a team in this hackathon"})
			return "", false
		}
		writeError(c, err)
		return "", false
	}
	return tok, true
}
