package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"hackhub/internal/account"
	"hackhub/internal/idtoken"
	"hackhub/internal/logging"
	"hackhub/internal/metrics"
	"hackhub/internal/queue"
	"hackhub/internal/role"
)

// MessageMarked is the queue message type published after every successful mark.
const MessageMarked = "attendance.marked"

// Marked is the body of a MessageMarked message.
type Marked struct {
	ScheduleID string    `json:"schedule_id"`
	SubjectID  string    `json:"subject_id"`
	At         time.Time `json:"at"`
}

// Users resolves operators' persisted roles and subjects' display identity.
type Users interface {
	Role(ctx context.Context, id string) (role.Role, error)
	Get(ctx context.Context, id string) (account.User, error)
}

// Publisher is satisfied by queue.Queue.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// ScanContext selects the token type an operator expects.
type ScanContext string

const (
	ContextHackathon ScanContext = "hackathon"
	ContextEvent     ScanContext = "event"
)

// MarkRequest is one scan. Either Token or SubjectID identifies the subject; Token wins when
// both are set. An empty Context means ContextHackathon.
type MarkRequest struct {
	Token      string
	SubjectID  string
	ScheduleID string
	OperatorID string
	Context    ScanContext
}

// MarkResult is returned to the operator on success.
type MarkResult struct {
	Subject Subject `json:"subject"`
	Record  Record  `json:"record"`
}

// Service coordinates schedules, team state and attendance marking.
type Service struct {
	store     Store
	users     Users
	codec     *idtoken.Codec
	publisher Publisher
	now       func() time.Time
}

// NewService creates a service. publisher may be nil.
func NewService(store Store, users Users, codec *idtoken.Codec, publisher Publisher) *Service {
	return &Service{store: store, users: users, codec: codec, publisher: publisher, now: time.Now}
}

// subjectRef is what the preconditions resolved about the scanned subject.
type subjectRef struct {
	subject Subject
	eventID string
}

// Mark checks the preconditions in order and upserts the subject's record. Every error it
// returns is a *Failure.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (MarkResult, error) {
	res, f := s.mark(ctx, req)
	if f != nil {
		metrics.AttendanceMarks.WithLabelValues(string(f.Code)).Inc()
		log := logging.FromContext(ctx).With("schedule_id", req.ScheduleID, "operator_id", req.OperatorID, "code", f.Code)
		if f.Code == CodeInternal {
			log.Error("attendance mark failed", "error", f.Err)
		} else {
			log.Info("attendance mark rejected", "reason", f.Message)
		}
		return MarkResult{}, f
	}
	metrics.AttendanceMarks.WithLabelValues("ok").Inc()
	return res, nil
}

func (s *Service) mark(ctx context.Context, req MarkRequest) (MarkResult, *Failure) {
	scanCtx := req.Context
	if scanCtx == "" {
		scanCtx = ContextHackathon
	}
	if scanCtx != ContextHackathon && scanCtx != ContextEvent {
		return MarkResult{}, fail(CodeInvalidToken, "Unknown scan context")
	}

	// 1. token
	var payload *idtoken.Payload
	if req.Token != "" {
		p, err := s.codec.Decode(strings.TrimSpace(req.Token))
		if err != nil {
			return MarkResult{}, fail(CodeInvalidToken, "QR code is not valid")
		}
		if p.Type != expectedKind(scanCtx) {
			return MarkResult{}, fail(CodeInvalidToken, "QR code is not valid for this check-in")
		}
		payload = &p
	} else if req.SubjectID == "" {
		return MarkResult{}, fail(CodeInvalidToken, "Token or subject required")
	}

	// 2. operator
	if f := s.checkOperator(ctx, req.OperatorID); f != nil {
		return MarkResult{}, f
	}
	if payload != nil && payload.UserID == req.OperatorID {
		return MarkResult{}, fail(CodeInsufficientPermission, "Operators cannot check themselves in")
	}

	// 3. subject. Individual tokens carry no event, so their schedule is loaded first.
	var (
		ref      subjectRef
		schedule *Schedule
		f        *Failure
	)
	switch {
	case scanCtx == ContextHackathon && payload != nil:
		ref, f = s.teamSubjectFromToken(ctx, *payload)
	case scanCtx == ContextHackathon:
		ref, f = s.teamSubjectByID(ctx, req.SubjectID)
	case payload != nil:
		var sc Schedule
		if sc, f = s.loadSchedule(ctx, req.ScheduleID); f == nil {
			schedule = &sc
			ref, f = s.registrantFromToken(ctx, sc.EventID, payload.UserID)
		}
	default:
		ref, f = s.registrantByID(ctx, req.SubjectID)
	}
	if f != nil {
		return MarkResult{}, f
	}
	if ref.subject.UserID == req.OperatorID {
		return MarkResult{}, fail(CodeInsufficientPermission, "Operators cannot check themselves in")
	}

	// 4. schedule
	if schedule == nil {
		sc, f := s.loadSchedule(ctx, req.ScheduleID)
		if f != nil {
			return MarkResult{}, f
		}
		schedule = &sc
	}
	if schedule.EventID != ref.eventID {
		return MarkResult{}, fail(CodeScheduleMismatch, "Schedule belongs to a different event")
	}

	rec, err := s.store.UpsertRecord(ctx, Record{
		ScheduleID:  schedule.ID,
		SubjectID:   ref.subject.ID,
		SubjectKind: ref.subject.Kind,
		CheckedInAt: s.now().UTC(),
		CheckedInBy: req.OperatorID,
	})
	if err != nil {
		return MarkResult{}, internal("Could not record attendance", err)
	}

	subject := ref.subject
	if u, err := s.users.Get(ctx, subject.UserID); err == nil {
		subject.Name, subject.Email = u.Name, u.Email
	} else {
		logging.FromContext(ctx).Warn("subject lookup failed", "user_id", subject.UserID, "error", err)
	}
	s.publishMarked(ctx, rec)
	return MarkResult{Subject: subject, Record: rec}, nil
}

func expectedKind(c ScanContext) idtoken.Kind {
	if c == ContextEvent {
		return idtoken.KindUser
	}
	return idtoken.KindTeamMember
}

func (s *Service) checkOperator(ctx context.Context, operatorID string) *Failure {
	if operatorID == "" {
		return fail(CodeUnauthorized, "Operator required")
	}
	r, err := s.users.Role(ctx, operatorID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return fail(CodeUnauthorized, "Operator not found")
		}
		return internal("Could not verify operator", err)
	}
	if !r.Privileged() {
		return fail(CodeInsufficientPermission, "Only admins can mark attendance")
	}
	return nil
}

func (s *Service) teamSubjectFromToken(ctx context.Context, p idtoken.Payload) (subjectRef, *Failure) {
	team, f := s.loadTeam(ctx, p.TeamID)
	if f != nil {
		return subjectRef{}, f
	}
	if team.HackathonID != p.HackathonID {
		return subjectRef{}, fail(CodeNotFound, "Team not found")
	}
	m, err := s.store.TeamMember(ctx, p.TeamID, p.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return subjectRef{}, fail(CodeNotFound, "Team member not found")
		}
		return subjectRef{}, internal("Could not load team member", err)
	}
	return teamRef(team, m)
}

func (s *Service) teamSubjectByID(ctx context.Context, memberID string) (subjectRef, *Failure) {
	m, err := s.store.TeamMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return subjectRef{}, fail(CodeNotFound, "Team member not found")
		}
		return subjectRef{}, internal("Could not load team member", err)
	}
	team, f := s.loadTeam(ctx, m.TeamID)
	if f != nil {
		return subjectRef{}, f
	}
	return teamRef(team, m)
}

func teamRef(team Team, m TeamMember) (subjectRef, *Failure) {
	if team.Disqualified {
		return subjectRef{}, fail(CodeDisqualified, "Team is disqualified")
	}
	return subjectRef{
		subject: Subject{ID: m.ID, Kind: SubjectTeamMember, UserID: m.UserID, TeamID: team.ID, TeamName: team.Name},
		eventID: team.HackathonID,
	}, nil
}

func (s *Service) registrantFromToken(ctx context.Context, eventID, userID string) (subjectRef, *Failure) {
	reg, err := s.store.Registration(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return subjectRef{}, fail(CodeNotFound, "Registration not found")
		}
		return subjectRef{}, internal("Could not load registration", err)
	}
	return registrantRef(reg), nil
}

func (s *Service) registrantByID(ctx context.Context, id string) (subjectRef, *Failure) {
	reg, err := s.store.RegistrationByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return subjectRef{}, fail(CodeNotFound, "Registration not found")
		}
		return subjectRef{}, internal("Could not load registration", err)
	}
	return registrantRef(reg), nil
}

func registrantRef(reg Registration) subjectRef {
	return subjectRef{
		subject: Subject{ID: reg.ID, Kind: SubjectRegistration, UserID: reg.UserID},
		eventID: reg.EventID,
	}
}

func (s *Service) loadTeam(ctx context.Context, id string) (Team, *Failure) {
	team, err := s.store.Team(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Team{}, fail(CodeNotFound, "Team not found")
		}
		return Team{}, internal("Could not load team", err)
	}
	return team, nil
}

func (s *Service) loadSchedule(ctx context.Context, id string) (Schedule, *Failure) {
	if id == "" {
		return Schedule{}, fail(CodeScheduleMismatch, "Schedule not found")
	}
	sc, err := s.store.Schedule(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Schedule{}, fail(CodeScheduleMismatch, "Schedule not found")
		}
		return Schedule{}, internal("Could not load schedule", err)
	}
	return sc, nil
}

func (s *Service) publishMarked(ctx context.Context, rec Record) {
	if s.publisher == nil {
		return
	}
	msg, err := queue.NewMessage(MessageMarked, Marked{ScheduleID: rec.ScheduleID, SubjectID: rec.SubjectID, At: rec.CheckedInAt})
	if err == nil {
		err = s.publisher.Publish(ctx, msg)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("queue publish failed", "schedule_id", rec.ScheduleID, "error", err)
	}
}
