package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"hackhub/internal/idtoken"
)

// ErrInvalidInput is returned for malformed management requests.
var ErrInvalidInput = errors.New("attendance: invalid input")

func invalidInput(msg string) error {
	return &inputError{msg: msg}
}

type inputError struct{ msg string }

func (e *inputError) Error() string        { return e.msg }
func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }

// CreateEvent validates and stores a new event.
func (s *Service) CreateEvent(ctx context.Context, name string, kind EventKind, startsAt time.Time) (Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Event{}, invalidInput("name required")
	}
	if kind == "" {
		kind = KindHackathon
	}
	if !kind.Valid() {
		return Event{}, invalidInput("kind must be hackathon or event")
	}
	e := Event{Name: name, Kind: kind, StartsAt: startsAt.UTC()}
	if err := s.store.CreateEvent(ctx, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// CreateTeam adds a team to a hackathon.
func (s *Service) CreateTeam(ctx context.Context, hackathonID, name string) (Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Team{}, invalidInput("name required")
	}
	e, err := s.store.Event(ctx, hackathonID)
	if err != nil {
		return Team{}, err
	}
	if e.Kind != KindHackathon {
		return Team{}, invalidInput("teams belong to hackathons")
	}
	t := Team{HackathonID: hackathonID, Name: name}
	if err := s.store.CreateTeam(ctx, &t); err != nil {
		return Team{}, err
	}
	return t, nil
}

// AddTeamMember puts a user on a team. A user joins at most one team per hackathon.
func (s *Service) AddTeamMember(ctx context.Context, teamID, userID string) (TeamMember, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return TeamMember{}, err
	}
	t, err := s.store.Team(ctx, teamID)
	if err != nil {
		return TeamMember{}, err
	}
	// The store rejects a second team in the same hackathon with ErrDuplicate.
	m := TeamMember{TeamID: t.ID, HackathonID: t.HackathonID, UserID: userID}
	if err := s.store.AddTeamMember(ctx, &m); err != nil {
		return TeamMember{}, err
	}
	return m, nil
}

// Register signs a user up for an individual event.
func (s *Service) Register(ctx context.Context, eventID, userID string) (Registration, error) {
	e, err := s.store.Event(ctx, eventID)
	if err != nil {
		return Registration{}, err
	}
	if e.Kind != KindEvent {
		return Registration{}, invalidInput("hackathon attendance is tracked per team")
	}
	r := Registration{EventID: eventID, UserID: userID}
	if err := s.store.Register(ctx, &r); err != nil {
		return Registration{}, err
	}
	return r, nil
}

// SetDisqualified disqualifies or reinstates a team.
func (s *Service) SetDisqualified(ctx context.Context, teamID string, disqualified bool) (Team, error) {
	if err := s.store.SetDisqualified(ctx, teamID, disqualified); err != nil {
		return Team{}, err
	}
	return s.store.Team(ctx, teamID)
}

// ScheduleParams describe a new check-in window.
type ScheduleParams struct {
	EventID     string
	Day         int
	CheckInTime time.Time
	Description string
}

// CreateSchedule adds a check-in window to an event.
func (s *Service) CreateSchedule(ctx context.Context, p ScheduleParams) (Schedule, error) {
	if p.Day < 1 {
		return Schedule{}, invalidInput("day must be at least 1")
	}
	if p.CheckInTime.IsZero() {
		return Schedule{}, invalidInput("check_in_time required")
	}
	if _, err := s.store.Event(ctx, p.EventID); err != nil {
		return Schedule{}, err
	}
	sc := Schedule{
		EventID:     p.EventID,
		Day:         p.Day,
		CheckInTime: p.CheckInTime.UTC(),
		Description: strings.TrimSpace(p.Description),
	}
	if err := s.store.CreateSchedule(ctx, &sc); err != nil {
		return Schedule{}, err
	}
	return sc, nil
}

// ListSchedules returns an event's schedules; an unknown event is ErrNotFound.
func (s *Service) ListSchedules(ctx context.Context, eventID string) ([]Schedule, error) {
	if _, err := s.store.Event(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListSchedules(ctx, eventID)
}

// Records returns the attendance records of a schedule.
func (s *Service) Records(ctx context.Context, scheduleID string) ([]Record, error) {
	if _, err := s.store.Schedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, scheduleID)
}

// TokenFor builds the caller's identity token. An empty hackathonID yields a user token;
// otherwise the user must be on a team in that hackathon.
func (s *Service) TokenFor(ctx context.Context, userID, hackathonID string) (string, error) {
	if hackathonID == "" {
		return s.codec.Encode(idtoken.Payload{Type: idtoken.KindUser, UserID: userID, IssuedAt: idtoken.IssueTime(s.now())})
	}
	m, err := s.store.MembershipInHackathon(ctx, hackathonID, userID)
	if err != nil {
		return "", err
	}
	return s.codec.Encode(idtoken.Payload{
		Type:        idtoken.KindTeamMember,
		UserID:      m.UserID,
		TeamID:      m.TeamID,
		HackathonID: hackathonID,
		IssuedAt:    idtoken.IssueTime(s.now()),
	})
}
