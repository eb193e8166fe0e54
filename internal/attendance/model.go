// Package attendance records check-ins against attendance schedules. It owns events, teams,
// registrations and schedules, and marks subjects present from scanned identity tokens.
package attendance

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by stores when no row matches.
	ErrNotFound = errors.New("attendance: not found")
	// ErrDuplicate is returned when a membership or registration already exists.
	ErrDuplicate = errors.New("attendance: already exists")
)

// EventKind distinguishes team-based hackathons from individually registered events.
type EventKind string

const (
	KindHackathon EventKind = "hackathon"
	KindEvent     EventKind = "event"
)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	return k == KindHackathon || k == KindEvent
}

// Event is a hackathon or a regular event.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      EventKind `json:"kind"`
	StartsAt  time.Time `json:"starts_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Team competes in a hackathon.
type Team struct {
	ID           string    `json:"id"`
	HackathonID  string    `json:"hackathon_id"`
	Name         string    `json:"name"`
	Disqualified bool      `json:"disqualified"`
	CreatedAt    time.Time `json:"created_at"`
}

// TeamMember links a user to a team. Its id is the attendance subject for team flows.
type TeamMember struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	HackathonID string `json:"hackathon_id"`
	UserID      string `json:"user_id"`
}

// Registration links a user to an event. Its id is the attendance subject for individual flows.
type Registration struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// Schedule is one check-in window of an event day.
type Schedule struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	Day         int       `json:"day"`
	CheckInTime time.Time `json:"check_in_time"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubjectKind says which table a subject id points into.
type SubjectKind string

const (
	SubjectTeamMember   SubjectKind = "team_member"
	SubjectRegistration SubjectKind = "registration"
)

// Record is the presence of one subject for one schedule. (ScheduleID, SubjectID) is unique.
type Record struct {
	ID          string      `json:"id"`
	ScheduleID  string      `json:"schedule_id"`
	SubjectID   string      `json:"subject_id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	IsPresent   bool        `json:"is_present"`
	CheckedInAt time.Time   `json:"checked_in_at"`
	CheckedInBy string      `json:"checked_in_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Subject is the display identity returned to the scanning operator.
type Subject struct {
	ID       string      `json:"id"`
	Kind     SubjectKind `json:"kind"`
	UserID   string      `json:"user_id"`
	Name     string      `json:"name,omitempty"`
	Email    string      `json:"email,omitempty"`
	TeamID   string      `json:"team_id,omitempty"`
	TeamName string      `json:"team_name,omitempty"`
}

// Store persists events, teams, registrations, schedules and records. UpsertRecord must be
// atomic on (ScheduleID, SubjectID).
type Store interface {
	CreateEvent(ctx context.Context, e *Event) error
	Event(ctx context.Context, id string) (Event, error)

	CreateTeam(ctx context.Context, t *Team) error
	Team(ctx context.Context, id string) (Team, error)
	SetDisqualified(ctx context.Context, teamID string, disqualified bool) error
	AddTeamMember(ctx context.Context, m *TeamMember) error
	TeamMember(ctx context.Context, teamID, userID string) (TeamMember, error)
	TeamMemberByID(ctx context.Context, id string) (TeamMember, error)
	MembershipInHackathon(ctx context.Context, hackathonID, userID string) (TeamMember, error)

	Register(ctx context.Context, r *Registration) error
	Registration(ctx context.Context, eventID, userID string) (Registration, error)
	RegistrationByID(ctx context.Context, id string) (Registration, error)

	CreateSchedule(ctx context.Context, s *Schedule) error
	Schedule(ctx context.Context, id string) (Schedule, error)
	ListSchedules(ctx context.Context, eventID string) ([]Schedule, error)

	UpsertRecord(ctx context.Context, rec Record) (Record, error)
	ListRecords(ctx context.Context, scheduleID string) ([]Record, error)
	CountPresent(ctx context.Context, scheduleID string) (int, error)
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)
