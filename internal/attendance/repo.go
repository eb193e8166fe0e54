package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateEvent inserts an event.
func (r *Repository) CreateEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO events (id, name, kind, starts_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, e.ID, e.Name, string(e.Kind), e.StartsAt)
	return row.Scan(&e.CreatedAt)
}

// Event returns a single event by id.
func (r *Repository) Event(ctx context.Context, id string) (Event, error) {
	var e Event
	var kind string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, kind, starts_at, created_at FROM events WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &kind, &e.StartsAt, &e.CreatedAt)
	e.Kind = EventKind(kind)
	return e, notFound(err)
}

// CreateTeam inserts a team.
func (r *Repository) CreateTeam(ctx context.Context, t *Team) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO teams (id, hackathon_id, name, disqualified)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, t.ID, t.HackathonID, t.Name, t.Disqualified)
	return row.Scan(&t.CreatedAt)
}

// Team returns a team by id.
func (r *Repository) Team(ctx context.Context, id string) (Team, error) {
	var t Team
	err := r.db.QueryRowContext(ctx, `
		SELECT id, hackathon_id, name, disqualified, created_at FROM teams WHERE id = $1
	`, id).Scan(&t.ID, &t.HackathonID, &t.Name, &t.Disqualified, &t.CreatedAt)
	return t, notFound(err)
}

// SetDisqualified flips the team's disqualification flag.
func (r *Repository) SetDisqualified(ctx context.Context, teamID string, disqualified bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE teams SET disqualified = $2 WHERE id = $1`, teamID, disqualified)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddTeamMember inserts a membership, copying the hackathon from the team. A second team in
// the same hackathon violates team_members_hackathon_user_idx and yields ErrDuplicate.
func (r *Repository) AddTeamMember(ctx context.Context, m *TeamMember) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO team_members (id, team_id, hackathon_id, user_id)
		SELECT $1::text, t.id, t.hackathon_id, $3::text FROM teams t WHERE t.id = $2
		RETURNING hackathon_id
	`, m.ID, m.TeamID, m.UserID).Scan(&m.HackathonID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return duplicate(err)
}

// TeamMember returns the membership of userID in teamID.
func (r *Repository) TeamMember(ctx context.Context, teamID, userID string) (TeamMember, error) {
	return r.scanMember(r.db.QueryRowContext(ctx, `
		SELECT id, team_id, hackathon_id, user_id FROM team_members WHERE team_id = $1 AND user_id = $2
	`, teamID, userID))
}

// TeamMemberByID returns a membership by its id.
func (r *Repository) TeamMemberByID(ctx context.Context, id string) (TeamMember, error) {
	return r.scanMember(r.db.QueryRowContext(ctx, `
		SELECT id, team_id, hackathon_id, user_id FROM team_members WHERE id = $1
	`, id))
}

// MembershipInHackathon returns the user's membership in any team of the hackathon.
func (r *Repository) MembershipInHackathon(ctx context.Context, hackathonID, userID string) (TeamMember, error) {
	return r.scanMember(r.db.QueryRowContext(ctx, `
		SELECT id, team_id, hackathon_id, user_id FROM team_members
		WHERE hackathon_id = $1 AND user_id = $2
	`, hackathonID, userID))
}

func (r *Repository) scanMember(row *sql.Row) (TeamMember, error) {
	var m TeamMember
	err := row.Scan(&m.ID, &m.TeamID, &m.HackathonID, &m.UserID)
	return m, notFound(err)
}

// Register inserts a registration.
func (r *Repository) Register(ctx context.Context, reg *Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO registrations (id, event_id, user_id) VALUES ($1, $2, $3)
	`, reg.ID, reg.EventID, reg.UserID)
	return duplicate(err)
}

// Registration returns the registration of userID for eventID.
func (r *Repository) Registration(ctx context.Context, eventID, userID string) (Registration, error) {
	return r.scanRegistration(r.db.QueryRowContext(ctx, `
		SELECT id, event_id, user_id FROM registrations WHERE event_id = $1 AND user_id = $2
	`, eventID, userID))
}

// RegistrationByID returns a registration by its id.
func (r *Repository) RegistrationByID(ctx context.Context, id string) (Registration, error) {
	return r.scanRegistration(r.db.QueryRowContext(ctx, `
		SELECT id, event_id, user_id FROM registrations WHERE id = $1
	`, id))
}

func (r *Repository) scanRegistration(row *sql.Row) (Registration, error) {
	var reg Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID)
	return reg, notFound(err)
}

// CreateSchedule inserts a schedule.
func (r *Repository) CreateSchedule(ctx context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_schedules (id, event_id, day, check_in_time, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.EventID, s.Day, s.CheckInTime, s.Description)
	return row.Scan(&s.CreatedAt)
}

// Schedule returns a schedule by id.
func (r *Repository) Schedule(ctx context.Context, id string) (Schedule, error) {
	var s Schedule
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, day, check_in_time, description, created_at
		FROM attendance_schedules WHERE id = $1
	`, id).Scan(&s.ID, &s.EventID, &s.Day, &s.CheckInTime, &s.Description, &s.CreatedAt)
	return s, notFound(err)
}

// ListSchedules returns an event's schedules ordered by day and time.
func (r *Repository) ListSchedules(ctx context.Context, eventID string) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, day, check_in_time, description, created_at
		FROM attendance_schedules
		WHERE event_id = $1
		ORDER BY day, check_in_time
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.EventID, &s.Day, &s.CheckInTime, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpsertRecord marks the subject present for the schedule. A concurrent or repeated scan
// updates the existing row; the unique (schedule_id, subject_id) index keeps it single.
func (r *Repository) UpsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CheckedInAt.IsZero() {
		rec.CheckedInAt = time.Now().UTC()
	}
	var kind string
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, schedule_id, subject_id, subject_kind, is_present, checked_in_at, checked_in_by)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		ON CONFLICT (schedule_id, subject_id) DO UPDATE SET
			is_present = TRUE,
			checked_in_at = EXCLUDED.checked_in_at,
			checked_in_by = EXCLUDED.checked_in_by,
			updated_at = NOW()
		RETURNING id, schedule_id, subject_id, subject_kind, is_present, checked_in_at, checked_in_by, created_at, updated_at
	`, rec.ID, rec.ScheduleID, rec.SubjectID, string(rec.SubjectKind), rec.CheckedInAt, rec.CheckedInBy)
	var out Record
	if err := row.Scan(&out.ID, &out.ScheduleID, &out.SubjectID, &kind, &out.IsPresent, &out.CheckedInAt, &out.CheckedInBy, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return Record{}, err
	}
	out.SubjectKind = SubjectKind(kind)
	return out, nil
}

// ListRecords returns a schedule's records, latest check-in first.
func (r *Repository) ListRecords(ctx context.Context, scheduleID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schedule_id, subject_id, subject_kind, is_present, checked_in_at, checked_in_by, created_at, updated_at
		FROM attendance_records
		WHERE schedule_id = $1
		ORDER BY checked_in_at DESC
	`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		var kind string
		if err := rows.Scan(&rec.ID, &rec.ScheduleID, &rec.SubjectID, &kind, &rec.IsPresent, &rec.CheckedInAt, &rec.CheckedInBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.SubjectKind = SubjectKind(kind)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountPresent returns how many subjects are present for the schedule.
func (r *Repository) CountPresent(ctx context.Context, scheduleID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records WHERE schedule_id = $1 AND is_present
	`, scheduleID).Scan(&n)
	return n, err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
