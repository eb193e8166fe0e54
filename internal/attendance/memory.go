package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for dev and tests. The mutex plays the role of the
// database's row-level atomicity; UpsertRecord is a single critical section.
type MemoryStore struct {
	mu            sync.RWMutex
	events        map[string]Event
	teams         map[string]Team
	members       map[string]TeamMember
	registrations map[string]Registration
	schedules     map[string]Schedule
	records       map[recordKey]Record
}

type recordKey struct {
	scheduleID string
	subjectID  string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:        make(map[string]Event),
		teams:         make(map[string]Team),
		members:       make(map[string]TeamMember),
		registrations: make(map[string]Registration),
		schedules:     make(map[string]Schedule),
		records:       make(map[recordKey]Record),
	}
}

func (m *MemoryStore) CreateEvent(_ context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = *e
	return nil
}

func (m *MemoryStore) Event(_ context.Context, id string) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) CreateTeam(_ context.Context, t *Team) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = *t
	return nil
}

func (m *MemoryStore) Team(_ context.Context, id string) (Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teams[id]
	if !ok {
		return Team{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) SetDisqualified(_ context.Context, teamID string, disqualified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	t.Disqualified = disqualified
	m.teams[teamID] = t
	return nil
}

func (m *MemoryStore) AddTeamMember(_ context.Context, tm *TeamMember) error {
	if tm.ID == "" {
		tm.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[tm.TeamID]
	if !ok {
		return ErrNotFound
	}
	tm.HackathonID = t.HackathonID
	for _, existing := range m.members {
		if existing.UserID == tm.UserID && existing.HackathonID == tm.HackathonID {
			return ErrDuplicate
		}
	}
	m.members[tm.ID] = *tm
	return nil
}

func (m *MemoryStore) TeamMember(_ context.Context, teamID, userID string) (TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tm := range m.members {
		if tm.TeamID == teamID && tm.UserID == userID {
			return tm, nil
		}
	}
	return TeamMember{}, ErrNotFound
}

func (m *MemoryStore) TeamMemberByID(_ context.Context, id string) (TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tm, ok := m.members[id]
	if !ok {
		return TeamMember{}, ErrNotFound
	}
	return tm, nil
}

func (m *MemoryStore) MembershipInHackathon(_ context.Context, hackathonID, userID string) (TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tm := range m.members {
		if tm.UserID == userID && tm.HackathonID == hackathonID {
			return tm, nil
		}
	}
	return TeamMember{}, ErrNotFound
}

func (m *MemoryStore) Register(_ context.Context, r *Registration) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.registrations {
		if existing.EventID == r.EventID && existing.UserID == r.UserID {
			return ErrDuplicate
		}
	}
	m.registrations[r.ID] = *r
	return nil
}

func (m *MemoryStore) Registration(_ context.Context, eventID, userID string) (Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.registrations {
		if r.EventID == eventID && r.UserID == userID {
			return r, nil
		}
	}
	return Registration{}, ErrNotFound
}

func (m *MemoryStore) RegistrationByID(_ context.Context, id string) (Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.registrations[id]
	if !ok {
		return Registration{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) CreateSchedule(_ context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = *s
	return nil
}

func (m *MemoryStore) Schedule(_ context.Context, id string) (Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListSchedules(_ context.Context, eventID string) ([]Schedule, error) {
	m.mu.RLock()
	var res []Schedule
	for _, s := range m.schedules {
		if s.EventID == eventID {
			res = append(res, s)
		}
	}
	m.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		if res[i].Day != res[j].Day {
			return res[i].Day < res[j].Day
		}
		return res[i].CheckInTime.Before(res[j].CheckInTime)
	})
	return res, nil
}

func (m *MemoryStore) UpsertRecord(_ context.Context, rec Record) (Record, error) {
	now := time.Now().UTC()
	if rec.CheckedInAt.IsZero() {
		rec.CheckedInAt = now
	}
	key := recordKey{rec.ScheduleID, rec.SubjectID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[key]; ok {
		existing.IsPresent = true
		existing.CheckedInAt = rec.CheckedInAt
		existing.CheckedInBy = rec.CheckedInBy
		existing.UpdatedAt = now
		m.records[key] = existing
		return existing, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.IsPresent = true
	rec.CreatedAt, rec.UpdatedAt = now, now
	m.records[key] = rec
	return rec, nil
}

func (m *MemoryStore) ListRecords(_ context.Context, scheduleID string) ([]Record, error) {
	m.mu.RLock()
	var res []Record
	for k, rec := range m.records {
		if k.scheduleID == scheduleID {
			res = append(res, rec)
		}
	}
	m.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].CheckedInAt.After(res[j].CheckedInAt) })
	return res, nil
}

func (m *MemoryStore) CountPresent(_ context.Context, scheduleID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k, rec := range m.records {
		if k.scheduleID == scheduleID && rec.IsPresent {
			n++
		}
	}
	return n, nil
}
