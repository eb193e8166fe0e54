package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hackhub/internal/idtoken"
	"hackhub/internal/role"
)

func TestManagementValidation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	if _, err := w.svc.CreateEvent(ctx, "  ", KindEvent, time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank name: %v", err)
	}
	if _, err := w.svc.CreateEvent(ctx, "Party", "gala", time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad kind: %v", err)
	}
	talk, err := w.svc.CreateEvent(ctx, "Talk", KindEvent, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.svc.CreateTeam(ctx, talk.ID, "Team"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("team on plain event: %v", err)
	}
	if _, err := w.svc.Register(ctx, w.hackathon.ID, w.member.ID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("registration for hackathon: %v", err)
	}
	if _, err := w.svc.Register(ctx, talk.ID, w.member.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := w.svc.Register(ctx, talk.ID, w.member.ID); !errors.Is(err, ErrDuplicate) {
		t.Errorf("double registration: %v", err)
	}

	second, _ := w.svc.CreateTeam(ctx, w.hackathon.ID, "Second")
	if _, err := w.svc.AddTeamMember(ctx, second.ID, w.member.ID); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second team in same hackathon: %v", err)
	}
	if _, err := w.svc.SetDisqualified(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("disqualify unknown team: %v", err)
	}

	if _, err := w.svc.CreateSchedule(ctx, ScheduleParams{EventID: talk.ID, Day: 0, CheckInTime: time.Now()}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("day 0: %v", err)
	}
	if _, err := w.svc.CreateSchedule(ctx, ScheduleParams{EventID: talk.ID, Day: 1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("no time: %v", err)
	}
	if _, err := w.svc.CreateSchedule(ctx, ScheduleParams{EventID: "missing", Day: 1, CheckInTime: time.Now()}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown event: %v", err)
	}
	if _, err := w.svc.ListSchedules(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("list unknown event: %v", err)
	}
}

func TestListSchedulesOrdered(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, p := range []ScheduleParams{
		{EventID: w.hackathon.ID, Day: 2, CheckInTime: base},
		{EventID: w.hackathon.ID, Day: 1, CheckInTime: base.Add(4 * time.Hour)},
		{EventID: w.hackathon.ID, Day: 1, CheckInTime: base.Add(-2 * time.Hour)},
	} {
		if _, err := w.svc.CreateSchedule(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	got, err := w.svc.ListSchedules(ctx, w.hackathon.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.Day > cur.Day || (prev.Day == cur.Day && prev.CheckInTime.After(cur.CheckInTime)) {
			t.Errorf("schedules out of order at %d: %+v then %+v", i, prev, cur)
		}
	}
}

func TestTokenFor(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	issued := time.Date(2026, 5, 2, 10, 15, 30, 750_000_000, time.FixedZone("IST", 19800))
	w.svc.now = func() time.Time { return issued }

	tok, err := w.svc.TokenFor(ctx, w.member.ID, w.hackathon.ID)
	if err != nil {
		t.Fatal(err)
	}
	p, err := w.codec.Decode(tok)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != idtoken.KindTeamMember || p.TeamID != w.team.ID || p.HackathonID != w.hackathon.ID {
		t.Errorf("payload = %+v", p)
	}
	if want := issued.UTC().Truncate(time.Second); !p.IssuedAt.Equal(want) {
		t.Errorf("IssuedAt = %v, want %v", p.IssuedAt, want)
	}

	tok, err = w.svc.TokenFor(ctx, w.member.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := w.codec.Decode(tok); p.Type != idtoken.KindUser || p.UserID != w.member.ID {
		t.Errorf("user payload = %+v", p)
	}

	if _, err := w.svc.TokenFor(ctx, w.admin.ID, w.hackathon.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("non-member: %v", err)
	}
}

func TestConcurrentMembershipsKeepOneTeamPerHackathon(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	newcomer := w.user(t, "newcomer@example.com", role.Student)

	const n = 20
	teams := make([]Team, n)
	for i := range teams {
		var err error
		if teams[i], err = w.svc.CreateTeam(ctx, w.hackathon.ID, fmt.Sprintf("team-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		joined   []TeamMember
		rejected int
	)
	for _, team := range teams {
		wg.Add(1)
		go func(teamID string) {
			defer wg.Done()
			m, err := w.svc.AddTeamMember(ctx, teamID, newcomer.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined = append(joined, m)
			case errors.Is(err, ErrDuplicate):
				rejected++
			default:
				t.Errorf("AddTeamMember: %v", err)
			}
		}(team.ID)
	}
	wg.Wait()

	if len(joined) != 1 || rejected != n-1 {
		t.Fatalf("joined %d, rejected %d; want 1 and %d", len(joined), rejected, n-1)
	}
	if joined[0].HackathonID != w.hackathon.ID {
		t.Errorf("HackathonID = %q, want %q", joined[0].HackathonID, w.hackathon.ID)
	}
	got, err := w.store.MembershipInHackathon(ctx, w.hackathon.ID, newcomer.ID)
	if err != nil || got.ID != joined[0].ID {
		t.Errorf("MembershipInHackathon = %+v, %v; want %s", got, err, joined[0].ID)
	}
}
