package attendance

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"hackhub/internal/account"
	"hackhub/internal/idtoken"
	"hackhub/internal/queue"
	"hackhub/internal/role"
	"hackhub/internal/store"
)

// postgresWorld mirrors world on a live database. Tests using it skip unless DATABASE_URL
// is set. Every run uses fresh ids so the database can be shared.
type postgresWorld struct {
	repo  *Repository
	users *account.Repository
	codec *idtoken.Codec
	svc   *Service

	admin, master, member account.User
	hackathon            Event
	team                 Team
	tm                   TeamMember
	schedule             Schedule
}

func newPostgresWorld(t *testing.T) *postgresWorld {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	w := &postgresWorld{
		repo:  NewRepository(db.Client),
		users: account.NewRepository(db.Client),
		codec: idtoken.NewCodec("qr-key", 0),
	}
	w.svc = NewService(w.repo, w.users, w.codec, queue.NewInMemory(256))
	w.admin = w.user(t, role.Admin)
	w.master = w.user(t, role.Master)
	w.member = w.user(t, role.Student)

	if w.hackathon, err = w.svc.CreateEvent(ctx, "PG Hack", KindHackathon, time.Now()); err != nil {
		t.Fatal(err)
	}
	if w.team, err = w.svc.CreateTeam(ctx, w.hackathon.ID, "Elephants"); err != nil {
		t.Fatal(err)
	}
	if w.tm, err = w.svc.AddTeamMember(ctx, w.team.ID, w.member.ID); err != nil {
		t.Fatal(err)
	}
	if w.schedule, err = w.svc.CreateSchedule(ctx, ScheduleParams{EventID: w.hackathon.ID, Day: 1, CheckInTime: time.Now()}); err != nil {
		t.Fatal(err)
	}
	return w
}

func (w *postgresWorld) user(t *testing.T, r role.Role) account.User {
	t.Helper()
	u := account.User{Name: "PG " + string(r), Email: uuid.NewString() + "@example.com", Role: r}
	if err := w.users.Create(context.Background(), &u); err != nil {
		t.Fatal(err)
	}
	return u
}

func (w *postgresWorld) memberToken(t *testing.T) string {
	t.Helper()
	tok, err := w.codec.Encode(idtoken.Payload{Type: idtoken.KindTeamMember, UserID: w.member.ID, TeamID: w.team.ID, HackathonID: w.hackathon.ID})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestRepositoryMarkIsIdempotent(t *testing.T) {
	w := newPostgresWorld(t)
	ctx := context.Background()
	tok := w.memberToken(t)

	first, err := w.svc.Mark(ctx, MarkRequest{Token: tok, ScheduleID: w.schedule.ID, OperatorID: w.admin.ID})
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}
	later := time.Now().Add(time.Minute).UTC().Truncate(time.Microsecond)
	w.svc.now = func() time.Time { return later }
	second, err := w.svc.Mark(ctx, MarkRequest{Token: tok, ScheduleID: w.schedule.ID, OperatorID: w.master.ID})
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}

	if second.Record.ID != first.Record.ID {
		t.Errorf("record id changed: %s -> %s", first.Record.ID, second.Record.ID)
	}
	if second.Record.CheckedInBy != w.master.ID || !second.Record.CheckedInAt.Equal(later) {
		t.Errorf("record not refreshed: %+v", second.Record)
	}
	records, err := w.repo.ListRecords(ctx, w.schedule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].SubjectID != w.tm.ID || records[0].SubjectKind != SubjectTeamMember {
		t.Errorf("records = %+v, want one for %s", records, w.tm.ID)
	}
}

func TestRepositoryConcurrentMarksKeepOneRecord(t *testing.T) {
	w := newPostgresWorld(t)
	ctx := context.Background()
	tok := w.memberToken(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op := w.admin.ID
			if i%2 == 1 {
				op = w.master.ID
			}
			if _, err := w.svc.Mark(ctx, MarkRequest{Token: tok, ScheduleID: w.schedule.ID, OperatorID: op}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent mark: %v", err)
	}

	count, err := w.repo.CountPresent(ctx, w.schedule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("CountPresent = %d, want 1", count)
	}
}

func TestRepositoryOneTeamPerHackathon(t *testing.T) {
	w := newPostgresWorld(t)
	ctx := context.Background()

	second, err := w.svc.CreateTeam(ctx, w.hackathon.ID, "Second")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.repo.AddTeamMember(ctx, &TeamMember{TeamID: second.ID, UserID: w.member.ID}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second team in hackathon: err = %v, want ErrDuplicate", err)
	}
	if err := w.repo.AddTeamMember(ctx, &TeamMember{TeamID: "missing-team", UserID: w.member.ID}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown team: err = %v, want ErrNotFound", err)
	}

	got, err := w.repo.MembershipInHackathon(ctx, w.hackathon.ID, w.member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != w.tm.ID || got.HackathonID != w.hackathon.ID {
		t.Errorf("membership = %+v, want %+v", got, w.tm)
	}
}

func TestRepositoryNotFound(t *testing.T) {
	w := newPostgresWorld(t)
	ctx := context.Background()

	if _, err := w.repo.Event(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Event: %v", err)
	}
	if _, err := w.repo.Schedule(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Schedule: %v", err)
	}
	if _, err := w.repo.TeamMemberByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TeamMemberByID: %v", err)
	}
	if err := w.repo.SetDisqualified(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetDisqualified: %v", err)
	}
}
