package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type marked struct {
	ScheduleID string `json:"schedule_id"`
}

func roundTrip(t *testing.T, q Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := NewMessage("attendance.marked", marked{ScheduleID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-msgs:
		if got.Type != "attendance.marked" {
			t.Errorf("type = %q", got.Type)
		}
		var body marked
		if err := got.Decode(&body); err != nil || body.ScheduleID != "s1" {
			t.Errorf("body = %+v, err = %v", body, err)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemory(t *testing.T) {
	roundTrip(t, NewInMemory(4))
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "test:queue")
	q.timeout = 100 * time.Millisecond
	roundTrip(t, q)
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, _ := NewInMemory(1).Consume(ctx)
	cancel()
	select {
	case _, ok := <-msgs:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
