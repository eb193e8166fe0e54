package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hackhub/internal/logging"
	"hackhub/internal/metrics"
	"hackhub/internal/queue"
)

// ErrCacheMiss is returned by a SummaryCache that holds nothing for a schedule.
var ErrCacheMiss = errors.New("attendance: summary not cached")

// Summary is the present count of one schedule.
type Summary struct {
	ScheduleID string    `json:"schedule_id"`
	Present    int       `json:"present"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SummaryCache stores computed summaries.
type SummaryCache interface {
	Get(ctx context.Context, scheduleID string) (Summary, error)
	Set(ctx context.Context, s Summary) error
}

var _ SummaryCache = (*RedisSummaryCache)(nil)

// RedisSummaryCache keeps summaries as JSON strings under prefix:summary:<scheduleID>.
type RedisSummaryCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSummaryCache creates a cache whose entries expire after ttl.
func NewRedisSummaryCache(client *redis.Client, prefix string, ttl time.Duration) *RedisSummaryCache {
	if prefix == "" {
		prefix = "hackhub"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSummaryCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisSummaryCache) key(scheduleID string) string {
	return c.prefix + ":summary:" + scheduleID
}

func (c *RedisSummaryCache) Get(ctx context.Context, scheduleID string) (Summary, error) {
	raw, err := c.client.Get(ctx, c.key(scheduleID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Summary{}, ErrCacheMiss
		}
		return Summary{}, err
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, ErrCacheMiss
	}
	return s, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, s Summary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(s.ScheduleID), raw, c.ttl).Err()
}

// Summaries serves schedule summaries from the cache, filling it on a miss. A nil cache
// computes every summary from the store.
type Summaries struct {
	store Store
	cache SummaryCache
	now   func() time.Time
}

// NewSummaries creates a summary reader. cache may be nil.
func NewSummaries(store Store, cache SummaryCache) *Summaries {
	return &Summaries{store: store, cache: cache, now: time.Now}
}

// Get returns the schedule's summary. Cache failures fall back to the store.
func (s *Summaries) Get(ctx context.Context, scheduleID string) (Summary, error) {
	if s.cache != nil {
		sum, err := s.cache.Get(ctx, scheduleID)
		if err == nil {
			return sum, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			logging.FromContext(ctx).Warn("summary cache read failed", "schedule_id", scheduleID, "error", err)
		}
	}
	return s.Refresh(ctx, scheduleID)
}

// Refresh recomputes the summary from the store and caches it.
func (s *Summaries) Refresh(ctx context.Context, scheduleID string) (Summary, error) {
	if _, err := s.store.Schedule(ctx, scheduleID); err != nil {
		return Summary{}, err
	}
	n, err := s.store.CountPresent(ctx, scheduleID)
	if err != nil {
		return Summary{}, fmt.Errorf("count present: %w", err)
	}
	sum := Summary{ScheduleID: scheduleID, Present: n, UpdatedAt: s.now().UTC()}
	if s.cache != nil {
		if err := s.cache.Set(ctx, sum); err != nil {
			logging.FromContext(ctx).Warn("summary cache write failed", "schedule_id", scheduleID, "error", err)
		}
	}
	return sum, nil
}

// HandleMessage refreshes the summary named by an attendance.marked message. Other message
// types are ignored.
func (s *Summaries) HandleMessage(ctx context.Context, msg queue.Message) error {
	if msg.Type != MessageMarked {
		return nil
	}
	var body Marked
	if err := msg.Decode(&body); err != nil {
		metrics.SummaryRefreshes.WithLabelValues("bad_message").Inc()
		return fmt.Errorf("decode %s: %w", MessageMarked, err)
	}
	if body.ScheduleID == "" {
		metrics.SummaryRefreshes.WithLabelValues("bad_message").Inc()
		return fmt.Errorf("%s without schedule id", MessageMarked)
	}
	if _, err := s.Refresh(ctx, body.ScheduleID); err != nil {
		metrics.SummaryRefreshes.WithLabelValues("error").Inc()
		return err
	}
	metrics.SummaryRefreshes.WithLabelValues("ok").Inc()
	return nil
}
