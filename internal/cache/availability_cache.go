package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wellspring/booking-core/internal/calendar"
)

const keyPrefix = "booking-core:availability"

// AvailabilityCache keeps computed weeks for a short TTL. Each service has an
// index set of its keys so a booking can drop them all at once.
type AvailabilityCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewAvailabilityCache(rdb redis.Cmdable, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, ttl: ttl}
}

// WeekKey identifies one computed week. asOf is the minute the week was
// computed at, since past-time filtering depends on it.
func WeekKey(serviceID string, windowStart, asOf time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, serviceID,
		windowStart.Format("2006-01-02"), asOf.Format("2006-01-02T15:04"))
}

func indexKey(serviceID string) string {
	return fmt.Sprintf("%s:%s:keys", keyPrefix, serviceID)
}

// Get returns the cached week; ok is false on a miss.
func (c *AvailabilityCache) Get(ctx context.Context, key string) (week calendar.Week, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return calendar.Week{}, false, nil
	}
	if err != nil {
		return calendar.Week{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &week); err != nil {
		return calendar.Week{}, false, fmt.Errorf("decode cached week: %w", err)
	}
	return week, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, serviceID, key string, week calendar.Week) error {
	raw, err := json.Marshal(week)
	if err != nil {
		return fmt.Errorf("encode week: %w", err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	idx := indexKey(serviceID)
	if err := c.rdb.SAdd(ctx, idx, key).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", idx, err)
	}
	// The index outlives its members by one TTL at most.
	if err := c.rdb.Expire(ctx, idx, 2*c.ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %s: %w", idx, err)
	}
	return nil
}

// Invalidate drops every cached week of serviceID.
func (c *AvailabilityCache) Invalidate(ctx context.Context, serviceID string) error {
	idx := indexKey(serviceID)
	keys, err := c.rdb.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("redis smembers %s: %w", idx, err)
	}
	keys = append(keys, idx)
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
