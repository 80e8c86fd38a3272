package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"meeting-scheduler/internal/availability"
)

// CachedGateway keeps successful busy-interval lookups in Redis for a short TTL.
// Redis failures fall through to the wrapped gateway; provider errors are never cached.
type CachedGateway struct {
	next   Gateway
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCachedGateway(next Gateway, rdb *redis.Client, ttl time.Duration, prefix string, logger *slog.Logger) *CachedGateway {
	if ttl <= 0 {
		ttl = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "busy"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGateway{next: next, rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

func (c *CachedGateway) FetchBusyIntervals(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]availability.Interval, error) {
	key := c.key(hostID, rangeStart, rangeEnd)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []availability.Interval
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.logger.WarnContext(ctx, "discarding malformed busy cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WarnContext(ctx, "busy cache read failed", "host_id", hostID, "err", err)
	}

	busy, err := c.next.FetchBusyIntervals(ctx, hostID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(busy); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "busy cache write failed", "host_id", hostID, "err", err)
		}
	}
	return busy, nil
}

// CreateEvent writes through and drops every cached range for the host.
func (c *CachedGateway) CreateEvent(ctx context.Context, hostID string, ev Event) (string, error) {
	id, err := c.next.CreateEvent(ctx, hostID, ev)
	if err != nil {
		return "", err
	}
	if err := c.Invalidate(ctx, hostID); err != nil {
		c.logger.WarnContext(ctx, "busy cache invalidation failed", "host_id", hostID, "err", err)
	}
	return id, nil
}

// DeleteEvent frees the event's time, so cached ranges for the host are dropped.
func (c *CachedGateway) DeleteEvent(ctx context.Context, hostID, eventID string) error {
	if err := c.next.DeleteEvent(ctx, hostID, eventID); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, hostID); err != nil {
		c.logger.WarnContext(ctx, "busy cache invalidation failed", "host_id", hostID, "err", err)
	}
	return nil
}

func (c *CachedGateway) Invalidate(ctx context.Context, hostID string) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+":"+hostID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *CachedGateway) key(hostID string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%d:%d", c.prefix, hostID, start.Unix(), end.Unix())
}

// RedisReadyCheck pings Redis for /readyz.
func RedisReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
