package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-pipeline/internal/domain"
)

// Limit — ограничение частоты для вида действия. Ноль означает отсутствие ограничения.
type Limit struct {
	PerHour int
	PerDay  int
}

// RedisRateLimiter считает действия в часовых и суточных окнах в Redis,
// чтобы лимиты разделялись между всеми воркерами.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limits map[domain.ActionType]Limit
	now    func() time.Time
}

var _ domain.RateLimiter = (*RedisRateLimiter)(nil)

// NewRedisRateLimiter создаёт лимитер. now может быть nil.
func NewRedisRateLimiter(client *redis.Client, prefix string, limits map[domain.ActionType]Limit, now func() time.Time) *RedisRateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisRateLimiter{client: client, prefix: prefix, limits: limits, now: now}
}

// Allow резервирует слот. Если хотя бы одно окно переполнено, резерв откатывается.
func (l *RedisRateLimiter) Allow(ctx context.Context, actionType domain.ActionType) (bool, error) {
	limit, ok := l.limits[actionType]
	if !ok || (limit.PerHour <= 0 && limit.PerDay <= 0) {
		return true, nil
	}
	now := l.now().UTC()
	hourKey := fmt.Sprintf("%s:%s:h:%d", l.prefix, actionType, now.Unix()/3600)
	dayKey := fmt.Sprintf("%s:%s:d:%d", l.prefix, actionType, now.Unix()/86400)

	var hourCount, dayCount *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		hourCount = p.Incr(ctx, hourKey)
		p.Expire(ctx, hourKey, time.Hour+time.Minute)
		dayCount = p.Incr(ctx, dayKey)
		p.Expire(ctx, dayKey, 24*time.Hour+time.Minute)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis лимит %s: %w", actionType, err)
	}
	exceeded := (limit.PerHour > 0 && hourCount.Val() > int64(limit.PerHour)) ||
		(limit.PerDay > 0 && dayCount.Val() > int64(limit.PerDay))
	if !exceeded {
		return true, nil
	}
	_, err = l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Decr(ctx, hourKey)
		p.Decr(ctx, dayKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis откат лимита %s: %w", actionType, err)
	}
	return false, nil
}
