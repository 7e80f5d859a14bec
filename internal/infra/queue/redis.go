package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

// RedisEventQueue реализует очередь задач на базе Redis lists.
// Взятые задачи лежат в списке обработки до подтверждения.
type RedisEventQueue struct {
	client          *redis.Client
	key             string
	processing      string
	maxRedeliveries int
}

var _ domain.EventQueue = (*RedisEventQueue)(nil)

// NewRedisEventQueue создаёт очередь по указанному ключу.
func NewRedisEventQueue(client *redis.Client, key string, maxRedeliveries int) *RedisEventQueue {
	return &RedisEventQueue{
		client:          client,
		key:             key,
		processing:      key + ":processing",
		maxRedeliveries: maxRedeliveries,
	}
}

// Enqueue публикует задачу в очередь.
func (q *RedisEventQueue) Enqueue(ctx context.Context, job domain.EventJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе забирает задачу и переносит её в список обработки.
func (q *RedisEventQueue) Receive(ctx context.Context) (domain.EventJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.EventJob{}, nil, err
		}
		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.EventJob{}, nil, ctx.Err()
				}
				continue
			}
			return domain.EventJob{}, nil, err
		}
		var job domain.EventJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			_ = q.client.LRem(context.WithoutCancel(ctx), q.processing, 1, raw).Err()
			metrics.IncRedelivery(q.key, "dropped")
			return domain.EventJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, q.ackFunc(raw, job), nil
	}
}

func (q *RedisEventQueue) ackFunc(raw string, job domain.EventJob) domain.AckFunc {
	return func(success bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if success {
			return q.client.LRem(ctx, q.processing, 1, raw).Err()
		}
		if job.Attempts >= q.maxRedeliveries {
			metrics.IncRedelivery(q.key, "dropped")
			return q.client.LRem(ctx, q.processing, 1, raw).Err()
		}
		job.Attempts++
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LRem(ctx, q.processing, 1, raw)
			p.LPush(ctx, q.key, payload)
			return nil
		})
		if err != nil {
			return fmt.Errorf("requeue job: %w", err)
		}
		metrics.IncRedelivery(q.key, "requeued")
		return nil
	}
}

// Pending возвращает число задач в очереди и в обработке.
func (q *RedisEventQueue) Pending(ctx context.Context) (queued, inFlight int64, err error) {
	queued, err = q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, 0, err
	}
	inFlight, err = q.client.LLen(ctx, q.processing).Result()
	return queued, inFlight, err
}
