package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-pipeline/internal/domain"
)

// RedisPendingStore хранит ожидающие одобрения действия с ограниченным сроком жизни.
type RedisPendingStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ domain.PendingStore = (*RedisPendingStore)(nil)

// NewRedisPendingStore создаёт хранилище.
func NewRedisPendingStore(client *redis.Client, prefix string, ttl time.Duration) *RedisPendingStore {
	if prefix == "" {
		prefix = "pending"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPendingStore{client: client, prefix: prefix, ttl: ttl}
}

// Save сохраняет действие под его токеном.
func (s *RedisPendingStore) Save(ctx context.Context, pending domain.PendingApproval) error {
	if pending.Token == "" {
		return errors.New("пустой токен ожидающего действия")
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending: %w", err)
	}
	if err := s.client.Set(ctx, s.key(pending.Token), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("сохранение ожидающего действия: %w", err)
	}
	return nil
}

// Take атомарно извлекает и удаляет действие, повторное извлечение невозможно.
func (s *RedisPendingStore) Take(ctx context.Context, token string) (domain.PendingApproval, error) {
	data, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PendingApproval{}, domain.ErrPendingNotFound
	}
	if err != nil {
		return domain.PendingApproval{}, fmt.Errorf("чтение ожидающего действия: %w", err)
	}
	var pending domain.PendingApproval
	if err := json.Unmarshal(data, &pending); err != nil {
		return domain.PendingApproval{}, fmt.Errorf("decode pending: %w", err)
	}
	return pending, nil
}

func (s *RedisPendingStore) key(token string) string {
	return s.prefix + ":" + token
}
