package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"social-pipeline/internal/domain"
	httpinfra "social-pipeline/internal/infra/http"
	"social-pipeline/internal/infra/metrics"
)

// Config задаёт подписчиков и политику повторов.
type Config struct {
	URLs            []string
	Secret          string
	Timeout         time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// Dispatcher рассылает события всем подписчикам параллельно
// и повторяет неудачные доставки с экспоненциальной задержкой.
type Dispatcher struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

var _ domain.WebhookDispatcher = (*Dispatcher)(nil)

// NewDispatcher создаёт рассыльщик.
func NewDispatcher(cfg Config, log zerolog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 10 * time.Second
	}
	return &Dispatcher{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, log: log}
}

// Dispatch доставляет событие и возвращает итог по каждому подписчику в порядке конфигурации.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.WebhookEvent) []domain.WebhookDelivery {
	if len(d.cfg.URLs) == 0 {
		return nil
	}
	deliveries := make([]domain.WebhookDelivery, len(d.cfg.URLs))
	body, err := json.Marshal(event)
	if err != nil {
		for i, url := range d.cfg.URLs {
			deliveries[i] = domain.WebhookDelivery{URL: url, Error: fmt.Sprintf("marshal event: %v", err)}
		}
		return deliveries
	}
	var g errgroup.Group
	for i, url := range d.cfg.URLs {
		g.Go(func() error {
			deliveries[i] = d.deliver(ctx, url, event.Type, body)
			return nil
		})
	}
	_ = g.Wait()
	return deliveries
}

func (d *Dispatcher) deliver(ctx context.Context, url, eventType string, body []byte) domain.WebhookDelivery {
	delivery := domain.WebhookDelivery{URL: url}
	deliveryID := uuid.NewString()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.InitialInterval
	policy.MaxElapsedTime = d.cfg.MaxElapsed
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, d.cfg.MaxRetries), ctx)

	start := time.Now()
	err := backoff.Retry(func() error {
		delivery.Attempts++
		code, err := d.post(ctx, url, eventType, deliveryID, body)
		delivery.StatusCode = code
		if err != nil && code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}, retry)
	metrics.ObserveNetworkRequest("webhook", eventType, "subscriber", start, err)
	if err != nil {
		delivery.Error = err.Error()
		d.log.Warn().Err(err).Str("url", url).Int("attempts", delivery.Attempts).Msg("вебхук не доставлен")
		return delivery
	}
	delivery.Delivered = true
	return delivery
}

func (d *Dispatcher) post(ctx context.Context, url, eventType, deliveryID string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", eventType)
	req.Header.Set("X-Delivery-ID", deliveryID)
	if d.cfg.Secret != "" {
		req.Header.Set(httpinfra.SignatureHeader, httpinfra.Sign(d.cfg.Secret, body))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
