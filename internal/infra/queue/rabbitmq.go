package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

// RabbitEventQueue реализует очередь задач через AMQP.
type RabbitEventQueue struct {
	conn            *amqp.Connection
	ch              *amqp.Channel
	queue           string
	maxRedeliveries int

	publishMu  sync.Mutex
	consumeMu  sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.EventQueue = (*RabbitEventQueue)(nil)

// NewRabbitEventQueue подключается к брокеру и объявляет устойчивую очередь.
func NewRabbitEventQueue(amqpURL, queue string, prefetch, maxRedeliveries int) (*RabbitEventQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}
	return &RabbitEventQueue{conn: conn, ch: ch, queue: queue, maxRedeliveries: maxRedeliveries}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitEventQueue) Enqueue(ctx context.Context, job domain.EventJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	q.publishMu.Lock()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    start,
		Body:         payload,
	})
	q.publishMu.Unlock()
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RabbitEventQueue) Receive(ctx context.Context) (domain.EventJob, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.EventJob{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.EventJob{}, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.EventJob{}, nil, errors.New("amqp: канал доставки закрыт")
		}
		var job domain.EventJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Nack(false, false)
			metrics.IncRedelivery(q.queue, "dropped")
			return domain.EventJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, q.ackFunc(d, job), nil
	}
}

func (q *RabbitEventQueue) consume() (<-chan amqp.Delivery, error) {
	q.consumeMu.Lock()
	defer q.consumeMu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// ackFunc при неуспехе публикует копию с увеличенным счётчиком попыток,
// пока их число не превысит maxRedeliveries.
func (q *RabbitEventQueue) ackFunc(d amqp.Delivery, job domain.EventJob) domain.AckFunc {
	return func(success bool) error {
		if success {
			return d.Ack(false)
		}
		if job.Attempts >= q.maxRedeliveries {
			metrics.IncRedelivery(q.queue, "dropped")
			return d.Nack(false, false)
		}
		job.Attempts++
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.Enqueue(ctx, job); err != nil {
			_ = d.Nack(false, true)
			return err
		}
		metrics.IncRedelivery(q.queue, "requeued")
		return d.Ack(false)
	}
}

// Close закрывает канал и соединение.
func (q *RabbitEventQueue) Close() error {
	chErr := q.ch.Close()
	connErr := q.conn.Close()
	return errors.Join(chErr, connErr)
}
