package domain

import (
	"context"
	"errors"
	"time"
)

// ErrPendingNotFound возвращается, если ожидающее действие не найдено или истекло.
var ErrPendingNotFound = errors.New("ожидающее действие не найдено")

// EventJobSource описывает источник задачи на обработку события.
type EventJobSource string

const (
	// EventSourceAPI — событие пришло через HTTP API.
	EventSourceAPI EventJobSource = "api"
	// EventSourceCollector — событие собрано из Telegram через MTProto.
	EventSourceCollector EventJobSource = "collector"
	// EventSourceWebhook — событие прислала платформа вебхуком.
	EventSourceWebhook EventJobSource = "webhook"
)

// EventJob содержит событие и результаты его анализа.
type EventJob struct {
	ID         string           `json:"job_id,omitempty"`
	Event      SocialEvent      `json:"event"`
	Sentiment  *SentimentResult `json:"sentiment,omitempty"`
	Intent     *IntentResult    `json:"intent,omitempty"`
	Brand      BrandContext     `json:"brand"`
	Source     EventJobSource   `json:"source"`
	ReceivedAt time.Time        `json:"received_at"`
	Attempts   int              `json:"attempts,omitempty"`
}

// Analyzed сообщает, пришла ли задача с готовым анализом.
func (j EventJob) Analyzed() bool {
	return j.Sentiment != nil && j.Intent != nil
}

// EventQueue описывает очередь задач на обработку событий.
type EventQueue interface {
	Enqueue(ctx context.Context, job EventJob) error
	Receive(ctx context.Context) (EventJob, AckFunc, error)
}

// AckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type AckFunc func(success bool) error
