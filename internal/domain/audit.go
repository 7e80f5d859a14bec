package domain

import (
	"context"
	"time"
)

// AuditRecord описывает событие конвейера, которое сохраняется для аудита.
type AuditRecord struct {
	Event         string
	EventKey      string
	EventID       string
	DecisionID    string
	Route         Route
	Confidence    float64
	PriorityScore float64
	Metadata      map[string]any
	OccurredAt    time.Time
}

const (
	// AuditEventDuplicate фиксирует отброшенный дубликат.
	AuditEventDuplicate = "event_duplicate"
	// AuditEventRejected фиксирует событие, не прошедшее валидацию.
	AuditEventRejected = "event_rejected"
	// AuditEventDecision фиксирует решение маршрутизации.
	AuditEventDecision = "routing_decision"
	// AuditEventExecution фиксирует результат исполнения действий.
	AuditEventExecution = "actions_executed"
	// AuditEventApproval фиксирует решение оператора по ожидающему действию.
	AuditEventApproval = "action_approval"
)

// AuditSink принимает записи аудита только на добавление.
type AuditSink interface {
	Append(ctx context.Context, record AuditRecord) error
}
