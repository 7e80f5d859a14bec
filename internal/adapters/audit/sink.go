package audit

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
)

// LogSink пишет записи аудита в структурированный лог.
type LogSink struct {
	log zerolog.Logger
}

var _ domain.AuditSink = LogSink{}

// NewLogSink создаёт журнал аудита поверх zerolog.
func NewLogSink(log zerolog.Logger) LogSink {
	return LogSink{log: log.With().Str("component", "audit").Logger()}
}

// Append пишет запись уровнем info.
func (s LogSink) Append(_ context.Context, r domain.AuditRecord) error {
	ev := s.log.Info().
		Str("audit_event", r.Event).
		Str("event_key", r.EventKey).
		Time("occurred_at", r.OccurredAt)
	if r.EventID != "" {
		ev = ev.Str("event_id", r.EventID)
	}
	if r.DecisionID != "" {
		ev = ev.Str("decision_id", r.DecisionID).Str("route", string(r.Route)).Float64("confidence", r.Confidence)
	}
	if r.PriorityScore > 0 {
		ev = ev.Float64("priority", r.PriorityScore)
	}
	if len(r.Metadata) > 0 {
		ev = ev.Interface("metadata", r.Metadata)
	}
	ev.Msg("аудит")
	return nil
}

// Multi отправляет запись во все журналы и объединяет ошибки.
type Multi []domain.AuditSink

// Append пишет запись в каждый журнал.
func (m Multi) Append(ctx context.Context, r domain.AuditRecord) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Append(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
