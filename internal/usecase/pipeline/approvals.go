package pipeline

import (
	"context"
	"errors"
	"fmt"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
	"social-pipeline/internal/usecase/execution"
)

// ErrApprovalsDisabled возвращается, если хранилище ожидающих действий не настроено.
var ErrApprovalsDisabled = errors.New("одобрение действий не настроено")

// Approve исполняет ожидающее действие с отметкой оператора.
func (s *Service) Approve(ctx context.Context, token, operator string) (domain.ActionExecutionResult, error) {
	pending, err := s.take(ctx, token)
	if err != nil {
		return domain.ActionExecutionResult{}, err
	}
	action := pending.Action.Approve(operator)
	req := execution.Request{
		Decision: pending.Decision,
		Event:    pending.Job.Event,
		EventID:  pending.EventID,
		Brand:    pending.Job.Brand,
	}
	if pending.Job.Sentiment != nil {
		req.Sentiment = *pending.Job.Sentiment
	}
	if pending.Job.Intent != nil {
		req.Intent = *pending.Job.Intent
	}
	res := s.deps.Executor.ExecuteAction(ctx, req, action)
	s.saveResults(ctx, []domain.ActionExecutionResult{res})

	s.stats.recordApproval(true)
	metrics.IncApproval("approved")
	s.audit(ctx, domain.AuditRecord{
		Event:      domain.AuditEventApproval,
		EventKey:   pending.Job.Event.Key(),
		EventID:    pending.EventID,
		DecisionID: pending.Decision.ID,
		Route:      pending.Decision.Route,
		Confidence: pending.Decision.Confidence,
		Metadata: map[string]any{
			"decision":    "approved",
			"operator":    operator,
			"action_id":   action.ID,
			"action_type": string(action.Type),
			"status":      string(res.Status),
		},
	})
	return res, nil
}

// Reject отклоняет ожидающее действие без исполнения.
func (s *Service) Reject(ctx context.Context, token, operator string) (domain.PendingApproval, error) {
	pending, err := s.take(ctx, token)
	if err != nil {
		return domain.PendingApproval{}, err
	}
	s.stats.recordApproval(false)
	metrics.IncApproval("rejected")
	s.audit(ctx, domain.AuditRecord{
		Event:      domain.AuditEventApproval,
		EventKey:   pending.Job.Event.Key(),
		EventID:    pending.EventID,
		DecisionID: pending.Decision.ID,
		Route:      pending.Decision.Route,
		Confidence: pending.Decision.Confidence,
		Metadata: map[string]any{
			"decision":    "rejected",
			"operator":    operator,
			"action_id":   pending.Action.ID,
			"action_type": string(pending.Action.Type),
		},
	})
	return pending, nil
}

func (s *Service) take(ctx context.Context, token string) (domain.PendingApproval, error) {
	if s.deps.Pending == nil {
		return domain.PendingApproval{}, ErrApprovalsDisabled
	}
	pending, err := s.deps.Pending.Take(ctx, token)
	if err != nil {
		return domain.PendingApproval{}, fmt.Errorf("получение ожидающего действия: %w", err)
	}
	return pending, nil
}
