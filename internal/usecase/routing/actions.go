package routing

import (
	"fmt"

	"social-pipeline/internal/domain"
)

// responseActions собирает действия для auto-response и suggestion.
// Для suggestion каждое действие требует одобрения оператора.
func (s *Service) responseActions(in Input, confidence float64, needsApproval bool) []domain.Action {
	priority := actionPriority(in.Priority.Overall)
	var actions []domain.Action
	add := func(p domain.ActionParams, prio domain.ActionPriority) {
		actions = append(actions, domain.Action{
			ID:               s.newID(),
			Type:             p.ActionType(),
			Priority:         prio,
			Confidence:       confidence,
			Automated:        true,
			RequiresApproval: needsApproval,
			Params:           p,
		})
	}

	intent := in.Intent.Primary.Type
	if intent == domain.IntentSpam {
		add(domain.SuppressParams{Reason: "спам"}, domain.ActionPriorityLow)
		return actions
	}

	add(domain.RespondParams{
		Tone:      responseTone(in.Sentiment, intent),
		MaxLength: in.Event.Profile().MaxReplyLength,
		ReplyToID: in.Event.NativeID,
		UseAI:     true,
	}, priority)

	switch intent {
	case domain.IntentPurchaseInquiry:
		add(domain.CreateParams{Record: "lead", Source: string(domain.NormalizePlatform(in.Event.Platform))}, priority)
	case domain.IntentPartnership:
		add(domain.CreateParams{Record: "partnership", Source: string(domain.NormalizePlatform(in.Event.Platform))}, priority)
	case domain.IntentPraise:
		add(domain.EngageParams{Kind: "like"}, domain.ActionPriorityLow)
	}

	if in.Priority.Rules.AutoEscalate {
		add(domain.EscalateParams{
			Team:   teamFor(intent),
			Reason: fmt.Sprintf("приоритет %.1f", in.Priority.Overall),
			Level:  s.escalationLevel(in),
		}, domain.ActionPriorityHigh)
	}
	if in.Priority.Components.Reach >= s.cfg.HighReach {
		add(domain.MonitorParams{Window: s.cfg.MonitorWindow, Keywords: in.Intent.Topics}, domain.ActionPriorityLow)
	}
	return actions
}

// reviewActions собирает действия для human-review: передача человеку и наблюдение, без автоматики.
func (s *Service) reviewActions(in Input, esc domain.EscalationInfo, confidence float64) []domain.Action {
	return []domain.Action{
		{
			ID:         s.newID(),
			Type:       domain.ActionEscalate,
			Priority:   escalationPriority(esc.Level),
			Confidence: confidence,
			Params:     domain.EscalateParams{Team: esc.Team, Reason: esc.Reason, Level: esc.Level},
		},
		{
			ID:         s.newID(),
			Type:       domain.ActionMonitor,
			Priority:   domain.ActionPriorityLow,
			Confidence: confidence,
			Params:     domain.MonitorParams{Window: s.cfg.MonitorWindow, Keywords: in.Intent.Topics},
		},
	}
}

func (s *Service) escalation(in Input, reason string) domain.EscalationInfo {
	level := s.escalationLevel(in)
	return domain.EscalationInfo{
		Level:     level,
		Team:      teamFor(in.Intent.Primary.Type),
		Reason:    reason,
		QueueWait: s.cfg.QueueWait[level],
	}
}

func (s *Service) escalationLevel(in Input) domain.EscalationLevel {
	switch {
	case in.Intent.Urgency.Level == domain.UrgencyCritical,
		s.cfg.HumanReviewPriority > 0 && in.Priority.Overall >= s.cfg.HumanReviewPriority:
		return domain.EscalationUrgent
	case in.Priority.Rules.AutoEscalate,
		in.Intent.Urgency.Level == domain.UrgencyHigh,
		in.Sentiment.Label == domain.SentimentNegative:
		return domain.EscalationHigh
	default:
		return domain.EscalationNormal
	}
}

func teamFor(intent domain.IntentType) string {
	switch intent {
	case domain.IntentComplaint, domain.IntentSupportRequest:
		return "support"
	case domain.IntentPurchaseInquiry, domain.IntentPartnership:
		return "sales"
	case domain.IntentSpam:
		return "moderation"
	default:
		return "community"
	}
}

func responseTone(sentiment domain.SentimentResult, intent domain.IntentType) string {
	switch {
	case sentiment.Label == domain.SentimentNegative:
		return "empathetic"
	case intent == domain.IntentPurchaseInquiry || intent == domain.IntentPartnership:
		return "helpful"
	case sentiment.Label == domain.SentimentPositive:
		return "friendly"
	default:
		return "neutral"
	}
}

func actionPriority(overall float64) domain.ActionPriority {
	switch {
	case overall >= 80:
		return domain.ActionPriorityCritical
	case overall >= 60:
		return domain.ActionPriorityHigh
	case overall >= 40:
		return domain.ActionPriorityMedium
	default:
		return domain.ActionPriorityLow
	}
}

func escalationPriority(level domain.EscalationLevel) domain.ActionPriority {
	switch level {
	case domain.EscalationUrgent:
		return domain.ActionPriorityCritical
	case domain.EscalationHigh:
		return domain.ActionPriorityHigh
	default:
		return domain.ActionPriorityMedium
	}
}
