package routing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"social-pipeline/internal/domain"
)

// Названия правил переопределения в метаданных решения.
const (
	RuleAmbiguity   = "ambiguity_penalty"
	RuleBoost       = "confidence_boost"
	RuleHumanReview = "force_human_review"
	RuleNoAuto      = "forbid_auto_response"
)

// Input — входные данные маршрутизации.
type Input struct {
	Event     domain.SocialEvent
	Sentiment domain.SentimentResult
	Intent    domain.IntentResult
	Priority  domain.PriorityScore
}

// Service выбирает маршрут и действия для события.
type Service struct {
	cfg   Config
	now   func() time.Time
	newID func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService создаёт сервис маршрутизации.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.QueueWait == nil {
		cfg.QueueWait = DefaultConfig().QueueWait
	}
	s := &Service{cfg: cfg, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Route принимает решение по событию. Маршрут, уверенность и набор действий
// зависят только от входных данных.
func (s *Service) Route(in Input) domain.RoutingDecision {
	base := baseConfidence(in.Sentiment, in.Intent)
	meta := domain.RoutingMetadata{PriorityScore: in.Priority.Overall}

	if s.ambiguous(in.Intent) {
		base -= s.cfg.AmbiguityPenalty
		meta.Overrides = append(meta.Overrides, domain.OverrideRecord{
			Rule:   RuleAmbiguity,
			Effect: fmt.Sprintf("-%.2f", s.cfg.AmbiguityPenalty),
			Detail: fmt.Sprintf("вторичное намерение %s близко к основному", in.Intent.Secondary.Type),
		})
	}
	base = clamp01(base)
	meta.BaseConfidence = round3(base)

	confidence := base
	author := in.Event.Author
	if s.cfg.BoostFollowers > 0 && author.Verified && author.Followers >= s.cfg.BoostFollowers {
		confidence = clamp01(confidence + s.cfg.BoostAmount)
		meta.Overrides = append(meta.Overrides, domain.OverrideRecord{
			Rule:   RuleBoost,
			Effect: fmt.Sprintf("+%.2f", s.cfg.BoostAmount),
			Detail: fmt.Sprintf("подтверждённый автор, %d подписчиков", author.Followers),
		})
	}
	confidence = round3(confidence)

	var route domain.Route
	var reasons []string
	downgraded := false
	if why, ok := s.forceHumanReview(in); ok {
		route = domain.RouteHumanReview
		reasons = append(reasons, why)
		meta.Overrides = append(meta.Overrides, domain.OverrideRecord{Rule: RuleHumanReview, Effect: string(domain.RouteHumanReview), Detail: why})
	} else {
		route = s.mapConfidence(confidence)
		reasons = append(reasons, fmt.Sprintf("уверенность %.3f → %s", confidence, route))
		if route == domain.RouteAutoResponse {
			if why, ok := s.forbidAuto(in); ok {
				route = domain.RouteSuggestion
				downgraded = true
				reasons = append(reasons, why)
				meta.Overrides = append(meta.Overrides, domain.OverrideRecord{Rule: RuleNoAuto, Effect: string(domain.RouteSuggestion), Detail: why})
			}
		}
	}

	decision := domain.RoutingDecision{
		ID:         s.newID(),
		EventKey:   in.Event.Key(),
		Route:      route,
		Confidence: confidence,
		Metadata:   meta,
		CreatedAt:  s.now().UTC(),
	}
	switch route {
	case domain.RouteAutoResponse:
		decision.Actions = s.responseActions(in, confidence, false)
	case domain.RouteSuggestion:
		decision.Actions = s.responseActions(in, confidence, true)
		decision.Approval = &domain.ApprovalRequirement{
			Required: true,
			Reason:   fmt.Sprintf("уверенность %.3f ниже порога автоответа %.2f", confidence, s.cfg.AutoResponseThreshold),
		}
		if downgraded {
			decision.Approval.Reason = "автоответ запрещён правилом"
		}
	case domain.RouteHumanReview:
		esc := s.escalation(in, reasons[0])
		decision.Escalation = &esc
		decision.Actions = s.reviewActions(in, esc, confidence)
	}
	decision.Reasoning = strings.Join(reasons, "; ")
	return decision
}

func baseConfidence(sentiment domain.SentimentResult, intent domain.IntentResult) float64 {
	return 0.6*intent.Primary.Confidence + 0.4*sentiment.Confidence
}

func (s *Service) ambiguous(intent domain.IntentResult) bool {
	if intent.Secondary == nil || s.cfg.AmbiguityMargin <= 0 {
		return false
	}
	return math.Abs(intent.Primary.Confidence-intent.Secondary.Confidence) < s.cfg.AmbiguityMargin
}

func (s *Service) mapConfidence(confidence float64) domain.Route {
	switch {
	case confidence >= s.cfg.AutoResponseThreshold:
		return domain.RouteAutoResponse
	case confidence >= s.cfg.SuggestionThreshold:
		return domain.RouteSuggestion
	default:
		return domain.RouteHumanReview
	}
}

func (s *Service) forceHumanReview(in Input) (string, bool) {
	for _, intent := range s.cfg.HumanReviewIntents {
		if in.Intent.Primary.Type == intent {
			return fmt.Sprintf("намерение %s требует проверки человеком", intent), true
		}
	}
	if s.cfg.HumanReviewCritical && in.Intent.Urgency.Level == domain.UrgencyCritical {
		return "критическая срочность", true
	}
	if s.cfg.HumanReviewPriority > 0 && in.Priority.Overall >= s.cfg.HumanReviewPriority {
		return fmt.Sprintf("приоритет %.1f не ниже %.0f", in.Priority.Overall, s.cfg.HumanReviewPriority), true
	}
	return "", false
}

func (s *Service) forbidAuto(in Input) (string, bool) {
	for _, intent := range s.cfg.NoAutoIntents {
		if in.Intent.Primary.Type == intent {
			return fmt.Sprintf("автоответ запрещён для намерения %s", intent), true
		}
	}
	platform := domain.NormalizePlatform(in.Event.Platform)
	for _, p := range s.cfg.NoAutoPlatforms {
		if domain.NormalizePlatform(p) == platform {
			return fmt.Sprintf("автоответ запрещён на платформе %s", platform), true
		}
	}
	text := strings.ToLower(in.Event.Content.Text)
	for _, kw := range s.cfg.NoAutoKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return fmt.Sprintf("автоответ запрещён: ключевое слово %q", kw), true
		}
	}
	return "", false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
