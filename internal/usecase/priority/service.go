package priority

import (
	"fmt"
	"math"
	"strings"
	"time"

	"social-pipeline/internal/domain"
)

// Input — входные данные расчёта приоритета.
type Input struct {
	Event     domain.SocialEvent
	Sentiment domain.SentimentResult
	Intent    domain.IntentResult
	Brand     domain.BrandContext
	// Now используется для понижения срочности устаревших событий; нулевое значение отключает понижение.
	Now time.Time
}

// Service вычисляет оценку приоритета. Не хранит изменяемого состояния.
type Service struct {
	cfg Config
}

// NewService создаёт сервис расчёта приоритета.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	def := DefaultConfig()
	if cfg.Urgency == nil {
		cfg.Urgency = def.Urgency
	}
	if cfg.IntentMultipliers == nil {
		cfg.IntentMultipliers = def.IntentMultipliers
	}
	if cfg.CrisisKeywords == nil {
		cfg.CrisisKeywords = def.CrisisKeywords
	}
	return &Service{cfg: cfg}, nil
}

// Threshold возвращает порог автоматической эскалации.
func (s *Service) Threshold() float64 {
	return s.cfg.EscalationThreshold
}

// Score возвращает оценку приоритета события.
func (s *Service) Score(in Input) (domain.PriorityScore, error) {
	if err := domain.ValidateEvent(in.Event); err != nil {
		return domain.PriorityScore{}, err
	}
	if err := domain.ValidateAnalysis(in.Sentiment, in.Intent); err != nil {
		return domain.PriorityScore{}, err
	}

	w := s.cfg.Weights
	urgency, urgencyWhy := s.urgency(in)
	impact, impactWhy := s.impact(in)
	sentiment, sentimentWhy := s.sentiment(in.Sentiment)
	reach, reachWhy := s.reach(in)
	risk, riskWhy, riskRules := s.brandRisk(in)

	components := domain.ScoreComponents{
		Urgency:   urgency,
		Impact:    impact,
		Sentiment: sentiment,
		Reach:     reach,
		BrandRisk: risk,
	}
	factors := []domain.ScoreFactor{
		factor("urgency", urgency, w.Urgency, urgencyWhy),
		factor("impact", impact, w.Impact, impactWhy),
		factor("sentiment", sentiment, w.Sentiment, sentimentWhy),
		factor("reach", reach, w.Reach, reachWhy),
		factor("brand_risk", risk, w.BrandRisk, riskWhy),
	}

	total := 0.0
	for _, f := range factors {
		total += f.Contribution
	}
	overall := round2(clamp(100*total/w.sum(), 0, 100))

	rules := domain.BusinessRules{AutoEscalate: overall >= s.cfg.EscalationThreshold}
	if rules.AutoEscalate {
		rules.Triggered = append(rules.Triggered, "auto_escalate")
	}
	rules.Triggered = append(rules.Triggered, riskRules...)

	return domain.PriorityScore{
		Overall:    overall,
		Components: components,
		Factors:    factors,
		Rules:      rules,
		Confidence: s.confidence(in),
	}, nil
}

func factor(name string, value, weight float64, reasoning string) domain.ScoreFactor {
	return domain.ScoreFactor{
		Name:         name,
		Value:        value,
		Weight:       weight,
		Contribution: value * weight,
		Reasoning:    reasoning,
	}
}

func (s *Service) urgency(in Input) (float64, string) {
	level := in.Intent.Urgency.Level
	value, ok := s.cfg.Urgency[level]
	if !ok {
		value = s.cfg.Urgency[domain.UrgencyMedium]
	}
	why := fmt.Sprintf("срочность %s", level)
	if !in.Now.IsZero() && s.cfg.StaleAfter > 0 && in.Now.Sub(in.Event.Timestamp) > s.cfg.StaleAfter {
		value *= s.cfg.StaleDecay
		why += ", событие устарело"
	}
	return clamp(value, 0, 1), why
}

func (s *Service) impact(in Input) (float64, string) {
	profile := in.Event.Profile()
	mult, ok := s.cfg.IntentMultipliers[in.Intent.Primary.Type]
	if !ok {
		mult = s.cfg.IntentMultipliers[domain.IntentGeneral]
	}
	value := 0.5 * mult * profile.ImpactMultiplier
	parts := []string{fmt.Sprintf("намерение %s ×%.2f, %s ×%.2f", in.Intent.Primary.Type, mult, profile.Name, profile.ImpactMultiplier)}
	if in.Event.Author.Verified {
		value += s.cfg.VerifiedBonus
		parts = append(parts, "подтверждённый автор")
	}
	if in.Event.Engagement.EngagementRate(in.Event.Author.Followers) >= s.cfg.HighEngagementRate {
		value += s.cfg.EngagementBonus
		parts = append(parts, "высокая вовлечённость")
	}
	return clamp(value, 0, 1), strings.Join(parts, "; ")
}

func (s *Service) sentiment(res domain.SentimentResult) (float64, string) {
	strength := math.Abs(res.Score) * res.Confidence
	switch res.Label {
	case domain.SentimentNegative:
		return clamp(0.5+0.5*strength, 0, 1), fmt.Sprintf("негатив %.2f при уверенности %.2f", res.Score, res.Confidence)
	case domain.SentimentPositive:
		return clamp(0.5+0.25*strength, 0, 1), fmt.Sprintf("позитив %.2f при уверенности %.2f", res.Score, res.Confidence)
	default:
		return 0.5, "нейтральная тональность"
	}
}

func (s *Service) reach(in Input) (float64, string) {
	profile := in.Event.Profile()
	followers := float64(in.Event.Author.Followers)
	rate := in.Event.Engagement.EngagementRate(in.Event.Author.Followers)

	followerScore := math.Min(math.Log10(followers+1)/6, 1)
	engagementScore := math.Min(rate/s.cfg.ViralityThreshold, 1)
	value := 0.6*followerScore + 0.4*engagementScore
	why := fmt.Sprintf("%d подписчиков, вовлечённость %.3f", in.Event.Author.Followers, rate)
	if rate > s.cfg.ViralityThreshold {
		value += s.cfg.ViralityBonus
		why += ", вирусность"
	}
	value *= profile.ReachModifier
	return clamp(value, 0, 1), why
}

func (s *Service) brandRisk(in Input) (float64, string, []string) {
	text := strings.ToLower(in.Event.Content.Text)
	var rules []string

	hits := 0
	for _, kw := range s.cfg.CrisisKeywords {
		if containsTerm(text, kw) {
			hits++
		}
	}
	value := math.Min(1, 0.1+0.25*float64(hits))
	why := fmt.Sprintf("кризисных слов: %d", hits)
	if hits > 0 {
		rules = append(rules, "crisis_keywords")
	}

	if violatesCompliance(text, in.Brand) {
		value *= s.cfg.ComplianceMultiplier
		why += ", нарушение правил бренда"
		rules = append(rules, "compliance_violation")
	}

	rate := in.Event.Engagement.EngagementRate(in.Event.Author.Followers)
	if in.Sentiment.Label == domain.SentimentNegative && rate > s.cfg.ViralityThreshold {
		value *= s.cfg.NegativeViralityMultiplier
		why += ", негатив набирает охват"
		rules = append(rules, "negative_virality")
	}
	return clamp(value, 0, 1), why, rules
}

func violatesCompliance(text string, brand domain.BrandContext) bool {
	for _, term := range brand.Compliance.ProhibitedTerms {
		if containsTerm(text, term) {
			return true
		}
	}
	for _, term := range brand.Dont {
		if containsTerm(text, term) {
			return true
		}
	}
	return false
}

func containsTerm(lowerText, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	return term != "" && strings.Contains(lowerText, term)
}

// confidence усредняет уверенность анализа и снижает её при неполных данных о событии.
func (s *Service) confidence(in Input) float64 {
	base := (in.Sentiment.Confidence + in.Intent.Primary.Confidence) / 2

	signals := 0
	if strings.TrimSpace(in.Event.Content.Text) != "" {
		signals++
	}
	if in.Event.Author.ID != "" || in.Event.Author.Handle != "" {
		signals++
	}
	if in.Event.Author.Followers > 0 {
		signals++
	}
	if in.Event.Engagement.Rate > 0 || in.Event.Engagement.Interactions() > 0 {
		signals++
	}
	completeness := 0.6 + 0.1*float64(signals)
	return round2(clamp(base*completeness, 0.1, 1))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
