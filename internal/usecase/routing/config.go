package routing

import (
	"errors"
	"time"

	"social-pipeline/internal/domain"
)

// Config — правила маршрутизации.
type Config struct {
	AutoResponseThreshold float64
	SuggestionThreshold   float64

	AmbiguityMargin  float64
	AmbiguityPenalty float64

	HumanReviewIntents  []domain.IntentType
	HumanReviewCritical bool
	HumanReviewPriority float64

	NoAutoIntents   []domain.IntentType
	NoAutoPlatforms []domain.Platform
	NoAutoKeywords  []string

	BoostFollowers int64
	BoostAmount    float64

	HighReach     float64
	MonitorWindow time.Duration
	QueueWait     map[domain.EscalationLevel]time.Duration
}

// DefaultConfig возвращает правила по умолчанию.
func DefaultConfig() Config {
	return Config{
		AutoResponseThreshold: 0.9,
		SuggestionThreshold:   0.7,
		AmbiguityMargin:       0.1,
		AmbiguityPenalty:      0.1,
		HumanReviewIntents:    []domain.IntentType{domain.IntentComplaint},
		HumanReviewCritical:   true,
		HumanReviewPriority:   90,
		NoAutoIntents:         []domain.IntentType{domain.IntentPartnership},
		NoAutoKeywords:        []string{"refund", "lawyer", "attorney", "legal", "chargeback"},
		BoostFollowers:        100000,
		BoostAmount:           0.05,
		HighReach:             0.7,
		MonitorWindow:         24 * time.Hour,
		QueueWait: map[domain.EscalationLevel]time.Duration{
			domain.EscalationUrgent: 15 * time.Minute,
			domain.EscalationHigh:   time.Hour,
			domain.EscalationNormal: 4 * time.Hour,
		},
	}
}

func (c Config) validate() error {
	if c.SuggestionThreshold <= 0 || c.AutoResponseThreshold > 1 {
		return errors.New("routing: пороги должны лежать в (0,1]")
	}
	if c.SuggestionThreshold >= c.AutoResponseThreshold {
		return errors.New("routing: порог suggestion должен быть ниже порога auto-response")
	}
	return nil
}
