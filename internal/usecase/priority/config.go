package priority

import (
	"errors"
	"fmt"
	"time"

	"social-pipeline/internal/domain"
)

// Weights задаёт веса составляющих итоговой оценки.
type Weights struct {
	Urgency   float64
	Impact    float64
	Sentiment float64
	Reach     float64
	BrandRisk float64
}

func (w Weights) sum() float64 {
	return w.Urgency + w.Impact + w.Sentiment + w.Reach + w.BrandRisk
}

// Config — статическая конфигурация расчёта приоритета.
type Config struct {
	Weights                    Weights
	Urgency                    map[domain.UrgencyLevel]float64
	IntentMultipliers          map[domain.IntentType]float64
	EscalationThreshold        float64
	ViralityThreshold          float64
	HighEngagementRate         float64
	VerifiedBonus              float64
	EngagementBonus            float64
	ViralityBonus              float64
	StaleAfter                 time.Duration
	StaleDecay                 float64
	CrisisKeywords             []string
	ComplianceMultiplier       float64
	NegativeViralityMultiplier float64
}

// DefaultConfig возвращает веса и таблицы по умолчанию.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Urgency:   0.25,
			Impact:    0.30,
			Sentiment: 0.15,
			Reach:     0.20,
			BrandRisk: 0.10,
		},
		Urgency: map[domain.UrgencyLevel]float64{
			domain.UrgencyCritical: 1.0,
			domain.UrgencyHigh:     0.8,
			domain.UrgencyMedium:   0.5,
			domain.UrgencyLow:      0.25,
			domain.UrgencyMinimal:  0.1,
		},
		IntentMultipliers: map[domain.IntentType]float64{
			domain.IntentPurchaseInquiry: 1.4,
			domain.IntentComplaint:       1.3,
			domain.IntentSupportRequest:  1.2,
			domain.IntentPartnership:     1.2,
			domain.IntentQuestion:        1.0,
			domain.IntentFeedback:        0.9,
			domain.IntentPraise:          0.8,
			domain.IntentGeneral:         0.7,
			domain.IntentSpam:            0.2,
		},
		EscalationThreshold: 80,
		ViralityThreshold:   0.1,
		HighEngagementRate:  0.05,
		VerifiedBonus:       0.1,
		EngagementBonus:     0.1,
		ViralityBonus:       0.1,
		StaleAfter:          24 * time.Hour,
		StaleDecay:          0.8,
		CrisisKeywords: []string{
			"lawsuit", "legal action", "scam", "fraud", "boycott", "data breach", "leak",
			"recall", "dangerous", "injury", "outage", "hacked", "discrimination",
		},
		ComplianceMultiplier:       1.5,
		NegativeViralityMultiplier: 1.3,
	}
}

func (c Config) validate() error {
	w := c.Weights
	if w.Urgency < 0 || w.Impact < 0 || w.Sentiment < 0 || w.Reach < 0 || w.BrandRisk < 0 {
		return errors.New("priority: отрицательный вес составляющей")
	}
	if w.sum() <= 0 {
		return errors.New("priority: сумма весов должна быть положительной")
	}
	if c.EscalationThreshold < 0 || c.EscalationThreshold > 100 {
		return fmt.Errorf("priority: порог эскалации %.1f вне [0,100]", c.EscalationThreshold)
	}
	if c.ViralityThreshold <= 0 {
		return errors.New("priority: порог вирусности должен быть положительным")
	}
	if c.StaleDecay < 0 || c.StaleDecay > 1 {
		return fmt.Errorf("priority: коэффициент устаревания %.2f вне [0,1]", c.StaleDecay)
	}
	return nil
}
