package domain

// ScoreComponents содержит нормализованные составляющие приоритета.
type ScoreComponents struct {
	Urgency   float64 `json:"urgency"`
	Impact    float64 `json:"impact"`
	Sentiment float64 `json:"sentiment"`
	Reach     float64 `json:"reach"`
	BrandRisk float64 `json:"brand_risk"`
}

// ScoreFactor объясняет вклад одной составляющей.
type ScoreFactor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Reasoning    string  `json:"reasoning"`
}

// BusinessRules — вердикт бизнес-правил по оценке.
type BusinessRules struct {
	AutoEscalate bool     `json:"auto_escalate"`
	Triggered    []string `json:"triggered,omitempty"`
}

// PriorityScore — итог расчёта приоритета события.
type PriorityScore struct {
	Overall    float64         `json:"overall"`
	Components ScoreComponents `json:"components"`
	Factors    []ScoreFactor   `json:"factors"`
	Rules      BusinessRules   `json:"rules"`
	Confidence float64         `json:"confidence"`
}
