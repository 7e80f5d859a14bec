package domain

// SentimentLabel — итоговая тональность события.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// SentimentResult — результат внешнего анализа тональности.
type SentimentResult struct {
	Label      SentimentLabel `json:"label"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
}

// IntentType — категория намерения автора.
type IntentType string

const (
	IntentPurchaseInquiry IntentType = "purchase_inquiry"
	IntentSupportRequest  IntentType = "support_request"
	IntentComplaint       IntentType = "complaint"
	IntentQuestion        IntentType = "question"
	IntentFeedback        IntentType = "feedback"
	IntentPraise          IntentType = "praise"
	IntentPartnership     IntentType = "partnership"
	IntentSpam            IntentType = "spam"
	IntentGeneral         IntentType = "general"
)

// UrgencyLevel — срочность реакции на событие.
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMinimal  UrgencyLevel = "minimal"
)

// Valid сообщает, известен ли уровень срочности.
func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow, UrgencyMinimal:
		return true
	}
	return false
}

// Urgency содержит уровень и числовую оценку срочности.
type Urgency struct {
	Level UrgencyLevel `json:"level"`
	Score float64      `json:"score"`
}

// IntentCandidate — намерение с уверенностью классификатора.
type IntentCandidate struct {
	Type       IntentType `json:"type"`
	Confidence float64    `json:"confidence"`
}

// Entity — извлечённая сущность.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// IntentResult — результат внешнего определения намерения.
type IntentResult struct {
	Primary   IntentCandidate  `json:"primary"`
	Secondary *IntentCandidate `json:"secondary,omitempty"`
	Urgency   Urgency          `json:"urgency"`
	Entities  []Entity         `json:"entities,omitempty"`
	Topics    []string         `json:"topics,omitempty"`
}
