package analyzer

import (
	"context"
	"strings"
	"unicode"

	"social-pipeline/internal/domain"
)

// Heuristic определяет тональность и намерение по словарям основ.
// Уверенность держится ниже порогов автоматической обработки.
type Heuristic struct {
	positive []string
	negative []string
	intents  []intentRule
	urgent   []string
	critical []string
}

type intentRule struct {
	intent domain.IntentType
	stems  []string
}

var _ domain.EventAnalyzer = (*Heuristic)(nil)

// NewHeuristic создаёт анализатор со встроенными словарями.
func NewHeuristic() *Heuristic {
	return &Heuristic{
		positive: []string{"спасиб", "отличн", "супер", "класс", "нрав", "любл", "лучш", "рекоменд", "thank", "great", "love", "awesome", "excellent", "amazing"},
		negative: []string{"ужасн", "плох", "отврат", "разочаров", "обман", "худш", "злюсь", "бесит", "terrible", "awful", "worst", "hate", "disappoint", "scam", "angry"},
		intents: []intentRule{
			{intent: domain.IntentPurchaseInquiry, stems: []string{"купить", "куплю", "цен", "стоимост", "сколько", "заказ", "оплат", "тариф", "buy", "price", "pricing", "order", "purchase", "cost"}},
			{intent: domain.IntentSupportRequest, stems: []string{"помогит", "помощь", "не работает", "ошибк", "сломал", "не могу", "доступ", "help", "error", "broken", "can't", "cannot", "login"}},
			{intent: domain.IntentComplaint, stems: []string{"жалоб", "возврат", "верните", "претензи", "обман", "безобраз", "refund", "complain", "unacceptable", "scam"}},
			{intent: domain.IntentPartnership, stems: []string{"сотрудничеств", "партнер", "партнёр", "коллаборац", "реклам", "partner", "collab", "sponsor"}},
			{intent: domain.IntentPraise, stems: []string{"спасиб", "отличн", "лучш", "восторг", "thank", "awesome", "amazing", "love"}},
			{intent: domain.IntentFeedback, stems: []string{"предлага", "предложени", "хотелось бы", "добавьте", "suggest", "feature", "would be nice"}},
			{intent: domain.IntentSpam, stems: []string{"заработ", "казино", "крипт", "подписывайтесь", "free money", "casino", "giveaway", "click here"}},
		},
		urgent:   []string{"срочно", "немедленно", "быстрее", "urgent", "asap", "immediately"},
		critical: []string{"суд", "юрист", "адвокат", "утечк", "взлом", "lawyer", "lawsuit", "breach", "hacked"},
	}
}

// Analyze возвращает оценку без обращения к внешним сервисам.
func (h *Heuristic) Analyze(_ context.Context, event domain.SocialEvent) (domain.SentimentResult, domain.IntentResult, error) {
	text := strings.ToLower(strings.TrimSpace(event.Content.Text))
	if text == "" {
		return neutralAnalysis()
	}
	words := tokenize(text)

	pos := countHits(text, words, h.positive)
	neg := countHits(text, words, h.negative)
	sentiment := domain.SentimentResult{Label: domain.SentimentNeutral, Confidence: 0.5}
	if pos+neg > 0 {
		sentiment.Score = float64(pos-neg) / float64(pos+neg)
		sentiment.Confidence = min(0.5+0.1*float64(pos+neg), 0.8)
		switch {
		case sentiment.Score > 0.2:
			sentiment.Label = domain.SentimentPositive
		case sentiment.Score < -0.2:
			sentiment.Label = domain.SentimentNegative
		}
	}

	var best, second domain.IntentCandidate
	bestHits, secondHits := 0, 0
	for _, rule := range h.intents {
		hits := countHits(text, words, rule.stems)
		if hits == 0 {
			continue
		}
		c := domain.IntentCandidate{Type: rule.intent, Confidence: min(0.5+0.1*float64(hits), 0.85)}
		switch {
		case hits > bestHits:
			second, secondHits = best, bestHits
			best, bestHits = c, hits
		case hits > secondHits:
			second, secondHits = c, hits
		}
	}
	if bestHits == 0 && strings.Contains(text, "?") {
		best, bestHits = domain.IntentCandidate{Type: domain.IntentQuestion, Confidence: 0.6}, 1
	}
	if bestHits == 0 {
		best = domain.IntentCandidate{Type: domain.IntentGeneral, Confidence: 0.4}
	}

	intent := domain.IntentResult{Primary: best, Urgency: h.urgency(text, words, sentiment, best.Type)}
	if secondHits > 0 {
		intent.Secondary = &second
	}
	for _, tag := range event.Content.Hashtags {
		if tag = strings.TrimPrefix(strings.TrimSpace(tag), "#"); tag != "" {
			intent.Topics = append(intent.Topics, strings.ToLower(tag))
		}
	}
	return sentiment, intent, nil
}

func (h *Heuristic) urgency(text string, words []string, s domain.SentimentResult, intent domain.IntentType) domain.Urgency {
	switch {
	case countHits(text, words, h.critical) > 0:
		return urgency(domain.UrgencyCritical)
	case countHits(text, words, h.urgent) > 0:
		return urgency(domain.UrgencyHigh)
	case intent == domain.IntentComplaint || intent == domain.IntentSupportRequest || s.Label == domain.SentimentNegative:
		return urgency(domain.UrgencyMedium)
	case intent == domain.IntentSpam:
		return urgency(domain.UrgencyMinimal)
	}
	return urgency(domain.UrgencyLow)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// countHits считает основы: многословные ищутся подстрокой, остальные по началу слова.
func countHits(text string, words, stems []string) int {
	hits := 0
	for _, stem := range stems {
		if strings.Contains(stem, " ") {
			if strings.Contains(text, stem) {
				hits++
			}
			continue
		}
		for _, w := range words {
			if strings.HasPrefix(w, stem) {
				hits++
				break
			}
		}
	}
	return hits
}
