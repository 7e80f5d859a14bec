package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"social-pipeline/internal/domain"
	openai "social-pipeline/internal/infra/openai"
)

type chatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLM оценивает тональность и намерение события через OpenAI Chat Completions.
type LLM struct {
	client chatCompletionClient
	model  string
}

var _ domain.EventAnalyzer = (*LLM)(nil)

// NewLLM создаёт анализатор.
func NewLLM(client chatCompletionClient, model string) *LLM {
	return &LLM{client: client, model: model}
}

type llmCandidate struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

type llmAnalysis struct {
	Sentiment struct {
		Label      string  `json:"label"`
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	} `json:"sentiment"`
	Intent struct {
		Primary   llmCandidate  `json:"primary"`
		Secondary *llmCandidate `json:"secondary"`
		Urgency   string        `json:"urgency"`
	} `json:"intent"`
	Topics   []string        `json:"topics"`
	Entities []domain.Entity `json:"entities"`
}

const analyzePrompt = `Определи тональность и намерение автора сообщения из соцсети.
Тональность: positive, negative или neutral; score от -1 до 1; confidence от 0 до 1.
Намерение: purchase_inquiry, support_request, complaint, question, feedback, praise, partnership, spam или general.
Укажи основное намерение и, если есть, второе по вероятности. Срочность: critical, high, medium, low или minimal.
Ответ верни строго в формате JSON:
{"sentiment":{"label":"...","score":0,"confidence":0},"intent":{"primary":{"type":"...","confidence":0},"secondary":null,"urgency":"..."},"topics":["..."],"entities":[{"type":"...","value":"..."}]}

Платформа: %s, тип события: %s.
Сообщение:
%s`

// Analyze запрашивает оценку у модели и приводит ответ к допустимым значениям.
func (a *LLM) Analyze(ctx context.Context, event domain.SocialEvent) (domain.SentimentResult, domain.IntentResult, error) {
	text := strings.TrimSpace(event.Content.Text)
	if text == "" {
		return neutralAnalysis()
	}
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.1,
		MaxTokens:   400,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: "Ты аналитик обращений в соцсетях. Отвечай только JSON без пояснений."},
			{Role: openai.RoleUser, Content: fmt.Sprintf(analyzePrompt, event.Platform, event.Kind, truncate(text, 3000))},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	})
	if err != nil {
		return domain.SentimentResult{}, domain.IntentResult{}, fmt.Errorf("openai completion: %w", err)
	}
	content, err := resp.Content()
	if err != nil {
		return domain.SentimentResult{}, domain.IntentResult{}, err
	}
	var parsed llmAnalysis
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.SentimentResult{}, domain.IntentResult{}, fmt.Errorf("распаковка ответа LLM: %w", err)
	}

	sentiment := domain.SentimentResult{
		Label:      sentimentLabel(parsed.Sentiment.Label),
		Score:      clamp(parsed.Sentiment.Score, -1, 1),
		Confidence: clamp(parsed.Sentiment.Confidence, 0, 1),
	}
	intent := domain.IntentResult{
		Primary:  candidate(parsed.Intent.Primary),
		Urgency:  urgency(domain.UrgencyLevel(strings.ToLower(strings.TrimSpace(parsed.Intent.Urgency)))),
		Topics:   filterNonEmpty(parsed.Topics),
		Entities: parsed.Entities,
	}
	if s := parsed.Intent.Secondary; s != nil && s.Type != "" {
		c := candidate(*s)
		if c.Type != intent.Primary.Type {
			intent.Secondary = &c
		}
	}
	if err := domain.ValidateAnalysis(sentiment, intent); err != nil {
		return domain.SentimentResult{}, domain.IntentResult{}, fmt.Errorf("ответ LLM не прошёл проверку: %w", err)
	}
	return sentiment, intent, nil
}

func sentimentLabel(raw string) domain.SentimentLabel {
	switch label := domain.SentimentLabel(strings.ToLower(strings.TrimSpace(raw))); label {
	case domain.SentimentPositive, domain.SentimentNegative, domain.SentimentNeutral:
		return label
	}
	return domain.SentimentNeutral
}

var knownIntents = map[domain.IntentType]struct{}{
	domain.IntentPurchaseInquiry: {},
	domain.IntentSupportRequest:  {},
	domain.IntentComplaint:       {},
	domain.IntentQuestion:        {},
	domain.IntentFeedback:        {},
	domain.IntentPraise:          {},
	domain.IntentPartnership:     {},
	domain.IntentSpam:            {},
	domain.IntentGeneral:         {},
}

func candidate(c llmCandidate) domain.IntentCandidate {
	t := domain.IntentType(strings.ToLower(strings.TrimSpace(c.Type)))
	if _, ok := knownIntents[t]; !ok {
		return domain.IntentCandidate{Type: domain.IntentGeneral, Confidence: 0.3}
	}
	return domain.IntentCandidate{Type: t, Confidence: clamp(c.Confidence, 0, 1)}
}

var urgencyScores = map[domain.UrgencyLevel]float64{
	domain.UrgencyCritical: 1.0,
	domain.UrgencyHigh:     0.8,
	domain.UrgencyMedium:   0.5,
	domain.UrgencyLow:      0.3,
	domain.UrgencyMinimal:  0.1,
}

func urgency(level domain.UrgencyLevel) domain.Urgency {
	if !level.Valid() {
		level = domain.UrgencyMedium
	}
	return domain.Urgency{Level: level, Score: urgencyScores[level]}
}

func neutralAnalysis() (domain.SentimentResult, domain.IntentResult, error) {
	return domain.SentimentResult{Label: domain.SentimentNeutral, Confidence: 0.5},
		domain.IntentResult{
			Primary: domain.IntentCandidate{Type: domain.IntentGeneral, Confidence: 0.3},
			Urgency: urgency(domain.UrgencyMinimal),
		}, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func filterNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
