package domain

import (
	"fmt"
	"strings"
)

// ValidationError описывает некорректное поле входных данных.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("некорректное поле %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidateEvent проверяет обязательные поля события.
func ValidateEvent(e SocialEvent) error {
	if strings.TrimSpace(string(e.Platform)) == "" {
		return invalid("event.platform", "пустое значение")
	}
	if strings.TrimSpace(e.NativeID) == "" {
		return invalid("event.native_id", "пустое значение")
	}
	if e.Timestamp.IsZero() {
		return invalid("event.timestamp", "не задано время события")
	}
	if !e.Kind.Valid() {
		return invalid("event.kind", fmt.Sprintf("неизвестный тип %q", e.Kind))
	}
	if e.Author.Followers < 0 {
		return invalid("event.author.followers", "отрицательное значение")
	}
	eng := e.Engagement
	if eng.Likes < 0 || eng.Shares < 0 || eng.Comments < 0 || eng.Views < 0 {
		return invalid("event.engagement", "отрицательный счётчик")
	}
	if eng.Rate < 0 {
		return invalid("event.engagement.rate", "отрицательное значение")
	}
	return nil
}

// ValidateAnalysis проверяет результаты внешнего анализа.
func ValidateAnalysis(s SentimentResult, i IntentResult) error {
	switch s.Label {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return invalid("sentiment.label", fmt.Sprintf("неизвестная тональность %q", s.Label))
	}
	if s.Score < -1 || s.Score > 1 {
		return invalid("sentiment.score", "значение вне [-1,1]")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return invalid("sentiment.confidence", "значение вне [0,1]")
	}
	if strings.TrimSpace(string(i.Primary.Type)) == "" {
		return invalid("intent.primary.type", "пустое значение")
	}
	if i.Primary.Confidence < 0 || i.Primary.Confidence > 1 {
		return invalid("intent.primary.confidence", "значение вне [0,1]")
	}
	if i.Secondary != nil && (i.Secondary.Confidence < 0 || i.Secondary.Confidence > 1) {
		return invalid("intent.secondary.confidence", "значение вне [0,1]")
	}
	if !i.Urgency.Level.Valid() {
		return invalid("intent.urgency.level", fmt.Sprintf("неизвестный уровень %q", i.Urgency.Level))
	}
	return nil
}
