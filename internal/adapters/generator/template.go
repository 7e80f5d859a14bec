package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"social-pipeline/internal/domain"
)

// Templates строит ответы по шаблонам без внешних вызовов.
// Шаблоны содержат переменные {username}, {platform}, {brand}, {tone};
// их подставляет исполнитель действий.
type Templates struct {
	named    map[string]string
	byIntent map[domain.IntentType]string
	negative map[domain.IntentType]string
	fallback string
}

var _ domain.TemplateEngine = (*Templates)(nil)

// NewTemplates создаёт движок со стандартным набором и дополнительными именованными шаблонами.
func NewTemplates(named map[string]string) *Templates {
	t := &Templates{
		named: make(map[string]string, len(named)),
		byIntent: map[domain.IntentType]string{
			domain.IntentPurchaseInquiry: "{username}, спасибо за интерес к {brand}! Подробности о наличии и ценах отправили вам в личные сообщения.",
			domain.IntentSupportRequest:  "{username}, мы уже разбираемся. Напишите, пожалуйста, детали в личные сообщения, чтобы мы помогли быстрее.",
			domain.IntentComplaint:       "{username}, нам очень жаль, что так вышло. Команда {brand} свяжется с вами, чтобы всё исправить.",
			domain.IntentQuestion:        "{username}, хороший вопрос! Ответим в ближайшее время.",
			domain.IntentFeedback:        "{username}, спасибо за отзыв! Передали его команде {brand}.",
			domain.IntentPraise:          "{username}, спасибо за тёплые слова! Нам очень приятно.",
			domain.IntentPartnership:     "{username}, спасибо за предложение! Напишите нам на почту партнёрского отдела {brand}.",
		},
		negative: map[domain.IntentType]string{
			domain.IntentSupportRequest: "{username}, извините за неудобства. Мы уже разбираемся и вернёмся с ответом.",
			domain.IntentQuestion:       "{username}, понимаем ваше беспокойство. Уточним детали и ответим.",
			domain.IntentFeedback:       "{username}, спасибо, что рассказали. Мы учтём это и станем лучше.",
		},
		fallback: "{username}, спасибо, что написали {brand}!",
	}
	for name, text := range named {
		t.named[name] = text
	}
	return t
}

// Render выбирает шаблон по имени, затем по намерению и тональности.
func (t *Templates) Render(req domain.GenerationRequest) (string, error) {
	if req.Template != "" {
		text, ok := t.named[req.Template]
		if !ok {
			return "", fmt.Errorf("шаблон %q не найден", req.Template)
		}
		return fit(text, req.MaxLength), nil
	}
	if req.Intent == domain.IntentSpam {
		return "", fmt.Errorf("нет шаблона для намерения %s", req.Intent)
	}
	if req.Sentiment == domain.SentimentNegative {
		if text, ok := t.negative[req.Intent]; ok {
			return fit(text, req.MaxLength), nil
		}
	}
	if text, ok := t.byIntent[req.Intent]; ok {
		return fit(text, req.MaxLength), nil
	}
	return fit(t.fallback, req.MaxLength), nil
}

// fit обрезает текст по границе слова так, чтобы с многоточием уложиться в лимит.
func fit(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max(limit-1, 0)])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.") + "…"
}
