package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
	openai "social-pipeline/internal/infra/openai"
)

type fakeChat struct {
	content string
	err     error
	req     openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Role: "assistant", Content: f.content}}}}, nil
}

func event(text string) domain.SocialEvent {
	return domain.SocialEvent{Platform: domain.PlatformTwitter, NativeID: "1", Kind: domain.EventKindMention, Content: domain.Content{Text: text}}
}

func TestLLMAnalyzeClampsAndNormalizes(t *testing.T) {
	chat := &fakeChat{content: `{"sentiment":{"label":"NEGATIVE","score":-1.7,"confidence":0.9},
		"intent":{"primary":{"type":"complaint","confidence":1.4},"secondary":{"type":"complaint","confidence":0.2},"urgency":"HIGH"},
		"topics":[" доставка ",""],"entities":[{"type":"product","value":"X"}]}`}
	a := NewLLM(chat, "gpt-test")
	s, i, err := a.Analyze(context.Background(), event("Верните деньги"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if chat.req.ResponseFormat == nil || chat.req.ResponseFormat.Type != openai.ResponseFormatTypeJSONObject {
		t.Fatalf("ожидали запрос JSON-ответа")
	}
	if s.Label != domain.SentimentNegative || s.Score != -1 {
		t.Fatalf("неожиданная тональность: %+v", s)
	}
	if i.Primary.Type != domain.IntentComplaint || i.Primary.Confidence != 1 {
		t.Fatalf("неожиданное намерение: %+v", i.Primary)
	}
	if i.Secondary != nil {
		t.Fatalf("вторичное намерение совпадает с основным и должно быть отброшено")
	}
	if i.Urgency.Level != domain.UrgencyHigh || i.Urgency.Score != 0.8 {
		t.Fatalf("неожиданная срочность: %+v", i.Urgency)
	}
	if len(i.Topics) != 1 || i.Topics[0] != "доставка" {
		t.Fatalf("неожиданные темы: %v", i.Topics)
	}
}

func TestLLMAnalyzeUnknownValues(t *testing.T) {
	chat := &fakeChat{content: `{"sentiment":{"label":"mixed","score":0.1,"confidence":0.5},"intent":{"primary":{"type":"rant","confidence":0.9},"urgency":"whenever"}}`}
	s, i, err := NewLLM(chat, "m").Analyze(context.Background(), event("хм"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if s.Label != domain.SentimentNeutral {
		t.Fatalf("ожидали neutral, получили %s", s.Label)
	}
	if i.Primary.Type != domain.IntentGeneral || i.Urgency.Level != domain.UrgencyMedium {
		t.Fatalf("неожиданный результат: %+v", i)
	}
}

func TestLLMAnalyzeBadJSON(t *testing.T) {
	if _, _, err := NewLLM(&fakeChat{content: "не json"}, "m").Analyze(context.Background(), event("текст")); err == nil {
		t.Fatalf("ожидали ошибку разбора")
	}
}

func TestLLMAnalyzeEmptyTextSkipsModel(t *testing.T) {
	chat := &fakeChat{err: errors.New("не должен вызываться")}
	s, i, err := NewLLM(chat, "m").Analyze(context.Background(), event("   "))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if s.Label != domain.SentimentNeutral || i.Primary.Type != domain.IntentGeneral {
		t.Fatalf("ожидали нейтральный результат")
	}
}

func TestHeuristicPurchase(t *testing.T) {
	_, i, err := NewHeuristic().Analyze(context.Background(), event("Сколько стоит тариф? Хочу купить"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if i.Primary.Type != domain.IntentPurchaseInquiry {
		t.Fatalf("ожидали purchase_inquiry, получили %s", i.Primary.Type)
	}
	if i.Primary.Confidence >= 0.9 {
		t.Fatalf("эвристика не должна давать уверенность автоматической обработки: %v", i.Primary.Confidence)
	}
}

func TestHeuristicComplaintIsNegative(t *testing.T) {
	s, i, _ := NewHeuristic().Analyze(context.Background(), event("Ужасный сервис, верните деньги! refund"))
	if s.Label != domain.SentimentNegative || s.Score >= 0 {
		t.Fatalf("ожидали негатив, получили %+v", s)
	}
	if i.Primary.Type != domain.IntentComplaint {
		t.Fatalf("ожидали complaint, получили %s", i.Primary.Type)
	}
	if i.Urgency.Level != domain.UrgencyMedium {
		t.Fatalf("ожидали medium, получили %s", i.Urgency.Level)
	}
}

func TestHeuristicUrgency(t *testing.T) {
	_, i, _ := NewHeuristic().Analyze(context.Background(), event("Срочно! Приложение не работает"))
	if i.Primary.Type != domain.IntentSupportRequest {
		t.Fatalf("ожидали support_request, получили %s", i.Primary.Type)
	}
	if i.Urgency.Level != domain.UrgencyHigh {
		t.Fatalf("ожидали high, получили %s", i.Urgency.Level)
	}
}

func TestHeuristicQuestionAndGeneral(t *testing.T) {
	h := NewHeuristic()
	_, q, _ := h.Analyze(context.Background(), event("а вы завтра открыты?"))
	if q.Primary.Type != domain.IntentQuestion {
		t.Fatalf("ожидали question, получили %s", q.Primary.Type)
	}
	s, g, _ := h.Analyze(context.Background(), event("просто мимо проходил"))
	if g.Primary.Type != domain.IntentGeneral || s.Label != domain.SentimentNeutral {
		t.Fatalf("ожидали general/neutral, получили %s/%s", g.Primary.Type, s.Label)
	}
}

func TestFallbackUsesSecondary(t *testing.T) {
	f := NewFallback(NewLLM(&fakeChat{err: errors.New("503")}, "m"), NewHeuristic(), zerolog.Nop())
	_, i, err := f.Analyze(context.Background(), event("хочу купить"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if i.Primary.Type != domain.IntentPurchaseInquiry {
		t.Fatalf("ожидали результат эвристики, получили %s", i.Primary.Type)
	}
}

func TestFallbackRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFallback(NewLLM(&fakeChat{err: context.Canceled}, "m"), NewHeuristic(), zerolog.Nop())
	if _, _, err := f.Analyze(ctx, event("хочу купить")); err == nil {
		t.Fatalf("ожидали ошибку отменённого контекста")
	}
}
