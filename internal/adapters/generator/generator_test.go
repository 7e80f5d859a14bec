package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
	openai "social-pipeline/internal/infra/openai"
	"social-pipeline/internal/infra/rest"
)

func newRest(t *testing.T, cfg rest.Config) *rest.Client {
	t.Helper()
	r, err := rest.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("rest.New: %v", err)
	}
	return r
}

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAIGenerate(t *testing.T) {
	chat := &fakeChat{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatMessage{Content: `"Спасибо, {username}!"`}},
	}}}
	g := NewOpenAI(chat, "gpt-test")
	text, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "ответь", MaxLength: 280, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Спасибо, {username}!" {
		t.Fatalf("кавычки должны сниматься, получено %q", text)
	}
	if chat.req.Model != "gpt-test" || chat.req.MaxTokens != 140 {
		t.Fatalf("неверные параметры запроса: %+v", chat.req)
	}
	if !strings.Contains(chat.req.Messages[0].Content, "280") {
		t.Fatalf("системный промпт должен содержать лимит длины")
	}
}

func TestOpenAIGenerateErrors(t *testing.T) {
	g := NewOpenAI(&fakeChat{err: errors.New("boom")}, "")
	if _, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"}); err == nil {
		t.Fatalf("ожидалась ошибка клиента")
	}
	g = NewOpenAI(&fakeChat{}, "")
	if _, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"}); err == nil {
		t.Fatalf("ожидалась ошибка пустого ответа")
	}
	if _, err := g.Generate(context.Background(), domain.GenerationRequest{}); err == nil {
		t.Fatalf("ожидалась ошибка пустого промпта")
	}
}

func TestHTTPGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Prompt != "hello" || req.MaxLength != 100 || req.Tone != "friendly" {
			t.Errorf("неожиданное тело запроса: %+v", req)
		}
		_, _ = w.Write([]byte(`{"generated_text":"  Привет!  "}`))
	}))
	defer srv.Close()

	g := NewHTTP(newRest(t, rest.Config{Name: "generator", BaseURL: srv.URL}), "")
	text, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "hello", MaxLength: 100, Temperature: 0.5, Tone: "friendly"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Привет!" {
		t.Fatalf("неожиданный текст %q", text)
	}
}

func TestHTTPGenerateEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"generated_text":""}`))
	}))
	defer srv.Close()

	g := NewHTTP(newRest(t, rest.Config{Name: "generator", BaseURL: srv.URL}), "/v1/gen")
	if _, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"}); err == nil {
		t.Fatalf("ожидалась ошибка пустого текста")
	}
}

func TestTemplatesRender(t *testing.T) {
	tpl := NewTemplates(map[string]string{"promo": "{username}, держите промокод!"})
	cases := []struct {
		name string
		req  domain.GenerationRequest
		want string
	}{
		{name: "по имени", req: domain.GenerationRequest{Template: "promo"}, want: "{username}, держите промокод!"},
		{name: "покупка", req: domain.GenerationRequest{Intent: domain.IntentPurchaseInquiry, Sentiment: domain.SentimentPositive}, want: "спасибо за интерес"},
		{name: "негативный вопрос", req: domain.GenerationRequest{Intent: domain.IntentQuestion, Sentiment: domain.SentimentNegative}, want: "беспокойство"},
		{name: "общее", req: domain.GenerationRequest{Intent: domain.IntentGeneral}, want: "спасибо, что написали"},
	}
	for _, tc := range cases {
		got, err := tpl.Render(tc.req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !strings.Contains(got, tc.want) {
			t.Fatalf("%s: ожидалось %q в %q", tc.name, tc.want, got)
		}
	}
	if _, err := tpl.Render(domain.GenerationRequest{Template: "missing"}); err == nil {
		t.Fatalf("ожидалась ошибка для неизвестного шаблона")
	}
	if _, err := tpl.Render(domain.GenerationRequest{Intent: domain.IntentSpam}); err == nil {
		t.Fatalf("для спама шаблона быть не должно")
	}
}

func TestTemplatesFitLimit(t *testing.T) {
	tpl := NewTemplates(nil)
	got, err := tpl.Render(domain.GenerationRequest{Intent: domain.IntentComplaint, MaxLength: 40})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if utf8.RuneCountInString(got) > 40 || !strings.HasSuffix(got, "…") {
		t.Fatalf("шаблон должен быть обрезан до 40 символов с многоточием: %q", got)
	}
}
