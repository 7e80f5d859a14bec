package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"social-pipeline/internal/domain"
	openai "social-pipeline/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI генерирует ответы через OpenAI Chat Completions.
type OpenAI struct {
	client chatClient
	model  string
}

var _ domain.ResponseGenerator = (*OpenAI)(nil)

// NewOpenAI создаёт генератор.
func NewOpenAI(client chatClient, model string) *OpenAI {
	return &OpenAI{client: client, model: model}
}

// Generate строит текст ответа по промпту.
func (g *OpenAI) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("пустой промпт")
	}
	maxLen := req.MaxLength
	if maxLen <= 0 {
		maxLen = 280
	}
	system := fmt.Sprintf(`Ты SMM-специалист бренда и отвечаешь в соцсетях.
Пиши на языке исходного сообщения, вежливо и по делу, не выдумывай факты, цены и сроки.
Не используй хэштеги. Длина ответа не больше %d символов. Верни только текст ответа.`, maxLen)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: req.Temperature,
		MaxTokens:   min(max(maxLen/2, 64), 1024),
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: system},
			{Role: openai.RoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	content, err := resp.Content()
	if err != nil {
		return "", err
	}
	content = strings.Trim(content, "\"«»")
	if content == "" {
		return "", errors.New("openai completion: пустой текст")
	}
	return content, nil
}
