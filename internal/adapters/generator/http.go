package generator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/rest"
)

// HTTP вызывает внешний сервис генерации с контрактом
// {prompt,max_length,temperature,tone} → {generated_text}.
type HTTP struct {
	client *rest.Client
	path   string
}

var _ domain.ResponseGenerator = (*HTTP)(nil)

// NewHTTP создаёт генератор поверх REST-клиента. Пустой path означает "/generate".
func NewHTTP(client *rest.Client, path string) *HTTP {
	if path == "" {
		path = "/generate"
	}
	return &HTTP{client: client, path: path}
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxLength   int     `json:"max_length"`
	Temperature float64 `json:"temperature"`
	Tone        string  `json:"tone,omitempty"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Generate отправляет промпт во внешний сервис.
func (g *HTTP) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	var out generateResponse
	err := g.client.Do(ctx, http.MethodPost, g.path, generateRequest{
		Prompt:      req.Prompt,
		MaxLength:   req.MaxLength,
		Temperature: req.Temperature,
		Tone:        req.Tone,
	}, &out)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.GeneratedText)
	if text == "" {
		return "", errors.New("генератор вернул пустой текст")
	}
	return text, nil
}
