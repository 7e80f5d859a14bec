package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

// Sender — часть BotAPI, которая нужна для отправки сообщений.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Poster публикует ответы в Telegram через Bot API.
type Poster struct {
	bot Sender
}

var _ domain.PlatformPoster = (*Poster)(nil)

// NewPoster создаёт публикатор.
func NewPoster(bot Sender) *Poster {
	return &Poster{bot: bot}
}

// TargetID собирает идентификатор цели ответа из чата и сообщения.
func TargetID(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// ParseTarget разбирает идентификатор вида "<chat_id>:<message_id>" или "<chat_id>".
func ParseTarget(target string) (int64, int, error) {
	chatPart, msgPart, hasMsg := strings.Cut(target, ":")
	chatID, err := strconv.ParseInt(chatPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("некорректный чат %q: %w", chatPart, err)
	}
	if !hasMsg {
		return chatID, 0, nil
	}
	msgID, err := strconv.Atoi(msgPart)
	if err != nil {
		return 0, 0, fmt.Errorf("некорректное сообщение %q: %w", msgPart, err)
	}
	return chatID, msgID, nil
}

// Post отправляет ответ; длинный текст уходит несколькими сообщениями, первое — ответом на исходное.
func (p *Poster) Post(ctx context.Context, req domain.PostRequest) (domain.PostResult, error) {
	chatID, replyTo, err := ParseTarget(req.TargetID)
	if err != nil {
		return domain.PostResult{}, err
	}
	parts := SplitMessage(req.Content, MessageLimit)
	if len(parts) == 0 {
		return domain.PostResult{}, fmt.Errorf("пустой текст ответа")
	}

	var first tgbotapi.Message
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return domain.PostResult{}, err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		if i == 0 && replyTo > 0 {
			msg.ReplyToMessageID = replyTo
		}
		start := time.Now()
		sent, err := p.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", "reply", start, err)
		if err != nil {
			return domain.PostResult{}, fmt.Errorf("отправка в telegram: %w", err)
		}
		if i == 0 {
			first = sent
		}
	}
	return domain.PostResult{PostID: TargetID(chatID, first.MessageID)}, nil
}
