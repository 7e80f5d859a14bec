package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"social-pipeline/internal/adapters/telegram"
	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

const excerptLimit = 600

// Notifier отправляет карточки ожидающих действий в чат операторов.
type Notifier struct {
	bot    telegram.Sender
	chatID int64
}

var _ domain.ApprovalNotifier = (*Notifier)(nil)

// NewNotifier создаёт уведомитель.
func NewNotifier(bot telegram.Sender, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

// NotifyPending отправляет карточку с кнопками решения.
func (n *Notifier) NotifyPending(ctx context.Context, pending domain.PendingApproval) error {
	if n.chatID == 0 {
		return errors.New("не задан чат операторов")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	parts := telegram.SplitMessage(FormatPending(pending), telegram.MessageLimit)
	keyboard := ApprovalKeyboard(pending.Token)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.DisableWebPagePreview = true
		if i == len(parts)-1 {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := n.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "notify_pending", strconv.FormatInt(n.chatID, 10), start, err)
		if err != nil {
			return fmt.Errorf("отправка карточки действия: %w", err)
		}
	}
	return nil
}

// ApprovalKeyboard возвращает кнопки «Одобрить» и «Отклонить».
func ApprovalKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить", callbackApprove+token),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", callbackReject+token),
		),
	)
}

// FormatPending собирает текст карточки действия.
func FormatPending(p domain.PendingApproval) string {
	ev := p.Job.Event
	var b strings.Builder
	fmt.Fprintf(&b, "Требуется решение: %s (%s)\n", p.Action.Type, p.Action.Priority)
	fmt.Fprintf(&b, "Маршрут: %s, уверенность %.2f\n", p.Decision.Route, p.Decision.Confidence)
	author := ev.Author.Handle
	if author == "" {
		author = ev.Author.ID
	}
	fmt.Fprintf(&b, "Платформа: %s, автор: %s", ev.Platform, author)
	if ev.Author.Followers > 0 {
		fmt.Fprintf(&b, " (%d подписчиков)", ev.Author.Followers)
	}
	b.WriteString("\n")
	if p.Job.Sentiment != nil && p.Job.Intent != nil {
		fmt.Fprintf(&b, "Тональность: %s, намерение: %s, срочность: %s\n",
			p.Job.Sentiment.Label, p.Job.Intent.Primary.Type, p.Job.Intent.Urgency.Level)
	}
	switch params := p.Action.Params.(type) {
	case domain.EscalateParams:
		fmt.Fprintf(&b, "Эскалация: команда %s, уровень %s\n", params.Team, params.Level)
	case domain.CreateParams:
		fmt.Fprintf(&b, "Запись CRM: %s\n", params.Record)
	case domain.RespondParams:
		if params.Tone != "" {
			fmt.Fprintf(&b, "Тон ответа: %s\n", params.Tone)
		}
	}
	if p.Decision.Reasoning != "" {
		fmt.Fprintf(&b, "Обоснование: %s\n", p.Decision.Reasoning)
	}
	text := []rune(strings.TrimSpace(ev.Content.Text))
	if len(text) > excerptLimit {
		text = append(text[:excerptLimit], '…')
	}
	fmt.Fprintf(&b, "\n%s", string(text))
	return b.String()
}
