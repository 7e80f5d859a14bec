package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"social-pipeline/internal/adapters/telegram"
	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/metrics"
)

const (
	callbackApprove = "approve:"
	callbackReject  = "reject:"
)

// API — методы Bot API, которыми пользуется бот операторов.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Approver исполняет или отклоняет ожидающие действия.
type Approver interface {
	Approve(ctx context.Context, token, operator string) (domain.ActionExecutionResult, error)
	Reject(ctx context.Context, token, operator string) (domain.PendingApproval, error)
}

// Handler обслуживает вебхук бота операторов.
type Handler struct {
	bot            API
	approvals      Approver
	operatorChatID int64
	log            zerolog.Logger
}

// NewHandler создаёт обработчик. Нулевой operatorChatID снимает проверку чата.
func NewHandler(bot API, approvals Approver, operatorChatID int64, log zerolog.Logger) *Handler {
	return &Handler{bot: bot, approvals: approvals, operatorChatID: operatorChatID, log: log}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		h.handleMessage(upd.Message)
	}
}

func (h *Handler) handleMessage(msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, helpMessage(msg.Chat.ID))
	default:
		if h.allowed(msg.Chat.ID) {
			h.reply(msg.Chat.ID, "Решения принимаются кнопками под карточкой действия. /help")
		}
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	answer := h.resolve(ctx, cb)
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, answer))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(callbackChat(cb), 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) resolve(ctx context.Context, cb *tgbotapi.CallbackQuery) string {
	chatID := callbackChat(cb)
	if !h.allowed(chatID) {
		h.log.Warn().Int64("chat_id", chatID).Msg("callback из постороннего чата")
		return "Недостаточно прав"
	}
	approve, token, ok := ParseCallback(cb.Data)
	if !ok {
		return ""
	}
	operator := operatorName(cb.From)
	var (
		text string
		err  error
	)
	if approve {
		var res domain.ActionExecutionResult
		res, err = h.approvals.Approve(ctx, token, operator)
		if err == nil {
			text = fmt.Sprintf("Одобрено (%s): %s", operator, describeResult(res))
		}
	} else {
		_, err = h.approvals.Reject(ctx, token, operator)
		if err == nil {
			text = fmt.Sprintf("Отклонено (%s)", operator)
		}
	}
	switch {
	case errors.Is(err, domain.ErrPendingNotFound):
		text = "Действие уже обработано или истекло"
	case err != nil:
		h.log.Error().Err(err).Str("token", token).Msg("не удалось обработать решение оператора")
		return "Ошибка, попробуйте ещё раз"
	}
	h.closeCard(cb, text)
	return text
}

// closeCard убирает кнопки с карточки и дописывает итог.
func (h *Handler) closeCard(cb *tgbotapi.CallbackQuery, result string) {
	if cb.Message == nil {
		return
	}
	body := strings.TrimSpace(cb.Message.Text + "\n\n" + result)
	if len([]rune(body)) > telegram.MessageLimit {
		body = result
	}
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, body)
	start := time.Now()
	_, err := h.bot.Send(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", strconv.FormatInt(cb.Message.Chat.ID, 10), start, err)
	if err != nil {
		h.log.Warn().Err(err).Msg("не удалось обновить карточку действия")
	}
}

func (h *Handler) allowed(chatID int64) bool {
	return h.operatorChatID == 0 || chatID == h.operatorChatID
}

func (h *Handler) reply(chatID int64, text string) {
	for _, part := range telegram.SplitMessage(text, telegram.MessageLimit) {
		start := time.Now()
		_, err := h.bot.Send(tgbotapi.NewMessage(chatID, part))
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

// ParseCallback разбирает данные кнопки вида "approve:<token>" или "reject:<token>".
func ParseCallback(data string) (approve bool, token string, ok bool) {
	if rest, found := strings.CutPrefix(data, callbackApprove); found {
		token = strings.TrimSpace(rest)
		return true, token, token != ""
	}
	if rest, found := strings.CutPrefix(data, callbackReject); found {
		token = strings.TrimSpace(rest)
		return false, token, token != ""
	}
	return false, "", false
}

func callbackChat(cb *tgbotapi.CallbackQuery) int64 {
	if cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}
	return 0
}

func operatorName(u *tgbotapi.User) string {
	if u == nil {
		return "telegram"
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return "tg:" + strconv.FormatInt(u.ID, 10)
}

func describeResult(res domain.ActionExecutionResult) string {
	if res.Error != "" {
		return fmt.Sprintf("%s %s: %s", res.ActionType, res.Status, res.Error)
	}
	return fmt.Sprintf("%s %s", res.ActionType, res.Status)
}

func helpMessage(chatID int64) string {
	return fmt.Sprintf("Бот присылает действия конвейера, которые требуют решения оператора.\n"+
		"Под каждой карточкой есть кнопки «Одобрить» и «Отклонить».\n"+
		"ID этого чата: %d", chatID)
}
