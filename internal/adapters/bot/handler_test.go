package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
)

type fakeAPI struct {
	sent      []tgbotapi.Chattable
	callbacks []tgbotapi.CallbackConfig
	sendErr   error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks = append(f.callbacks, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeApprover struct {
	approved []string
	rejected []string
	operator string
	err      error
}

func (f *fakeApprover) Approve(_ context.Context, token, operator string) (domain.ActionExecutionResult, error) {
	if f.err != nil {
		return domain.ActionExecutionResult{}, f.err
	}
	f.approved = append(f.approved, token)
	f.operator = operator
	return domain.ActionExecutionResult{ActionType: domain.ActionRespond, Status: domain.ActionStatusSuccess}, nil
}

func (f *fakeApprover) Reject(_ context.Context, token, operator string) (domain.PendingApproval, error) {
	if f.err != nil {
		return domain.PendingApproval{}, f.err
	}
	f.rejected = append(f.rejected, token)
	f.operator = operator
	return domain.PendingApproval{Token: token}, nil
}

func callback(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 7, UserName: "oper"},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: chatID}, Text: "карточка"},
		Data:    data,
	}}
}

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data    string
		approve bool
		token   string
		ok      bool
	}{
		{"approve:abc", true, "abc", true},
		{"reject:abc", false, "abc", true},
		{"approve:", true, "", false},
		{"mute:all", false, "", false},
	}
	for _, c := range cases {
		approve, token, ok := ParseCallback(c.data)
		if approve != c.approve || token != c.token || ok != c.ok {
			t.Fatalf("%q: получили (%v, %q, %v)", c.data, approve, token, ok)
		}
	}
}

func TestHandleApproveCallback(t *testing.T) {
	api := &fakeAPI{}
	approver := &fakeApprover{}
	h := NewHandler(api, approver, 100, zerolog.Nop())
	h.HandleUpdate(context.Background(), callback(100, "approve:tok"))

	if len(approver.approved) != 1 || approver.approved[0] != "tok" {
		t.Fatalf("ожидали одобрение токена, получили %v", approver.approved)
	}
	if approver.operator != "@oper" {
		t.Fatalf("ожидали оператора @oper, получили %q", approver.operator)
	}
	if len(api.callbacks) != 1 || !strings.Contains(api.callbacks[0].Text, "Одобрено") {
		t.Fatalf("ожидали ответ на callback, получили %+v", api.callbacks)
	}
	if len(api.sent) != 1 {
		t.Fatalf("ожидали правку карточки, получили %d отправок", len(api.sent))
	}
	if _, ok := api.sent[0].(tgbotapi.EditMessageTextConfig); !ok {
		t.Fatalf("ожидали EditMessageTextConfig, получили %T", api.sent[0])
	}
}

func TestHandleRejectFromForeignChat(t *testing.T) {
	api := &fakeAPI{}
	approver := &fakeApprover{}
	h := NewHandler(api, approver, 100, zerolog.Nop())
	h.HandleUpdate(context.Background(), callback(555, "reject:tok"))
	if len(approver.rejected) != 0 {
		t.Fatalf("посторонний чат не должен принимать решения")
	}
	if len(api.callbacks) != 1 || api.callbacks[0].Text != "Недостаточно прав" {
		t.Fatalf("ожидали отказ, получили %+v", api.callbacks)
	}
}

func TestHandleExpiredToken(t *testing.T) {
	api := &fakeAPI{}
	approver := &fakeApprover{err: errors.Join(errors.New("получение"), domain.ErrPendingNotFound)}
	h := NewHandler(api, approver, 0, zerolog.Nop())
	h.HandleUpdate(context.Background(), callback(1, "reject:old"))
	if len(api.callbacks) != 1 || !strings.Contains(api.callbacks[0].Text, "истекло") {
		t.Fatalf("ожидали сообщение об истечении, получили %+v", api.callbacks)
	}
}

func TestNotifyPendingAttachesKeyboard(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(api, 100)
	pending := domain.PendingApproval{
		Token:    "tok",
		Action:   domain.Action{Type: domain.ActionEscalate, Priority: domain.ActionPriorityHigh, Params: domain.EscalateParams{Team: "support", Level: domain.EscalationUrgent}},
		Decision: domain.RoutingDecision{Route: domain.RouteHumanReview, Confidence: 0.55},
		Job: domain.EventJob{Event: domain.SocialEvent{
			Platform: domain.PlatformTwitter,
			Author:   domain.Author{Handle: "@angry", Followers: 1200},
			Content:  domain.Content{Text: "Верните деньги"},
		}},
	}
	if err := n.NotifyPending(context.Background(), pending); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("ожидали одно сообщение, получили %d", len(api.sent))
	}
	msg := api.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "support") || !strings.Contains(msg.Text, "Верните деньги") {
		t.Fatalf("неожиданный текст карточки: %s", msg.Text)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || *kb.InlineKeyboard[0][0].CallbackData != "approve:tok" {
		t.Fatalf("ожидали кнопки решения, получили %#v", msg.ReplyMarkup)
	}
}

func TestNotifyPendingRequiresChat(t *testing.T) {
	if err := NewNotifier(&fakeAPI{}, 0).NotifyPending(context.Background(), domain.PendingApproval{}); err == nil {
		t.Fatalf("ожидали ошибку без чата операторов")
	}
}
