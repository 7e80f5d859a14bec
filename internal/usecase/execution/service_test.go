package execution

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
)

type fakeGenerator struct {
	text  string
	err   error
	calls int
	hook  func()
}

func (f *fakeGenerator) Generate(_ context.Context, _ domain.GenerationRequest) (string, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.text, f.err
}

type fakeTemplates struct {
	last domain.GenerationRequest
}

func (f *fakeTemplates) Render(req domain.GenerationRequest) (string, error) {
	f.last = req
	return "Спасибо, {username}! Команда {brand} скоро ответит.", nil
}

type fakePoster struct {
	err   error
	panic bool
	posts []domain.PostRequest
}

func (f *fakePoster) Post(_ context.Context, req domain.PostRequest) (domain.PostResult, error) {
	if f.panic {
		panic("poster сломан")
	}
	f.posts = append(f.posts, req)
	if f.err != nil {
		return domain.PostResult{}, f.err
	}
	return domain.PostResult{PostID: "post-1"}, nil
}

type fakeTickets struct {
	err error
	got []domain.TicketRequest
}

func (f *fakeTickets) CreateTicket(_ context.Context, req domain.TicketRequest) (string, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return "", f.err
	}
	return "T-1", nil
}

type fakeCRM struct {
	leadErr error
	oppErr  error
	leads   []domain.Lead
	opps    []domain.Opportunity
}

func (f *fakeCRM) CreateLead(_ context.Context, lead domain.Lead) (string, error) {
	f.leads = append(f.leads, lead)
	if f.leadErr != nil {
		return "", f.leadErr
	}
	return "L-1", nil
}

func (f *fakeCRM) CreateOpportunity(_ context.Context, opp domain.Opportunity) (string, error) {
	f.opps = append(f.opps, opp)
	if f.oppErr != nil {
		return "", f.oppErr
	}
	return "O-1", nil
}

type fakeWebhooks struct {
	deliveries []domain.WebhookDelivery
	events     []domain.WebhookEvent
}

func (f *fakeWebhooks) Dispatch(_ context.Context, event domain.WebhookEvent) []domain.WebhookDelivery {
	f.events = append(f.events, event)
	return f.deliveries
}

type fixture struct {
	gen      *fakeGenerator
	tpl      *fakeTemplates
	poster   *fakePoster
	tickets  *fakeTickets
	crm      *fakeCRM
	webhooks *fakeWebhooks
}

func newFixture() *fixture {
	return &fixture{
		gen:      &fakeGenerator{text: "Привет, {username}! Напишем в личку по {platform}."},
		tpl:      &fakeTemplates{},
		poster:   &fakePoster{},
		tickets:  &fakeTickets{},
		crm:      &fakeCRM{},
		webhooks: &fakeWebhooks{deliveries: []domain.WebhookDelivery{{URL: "https://hooks.local/a", Delivered: true, Attempts: 1}}},
	}
}

func (f *fixture) deps() Deps {
	return Deps{Generator: f.gen, Templates: f.tpl, Poster: f.poster, Tickets: f.tickets, CRM: f.crm, Webhooks: f.webhooks}
}

func (f *fixture) service(t *testing.T, cfg Config, limiter domain.RateLimiter) *Service {
	t.Helper()
	deps := f.deps()
	deps.Limiter = limiter
	svc, err := NewService(deps, cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	return svc
}

func purchaseRequest(actions ...domain.Action) Request {
	return Request{
		Decision: domain.RoutingDecision{ID: "dec-1", Route: domain.RouteAutoResponse, Actions: actions},
		Event: domain.SocialEvent{
			Platform:   domain.PlatformInstagram,
			NativeID:   "ig-1",
			Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Kind:       domain.EventKindComment,
			Content:    domain.Content{Text: "Сколько стоит комплект?"},
			Author:     domain.Author{ID: "a1", Handle: "influencer", Followers: 150000, Verified: true},
			Engagement: domain.Engagement{Rate: 0.2},
		},
		EventID:   "instagram_1_1_x_y",
		Sentiment: domain.SentimentResult{Label: domain.SentimentPositive, Score: 0.8, Confidence: 0.9},
		Intent: domain.IntentResult{
			Primary: domain.IntentCandidate{Type: domain.IntentPurchaseInquiry, Confidence: 0.95},
			Urgency: domain.Urgency{Level: domain.UrgencyHigh},
		},
		Brand: domain.BrandContext{Name: "Acme", Tone: "friendly"},
	}
}

func respondAction() domain.Action {
	return domain.Action{ID: "act-respond", Type: domain.ActionRespond, Automated: true, Params: domain.RespondParams{UseAI: true, Tone: "helpful"}}
}

func createAction() domain.Action {
	return domain.Action{ID: "act-create", Type: domain.ActionCreate, Automated: true, Params: domain.CreateParams{Record: "lead"}}
}

func escalateAction(level domain.EscalationLevel) domain.Action {
	return domain.Action{ID: "act-escalate", Type: domain.ActionEscalate, Params: domain.EscalateParams{Team: "support", Reason: "жалоба", Level: level}}
}

func TestExecutePurchaseInquiry(t *testing.T) {
	f := newFixture()
	svc := f.service(t, DefaultConfig(), nil)

	results := svc.Execute(context.Background(), purchaseRequest(respondAction(), createAction()))
	if len(results) != 2 {
		t.Fatalf("ожидали 2 результата, получили %d", len(results))
	}
	resp := results[0]
	if resp.Status != domain.ActionStatusSuccess {
		t.Fatalf("ответ должен быть успешным: %+v", resp)
	}
	if resp.Payload.Response.Source != domain.ResponseSourceAI || !resp.Payload.Response.Personalized {
		t.Fatalf("ожидали персонализированный ответ ИИ: %+v", resp.Payload.Response)
	}
	if !strings.Contains(resp.Payload.Response.Content, "influencer") {
		t.Fatalf("имя автора не подставлено: %s", resp.Payload.Response.Content)
	}
	if resp.Payload.Response.PostID != "post-1" || f.poster.posts[0].TargetID != "ig-1" {
		t.Fatalf("неверная публикация: %+v", f.poster.posts)
	}

	crm := results[1]
	if crm.Status != domain.ActionStatusSuccess || crm.Payload.CRM == nil {
		t.Fatalf("ожидали успешное создание лида: %+v", crm)
	}
	if crm.Payload.CRM.LeadScore < 70 || crm.Payload.CRM.OpportunityID != "O-1" {
		t.Fatalf("ожидали лид с оценкой ≥70 и сделку: %+v", crm.Payload.CRM)
	}
	for _, r := range results {
		if r.Metadata.EventID != "instagram_1_1_x_y" || r.Metadata.DecisionID != "dec-1" || r.Metadata.Params == nil {
			t.Fatalf("метаданные не заполнены: %+v", r.Metadata)
		}
	}

	snap := svc.Stats()
	if snap.TotalExecuted != 2 || snap.SuccessRate != 1 || snap.Responses.AI != 1 || snap.Opportunities != 1 {
		t.Fatalf("неверные метрики: %+v", snap)
	}
}

func TestExecuteFallsBackToTemplate(t *testing.T) {
	f := newFixture()
	f.gen.err = errors.New("openai недоступен")
	svc := f.service(t, DefaultConfig(), nil)

	results := svc.Execute(context.Background(), purchaseRequest(respondAction()))
	resp := results[0]
	if resp.Status != domain.ActionStatusSuccess || resp.Payload.Response.Source != domain.ResponseSourceTemplate {
		t.Fatalf("ожидали ответ из шаблона: %+v", resp)
	}
	if resp.Payload.Response.Content != "Спасибо, influencer! Команда Acme скоро ответит." {
		t.Fatalf("неверная персонализация: %q", resp.Payload.Response.Content)
	}
	if f.tpl.last.Intent != domain.IntentPurchaseInquiry || f.tpl.last.Tone != "helpful" {
		t.Fatalf("шаблон получил неверный запрос: %+v", f.tpl.last)
	}
}

func TestExecuteWithoutFallbackFails(t *testing.T) {
	f := newFixture()
	f.gen.err = errors.New("timeout")
	cfg := DefaultConfig()
	cfg.TemplateFallback = false
	svc := f.service(t, cfg, nil)

	res := svc.Execute(context.Background(), purchaseRequest(respondAction()))[0]
	if res.Status != domain.ActionStatusFailed || res.Error == "" {
		t.Fatalf("ожидали ошибку генерации: %+v", res)
	}
	if len(f.poster.posts) != 0 {
		t.Fatalf("публикации не должно быть")
	}
}

func TestExecutePostFailureIsPartial(t *testing.T) {
	f := newFixture()
	f.poster.err = errors.New("403")
	svc := f.service(t, DefaultConfig(), nil)

	res := svc.Execute(context.Background(), purchaseRequest(respondAction()))[0]
	if res.Status != domain.ActionStatusPartial {
		t.Fatalf("ожидали partial, получили %s", res.Status)
	}
	if res.Payload.Response.Content == "" || res.Payload.Response.Posted || res.Payload.Response.PostError == "" {
		t.Fatalf("ожидали сгенерированный, но не опубликованный ответ: %+v", res.Payload.Response)
	}
}

func TestExecuteIsolatesPanics(t *testing.T) {
	f := newFixture()
	f.poster.panic = true
	svc := f.service(t, DefaultConfig(), nil)

	actions := []domain.Action{respondAction(), createAction(), {ID: "act-monitor", Type: domain.ActionMonitor, Params: domain.MonitorParams{Window: time.Hour}}}
	results := svc.Execute(context.Background(), purchaseRequest(actions...))
	if len(results) != len(actions) {
		t.Fatalf("ожидали %d результатов, получили %d", len(actions), len(results))
	}
	if results[0].Status != domain.ActionStatusFailed || !strings.Contains(results[0].Error, "panic") {
		t.Fatalf("паника должна превратиться в failed: %+v", results[0])
	}
	if results[1].Status != domain.ActionStatusSuccess || results[2].Status != domain.ActionStatusSuccess {
		t.Fatalf("остальные действия должны выполниться: %s %s", results[1].Status, results[2].Status)
	}
	if results[0].Metadata.DecisionID != "dec-1" {
		t.Fatalf("метаданные должны заполняться и при ошибке")
	}
}

func TestExecutePendingUntilApproved(t *testing.T) {
	f := newFixture()
	svc := f.service(t, DefaultConfig(), nil)
	action := respondAction()
	action.RequiresApproval = true

	res := svc.Execute(context.Background(), purchaseRequest(action))[0]
	if res.Status != domain.ActionStatusPending {
		t.Fatalf("ожидали pending, получили %s", res.Status)
	}
	if f.gen.calls != 0 || len(f.poster.posts) != 0 {
		t.Fatalf("неодобренное действие не должно иметь побочных эффектов")
	}

	approved := svc.Execute(context.Background(), purchaseRequest(action.Approve("operator")))[0]
	if approved.Status != domain.ActionStatusSuccess {
		t.Fatalf("одобренное действие должно выполниться: %+v", approved)
	}
}

func TestExecuteRateLimited(t *testing.T) {
	f := newFixture()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryRateLimiter(map[domain.ActionType]Limit{domain.ActionRespond: {PerHour: 1}}, func() time.Time { return now })
	svc := f.service(t, DefaultConfig(), limiter)

	first := svc.Execute(context.Background(), purchaseRequest(respondAction()))[0]
	second := svc.Execute(context.Background(), purchaseRequest(respondAction(), createAction()))
	if first.Status != domain.ActionStatusSuccess {
		t.Fatalf("первое действие должно пройти")
	}
	if second[0].Status != domain.ActionStatusSkipped || second[1].Status != domain.ActionStatusSuccess {
		t.Fatalf("ожидали skipped и success, получили %s и %s", second[0].Status, second[1].Status)
	}
	if svc.Stats().RateLimited != 1 {
		t.Fatalf("ожидали учёт ограничения частоты")
	}

	pending := createAction()
	pending.RequiresApproval = true
	if res := svc.Execute(context.Background(), purchaseRequest(pending))[0]; res.Status != domain.ActionStatusPending {
		t.Fatalf("ожидали pending, получили %s", res.Status)
	}

	stats := svc.Stats()
	if stats.TotalExecuted != 2 || stats.SuccessRate != 1 {
		t.Fatalf("пропущенные и отложенные не должны влиять на успешность: executed=%d rate=%v", stats.TotalExecuted, stats.SuccessRate)
	}
	if c := stats.ByType[domain.ActionRespond]; c.Skipped != 1 || c.Success != 1 {
		t.Fatalf("неверные счётчики respond: %+v", c)
	}
	if c := stats.ByType[domain.ActionCreate]; c.Pending != 1 || c.Success != 1 {
		t.Fatalf("неверные счётчики create: %+v", c)
	}
}

func TestExecuteEscalate(t *testing.T) {
	f := newFixture()
	svc := f.service(t, DefaultConfig(), nil)
	req := purchaseRequest(escalateAction(domain.EscalationHigh))
	req.Intent.Urgency.Level = domain.UrgencyCritical

	res := svc.Execute(context.Background(), req)[0]
	if res.Status != domain.ActionStatusSuccess || res.Payload.Ticket.TicketID != "T-1" {
		t.Fatalf("ожидали созданный тикет: %+v", res)
	}
	if res.Payload.Ticket.Priority != domain.TicketPriorityUrgent {
		t.Fatalf("критическая срочность должна давать urgent, получили %s", res.Payload.Ticket.Priority)
	}
	if len(f.webhooks.events) != 1 || f.webhooks.events[0].Data["ticket_id"] != "T-1" {
		t.Fatalf("ожидали уведомление о тикете")
	}
	if f.tickets.got[0].DecisionID != "dec-1" || f.tickets.got[0].Team != "support" {
		t.Fatalf("неверный запрос тикета: %+v", f.tickets.got[0])
	}
}

func TestExecuteEscalateWebhookFailureIsPartial(t *testing.T) {
	f := newFixture()
	f.webhooks.deliveries = append(f.webhooks.deliveries, domain.WebhookDelivery{URL: "https://hooks.local/b", Attempts: 3, Error: "503"})
	svc := f.service(t, DefaultConfig(), nil)

	res := svc.Execute(context.Background(), purchaseRequest(escalateAction(domain.EscalationNormal)))[0]
	if res.Status != domain.ActionStatusPartial {
		t.Fatalf("ожидали partial, получили %s", res.Status)
	}
	if len(res.Payload.Webhooks) != 2 || res.Payload.Ticket == nil {
		t.Fatalf("ожидали тикет и результаты доставки: %+v", res.Payload)
	}
	snap := svc.Stats()
	if snap.WebhooksDelivered != 1 || snap.WebhooksFailed != 1 || snap.TicketsCreated != 1 {
		t.Fatalf("неверные метрики вебхуков: %+v", snap)
	}
}

func TestExecuteTicketFailure(t *testing.T) {
	f := newFixture()
	f.tickets.err = errors.New("chatwoot 500")
	svc := f.service(t, DefaultConfig(), nil)

	res := svc.Execute(context.Background(), purchaseRequest(escalateAction(domain.EscalationNormal)))[0]
	if res.Status != domain.ActionStatusFailed {
		t.Fatalf("ожидали failed, получили %s", res.Status)
	}
	if len(f.webhooks.events) != 0 {
		t.Fatalf("вебхуки не должны отправляться без тикета")
	}
}

func TestExecuteOpportunityFailureIsPartial(t *testing.T) {
	f := newFixture()
	f.crm.oppErr = errors.New("crm 502")
	svc := f.service(t, DefaultConfig(), nil)

	res := svc.Execute(context.Background(), purchaseRequest(createAction()))[0]
	if res.Status != domain.ActionStatusPartial || res.Payload.CRM.LeadID != "L-1" {
		t.Fatalf("ожидали partial с лидом: %+v", res)
	}
}

func TestExecuteStopsOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.gen.hook = cancel
	svc := f.service(t, DefaultConfig(), nil)

	results := svc.Execute(ctx, purchaseRequest(respondAction(), createAction()))
	if len(results) != 1 {
		t.Fatalf("ожидали один результат до отмены, получили %d", len(results))
	}
	if len(f.crm.leads) != 0 {
		t.Fatalf("после отмены действия не выполняются")
	}
}

func TestExecuteManualActions(t *testing.T) {
	f := newFixture()
	svc := f.service(t, DefaultConfig(), nil)
	manual := respondAction()
	manual.Automated = false
	actions := []domain.Action{
		escalateAction(domain.EscalationUrgent),
		{ID: "act-monitor", Type: domain.ActionMonitor, Params: domain.MonitorParams{Window: time.Hour}},
		manual,
	}

	results := svc.Execute(context.Background(), purchaseRequest(actions...))
	if results[0].Status != domain.ActionStatusSuccess || len(f.tickets.got) != 1 {
		t.Fatalf("эскалация передаёт событие человеку и должна исполняться: %+v", results[0])
	}
	if results[1].Status != domain.ActionStatusSuccess {
		t.Fatalf("наблюдение должно исполняться, получили %s", results[1].Status)
	}
	if results[2].Status != domain.ActionStatusPending || f.gen.calls != 0 || len(f.poster.posts) != 0 {
		t.Fatalf("ручной ответ не должен публиковаться без оператора: %+v", results[2])
	}

	approved := svc.ExecuteAction(context.Background(), purchaseRequest(), manual.Approve("@anna"))
	if approved.Status != domain.ActionStatusSuccess || len(f.poster.posts) != 1 {
		t.Fatalf("одобренный ручной ответ должен исполниться: %+v", approved)
	}
}

func TestExecuteUnknownParams(t *testing.T) {
	f := newFixture()
	svc := f.service(t, DefaultConfig(), nil)
	res := svc.Execute(context.Background(), purchaseRequest(domain.Action{ID: "x", Type: domain.ActionRespond, Automated: true}))[0]
	if res.Status != domain.ActionStatusFailed {
		t.Fatalf("действие без параметров должно завершиться ошибкой")
	}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	f := newFixture()
	deps := f.deps()
	deps.Tickets = nil
	if _, err := NewService(deps, DefaultConfig(), nil, zerolog.Nop()); err == nil {
		t.Fatalf("ожидали ошибку без клиента тикетов")
	}
	deps = f.deps()
	deps.Generator, deps.Templates = nil, nil
	if _, err := NewService(deps, DefaultConfig(), nil, zerolog.Nop()); err == nil {
		t.Fatalf("ожидали ошибку без генератора и шаблонов")
	}
}

func TestLeadScore(t *testing.T) {
	req := purchaseRequest()
	if score := LeadScore(req.Event, req.Sentiment, req.Intent); score < 70 || score > 100 {
		t.Fatalf("ожидали оценку лида в [70,100], получили %.1f", score)
	}
	req.Event.Author = domain.Author{ID: "anon"}
	req.Event.Engagement = domain.Engagement{}
	req.Intent.Primary.Type = domain.IntentGeneral
	req.Sentiment = domain.SentimentResult{Label: domain.SentimentNegative, Score: -0.5, Confidence: 0.8}
	if score := LeadScore(req.Event, req.Sentiment, req.Intent); score != 0 {
		t.Fatalf("ожидали нулевую оценку, получили %.1f", score)
	}
}

func TestTicketPriorityFor(t *testing.T) {
	negative := domain.SentimentResult{Label: domain.SentimentNegative, Score: -0.9, Confidence: 0.9}
	neutral := domain.SentimentResult{Label: domain.SentimentNeutral, Confidence: 0.9}
	cases := []struct {
		level     domain.UrgencyLevel
		sentiment domain.SentimentResult
		want      domain.TicketPriority
	}{
		{domain.UrgencyCritical, neutral, domain.TicketPriorityUrgent},
		{domain.UrgencyHigh, negative, domain.TicketPriorityUrgent},
		{domain.UrgencyHigh, neutral, domain.TicketPriorityHigh},
		{domain.UrgencyMedium, negative, domain.TicketPriorityHigh},
		{domain.UrgencyMedium, neutral, domain.TicketPriorityMedium},
		{domain.UrgencyLow, neutral, domain.TicketPriorityLow},
	}
	for _, tc := range cases {
		if got := TicketPriorityFor(tc.level, tc.sentiment); got != tc.want {
			t.Fatalf("%s/%s: ожидали %s, получили %s", tc.level, tc.sentiment.Label, tc.want, got)
		}
	}
}

func TestMemoryRateLimiterWindows(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryRateLimiter(map[domain.ActionType]Limit{domain.ActionRespond: {PerHour: 2, PerDay: 3}}, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow(ctx, domain.ActionRespond); !ok {
			t.Fatalf("вызов %d должен пройти", i)
		}
	}
	if ok, _ := limiter.Allow(ctx, domain.ActionRespond); ok {
		t.Fatalf("часовой лимит должен сработать")
	}
	now = now.Add(time.Hour)
	if ok, _ := limiter.Allow(ctx, domain.ActionRespond); !ok {
		t.Fatalf("в новом часе лимит сбрасывается")
	}
	if ok, _ := limiter.Allow(ctx, domain.ActionRespond); ok {
		t.Fatalf("суточный лимит должен сработать")
	}
	if ok, _ := limiter.Allow(ctx, domain.ActionMonitor); !ok {
		t.Fatalf("для действий без лимита ограничений нет")
	}
}
