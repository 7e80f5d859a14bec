package execution

import (
	"context"
	"fmt"
	"strings"

	"social-pipeline/internal/domain"
)

func (s *Service) respond(ctx context.Context, req Request, p domain.RespondParams, out *domain.ExecutionPayload) (domain.ActionStatus, error) {
	maxLen := p.MaxLength
	if maxLen <= 0 {
		maxLen = req.Event.Profile().MaxReplyLength
	}
	if maxLen <= 0 {
		maxLen = s.cfg.DefaultMaxLength
	}
	tone := p.Tone
	if tone == "" {
		tone = req.Brand.Tone
	}
	genReq := domain.GenerationRequest{
		Prompt:      buildPrompt(req, tone),
		MaxLength:   maxLen,
		Temperature: s.cfg.Temperature,
		Tone:        tone,
		Template:    p.Template,
		Platform:    domain.NormalizePlatform(req.Event.Platform),
		Intent:      req.Intent.Primary.Type,
		Sentiment:   req.Sentiment.Label,
		Brand:       req.Brand.Name,
		Author:      req.Event.Author.Handle,
	}

	text, source, err := s.generate(ctx, genReq, p.UseAI)
	if err != nil {
		return domain.ActionStatusFailed, fmt.Errorf("генерация ответа: %w", err)
	}
	s.stats.recordResponse(source)

	content, personalized := personalize(text, req, tone)
	if personalized {
		s.stats.recordPersonalized()
	}
	content = clipRunes(strings.TrimSpace(content), maxLen)
	outcome := &domain.ResponseOutcome{Content: content, Source: source, Personalized: personalized}
	out.Response = outcome

	target := p.ReplyToID
	if target == "" {
		target = req.Event.NativeID
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.PostTimeout)
	defer cancel()
	posted, err := s.deps.Poster.Post(pctx, domain.PostRequest{Platform: genReq.Platform, TargetID: target, Content: content})
	if err != nil {
		outcome.PostError = err.Error()
		return domain.ActionStatusPartial, fmt.Errorf("публикация ответа: %w", err)
	}
	outcome.Posted = true
	outcome.PostID = posted.PostID
	return domain.ActionStatusSuccess, nil
}

// generate предпочитает ИИ и при ошибке переходит на шаблоны, если это разрешено.
func (s *Service) generate(ctx context.Context, req domain.GenerationRequest, useAI bool) (string, domain.ResponseSource, error) {
	if useAI && s.deps.Generator != nil {
		gctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		text, err := s.deps.Generator.Generate(gctx, req)
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			return text, domain.ResponseSourceAI, nil
		}
		if err == nil {
			err = fmt.Errorf("пустой ответ генератора")
		}
		if !s.cfg.TemplateFallback || s.deps.Templates == nil {
			return "", "", err
		}
		s.log.Warn().Err(err).Str("platform", string(req.Platform)).Msg("генерация через ИИ не удалась, используем шаблон")
	}
	if s.deps.Templates == nil {
		return "", "", fmt.Errorf("шаблоны не настроены")
	}
	text, err := s.deps.Templates.Render(req)
	if err != nil {
		return "", "", err
	}
	return text, domain.ResponseSourceTemplate, nil
}

func buildPrompt(req Request, tone string) string {
	var b strings.Builder
	brand := req.Brand.Name
	if brand == "" {
		brand = "бренда"
	}
	fmt.Fprintf(&b, "Ты отвечаешь от имени %s в %s.\n", brand, req.Event.Profile().Name)
	if req.Brand.Voice != "" {
		fmt.Fprintf(&b, "Голос бренда: %s.\n", req.Brand.Voice)
	}
	if tone != "" {
		fmt.Fprintf(&b, "Тон ответа: %s.\n", tone)
	}
	if len(req.Brand.Do) > 0 {
		fmt.Fprintf(&b, "Делай: %s.\n", strings.Join(req.Brand.Do, "; "))
	}
	if len(req.Brand.Dont) > 0 {
		fmt.Fprintf(&b, "Не делай: %s.\n", strings.Join(req.Brand.Dont, "; "))
	}
	if len(req.Brand.Compliance.RequiredDisclaimers) > 0 {
		fmt.Fprintf(&b, "Обязательно добавь: %s.\n", strings.Join(req.Brand.Compliance.RequiredDisclaimers, " "))
	}
	fmt.Fprintf(&b, "Намерение автора: %s, тональность: %s.\n", req.Intent.Primary.Type, req.Sentiment.Label)
	fmt.Fprintf(&b, "Сообщение от @%s:\n%s", req.Event.Author.Handle, clipRunes(req.Event.Content.Text, 2000))
	return b.String()
}

// personalize подставляет переменные {username}, {platform}, {brand}, {tone}.
func personalize(text string, req Request, tone string) (string, bool) {
	handle := req.Event.Author.Handle
	if handle == "" {
		handle = req.Event.Author.ID
	}
	r := strings.NewReplacer(
		"{username}", handle,
		"{platform}", req.Event.Profile().Name,
		"{brand}", req.Brand.Name,
		"{tone}", tone,
	)
	out := r.Replace(text)
	return out, out != text
}

func (s *Service) escalate(ctx context.Context, req Request, p domain.EscalateParams, out *domain.ExecutionPayload) (domain.ActionStatus, error) {
	priority := TicketPriorityFor(req.Intent.Urgency.Level, req.Sentiment)
	if p.Level == domain.EscalationUrgent {
		priority = domain.TicketPriorityUrgent
	}
	platform := domain.NormalizePlatform(req.Event.Platform)
	ticket := domain.TicketRequest{
		Subject:     fmt.Sprintf("[%s] %s от @%s", req.Event.Profile().Name, req.Intent.Primary.Type, req.Event.Author.Handle),
		Description: fmt.Sprintf("%s\n\nПричина: %s", req.Event.Content.Text, p.Reason),
		Priority:    priority,
		Team:        p.Team,
		Requester:   req.Event.Author,
		Platform:    platform,
		EventKey:    req.Event.Key(),
		DecisionID:  req.Decision.ID,
		Tags:        []string{string(platform), string(req.Intent.Primary.Type), string(p.Level)},
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.TicketTimeout)
	id, err := s.deps.Tickets.CreateTicket(tctx, ticket)
	cancel()
	if err != nil {
		return domain.ActionStatusFailed, fmt.Errorf("создание тикета: %w", err)
	}
	s.stats.recordTicket()
	out.Ticket = &domain.TicketOutcome{TicketID: id, Priority: priority}

	if s.deps.Webhooks == nil {
		return domain.ActionStatusSuccess, nil
	}
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WebhookTimeout)
	defer cancel()
	deliveries := s.deps.Webhooks.Dispatch(wctx, domain.WebhookEvent{
		Type:       "ticket.created",
		EventKey:   req.Event.Key(),
		DecisionID: req.Decision.ID,
		Data: map[string]any{
			"ticket_id": id,
			"priority":  string(priority),
			"team":      p.Team,
			"level":     string(p.Level),
		},
		OccurredAt: s.now().UTC(),
	})
	out.Webhooks = deliveries

	var failed []string
	for _, d := range deliveries {
		s.stats.recordWebhook(d.Delivered)
		if !d.Delivered {
			failed = append(failed, d.URL)
		}
	}
	if len(failed) > 0 {
		return domain.ActionStatusPartial, fmt.Errorf("вебхуки не доставлены: %s", strings.Join(failed, ", "))
	}
	return domain.ActionStatusSuccess, nil
}

// TicketPriorityFor выводит приоритет тикета из срочности и тональности.
func TicketPriorityFor(level domain.UrgencyLevel, sentiment domain.SentimentResult) domain.TicketPriority {
	points := 0
	switch level {
	case domain.UrgencyCritical:
		points = 3
	case domain.UrgencyHigh:
		points = 2
	case domain.UrgencyMedium:
		points = 1
	}
	if sentiment.Label == domain.SentimentNegative && sentiment.Confidence >= 0.7 {
		points++
	}
	switch {
	case points >= 3:
		return domain.TicketPriorityUrgent
	case points == 2:
		return domain.TicketPriorityHigh
	case points == 1:
		return domain.TicketPriorityMedium
	default:
		return domain.TicketPriorityLow
	}
}

func (s *Service) create(ctx context.Context, req Request, p domain.CreateParams, out *domain.ExecutionPayload) (domain.ActionStatus, error) {
	score := LeadScore(req.Event, req.Sentiment, req.Intent)
	source := p.Source
	if source == "" {
		source = string(domain.NormalizePlatform(req.Event.Platform))
	}
	name := req.Event.Author.Handle
	if name == "" {
		name = req.Event.Author.ID
	}
	lead := domain.Lead{
		Name:     name,
		Handle:   req.Event.Author.Handle,
		Platform: domain.NormalizePlatform(req.Event.Platform),
		Score:    score,
		Source:   source,
		Intent:   req.Intent.Primary.Type,
		Notes:    clipRunes(req.Event.Content.Text, 500),
		EventKey: req.Event.Key(),
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CRMTimeout)
	defer cancel()
	leadID, err := s.deps.CRM.CreateLead(cctx, lead)
	if err != nil {
		return domain.ActionStatusFailed, fmt.Errorf("создание лида: %w", err)
	}
	s.stats.recordLead()
	outcome := &domain.CRMOutcome{LeadID: leadID, LeadScore: score}
	out.CRM = outcome

	if score < s.cfg.OpportunityThreshold {
		return domain.ActionStatusSuccess, nil
	}
	stage := "qualification"
	if p.Record == "partnership" {
		stage = "partnership"
	}
	oppID, err := s.deps.CRM.CreateOpportunity(cctx, domain.Opportunity{
		LeadID:   leadID,
		Name:     fmt.Sprintf("%s: %s", name, req.Intent.Primary.Type),
		Score:    score,
		Stage:    stage,
		EventKey: req.Event.Key(),
	})
	if err != nil {
		return domain.ActionStatusPartial, fmt.Errorf("создание сделки: %w", err)
	}
	s.stats.recordOpportunity()
	outcome.OpportunityID = oppID
	return domain.ActionStatusSuccess, nil
}

// LeadScore оценивает лид по шкале 0–100.
func LeadScore(event domain.SocialEvent, sentiment domain.SentimentResult, intent domain.IntentResult) float64 {
	score := 0.0
	switch intent.Primary.Type {
	case domain.IntentPurchaseInquiry:
		score += 40
	case domain.IntentPartnership:
		score += 30
	case domain.IntentQuestion:
		score += 15
	case domain.IntentSupportRequest:
		score += 5
	}
	switch sentiment.Label {
	case domain.SentimentPositive:
		score += 20 * sentiment.Confidence
	case domain.SentimentNeutral:
		score += 5
	}
	rate := event.Engagement.EngagementRate(event.Author.Followers)
	score += 15 * min(rate/0.1, 1)
	if event.Author.Verified {
		score += 10
	}
	switch f := event.Author.Followers; {
	case f >= 100000:
		score += 15
	case f >= 10000:
		score += 10
	case f >= 1000:
		score += 5
	}
	return max(0, min(100, score))
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
