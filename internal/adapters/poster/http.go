package poster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/rest"
)

// HTTP публикует ответы через шлюз платформ по REST
// и сглаживает поток запросов отдельным лимитером на каждую платформу.
type HTTP struct {
	client *rest.Client
	rps    rate.Limit
	burst  int

	mu       sync.Mutex
	limiters map[domain.Platform]*rate.Limiter
}

var _ domain.PlatformPoster = (*HTTP)(nil)

// NewHTTP создаёт публикатор. rps <= 0 отключает сглаживание.
func NewHTTP(client *rest.Client, rps float64) *HTTP {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTP{
		client:   client,
		rps:      limit,
		burst:    max(int(rps), 1),
		limiters: make(map[domain.Platform]*rate.Limiter),
	}
}

type postRequest struct {
	Platform string `json:"platform"`
	ReplyTo  string `json:"reply_to_id"`
	Content  string `json:"content"`
}

type postResponse struct {
	PostID string `json:"post_id"`
}

// Post ждёт слота лимитера платформы и отправляет ответ.
func (p *HTTP) Post(ctx context.Context, req domain.PostRequest) (domain.PostResult, error) {
	if err := p.limiter(req.Platform).Wait(ctx); err != nil {
		return domain.PostResult{}, fmt.Errorf("ожидание лимитера %s: %w", req.Platform, err)
	}
	var out postResponse
	err := p.client.Do(ctx, http.MethodPost, "/posts", postRequest{
		Platform: string(req.Platform),
		ReplyTo:  req.TargetID,
		Content:  req.Content,
	}, &out)
	if err != nil {
		return domain.PostResult{}, err
	}
	if out.PostID == "" {
		return domain.PostResult{}, errors.New("шлюз не вернул post_id")
	}
	return domain.PostResult{PostID: out.PostID}, nil
}

func (p *HTTP) limiter(platform domain.Platform) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[platform]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.limiters[platform] = l
	}
	return l
}
