package poster

import (
	"context"
	"errors"
	"fmt"

	"social-pipeline/internal/domain"
)

// ErrNoPoster возвращается, если для платформы не настроен публикатор.
var ErrNoPoster = errors.New("публикатор для платформы не настроен")

// Registry выбирает публикатор по платформе события.
type Registry struct {
	posters  map[domain.Platform]domain.PlatformPoster
	fallback domain.PlatformPoster
}

var _ domain.PlatformPoster = (*Registry)(nil)

// NewRegistry создаёт реестр. fallback используется для платформ без своего публикатора и может быть nil.
func NewRegistry(fallback domain.PlatformPoster) *Registry {
	return &Registry{posters: make(map[domain.Platform]domain.PlatformPoster), fallback: fallback}
}

// Register назначает публикатор платформе.
func (r *Registry) Register(platform domain.Platform, p domain.PlatformPoster) {
	r.posters[domain.NormalizePlatform(platform)] = p
}

// Post передаёт запрос публикатору платформы.
func (r *Registry) Post(ctx context.Context, req domain.PostRequest) (domain.PostResult, error) {
	p, ok := r.posters[domain.NormalizePlatform(req.Platform)]
	if !ok {
		p = r.fallback
	}
	if p == nil {
		return domain.PostResult{}, fmt.Errorf("%w: %s", ErrNoPoster, req.Platform)
	}
	return p.Post(ctx, req)
}
