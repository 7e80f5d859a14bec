package analyzer

import (
	"context"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
)

// Fallback обращается к запасному анализатору при ошибке основного.
type Fallback struct {
	primary  domain.EventAnalyzer
	fallback domain.EventAnalyzer
	log      zerolog.Logger
}

var _ domain.EventAnalyzer = (*Fallback)(nil)

// NewFallback собирает цепочку анализаторов.
func NewFallback(primary, fallback domain.EventAnalyzer, log zerolog.Logger) *Fallback {
	return &Fallback{primary: primary, fallback: fallback, log: log}
}

func (f *Fallback) Analyze(ctx context.Context, event domain.SocialEvent) (domain.SentimentResult, domain.IntentResult, error) {
	sentiment, intent, err := f.primary.Analyze(ctx, event)
	if err == nil {
		return sentiment, intent, nil
	}
	if ctx.Err() != nil {
		return domain.SentimentResult{}, domain.IntentResult{}, err
	}
	f.log.Warn().Err(err).Str("event", event.Key()).Msg("основной анализатор недоступен, используем эвристику")
	return f.fallback.Analyze(ctx, event)
}
