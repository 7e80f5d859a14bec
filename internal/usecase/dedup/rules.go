package dedup

import (
	"regexp"
	"time"

	"social-pipeline/internal/domain"
)

// Candidates даёт правилам доступ к кэшу только на чтение.
type Candidates interface {
	OldestByContentHash(hash string) (Fingerprint, bool)
	Window(platform domain.Platform, from, to time.Time) []Fingerprint
}

// Match — найденное правилом совпадение.
type Match struct {
	ID         string
	Confidence float64
}

// PlatformRule — эвристика поиска дубликатов для конкретной платформы.
type PlatformRule interface {
	Name() string
	Match(event domain.SocialEvent, fp Fingerprint, cache Candidates) (Match, bool)
}

// DefaultRules возвращает правила по умолчанию, сгруппированные по платформам.
func DefaultRules(window time.Duration) map[domain.Platform][]PlatformRule {
	retweet := RetweetRule{}
	shared := SharedLinkRule{Window: window}
	return map[domain.Platform][]PlatformRule{
		domain.PlatformTwitter:  {retweet},
		domain.PlatformX:        {retweet},
		domain.PlatformFacebook: {shared},
		domain.PlatformLinkedIn: {shared},
		domain.PlatformReddit:   {shared},
		domain.PlatformTelegram: {shared},
	}
}

var retweetPrefix = regexp.MustCompile(`(?i)^\s*rt\s+@[\w.]+:?\s*`)

// RetweetRule распознаёт ретвиты: текст без префикса "RT @user:" совпадает с уже виденным.
type RetweetRule struct{}

// Name возвращает имя правила.
func (RetweetRule) Name() string { return "retweet" }

// Match ищет исходный твит по хешу текста без префикса.
func (RetweetRule) Match(event domain.SocialEvent, fp Fingerprint, cache Candidates) (Match, bool) {
	loc := retweetPrefix.FindStringIndex(event.Content.Text)
	if loc == nil {
		return Match{}, false
	}
	stripped := normalizeText(event.Content.Text[loc[1]:])
	if stripped == "" {
		return Match{}, false
	}
	hash := contentHash(stripped, event.Content.MediaURLs, event.Content.Hashtags)
	original, ok := cache.OldestByContentHash(hash)
	if !ok || original.ID == fp.ID {
		return Match{}, false
	}
	return Match{ID: original.ID, Confidence: 0.9}, true
}

// SharedLinkRule распознаёт репосты одной и той же ссылки одним автором.
type SharedLinkRule struct {
	Window time.Duration
}

// Name возвращает имя правила.
func (SharedLinkRule) Name() string { return "shared_link" }

// Match ищет событие того же автора с той же основной ссылкой на любой платформе.
func (r SharedLinkRule) Match(event domain.SocialEvent, fp Fingerprint, cache Candidates) (Match, bool) {
	if event.Kind != domain.EventKindShare || fp.Meta.PrimaryLink == "" || fp.Meta.AuthorID == "" {
		return Match{}, false
	}
	window := r.Window
	if window <= 0 {
		window = time.Hour
	}
	var best Fingerprint
	found := false
	for _, candidate := range cache.Window("", fp.Timestamp.Add(-window), fp.Timestamp.Add(window)) {
		if candidate.Meta.AuthorID != fp.Meta.AuthorID || candidate.Meta.PrimaryLink != fp.Meta.PrimaryLink {
			continue
		}
		if !found || olderThan(candidate, best) {
			best = candidate
			found = true
		}
	}
	if !found {
		return Match{}, false
	}
	return Match{ID: best.ID, Confidence: 0.85}, true
}

func olderThan(a, b Fingerprint) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
