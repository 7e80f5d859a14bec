package domain

import "time"

// Platform идентифицирует социальную сеть.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformX         Platform = "x"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformReddit    Platform = "reddit"
	PlatformTelegram  Platform = "telegram"
)

// EventKind описывает тип активности на платформе.
type EventKind string

const (
	EventKindPost     EventKind = "post"
	EventKindComment  EventKind = "comment"
	EventKindMention  EventKind = "mention"
	EventKindMessage  EventKind = "message"
	EventKindShare    EventKind = "share"
	EventKindReaction EventKind = "reaction"
)

// Valid сообщает, известен ли тип события.
func (k EventKind) Valid() bool {
	switch k {
	case EventKindPost, EventKindComment, EventKindMention, EventKindMessage, EventKindShare, EventKindReaction:
		return true
	}
	return false
}

// SocialEvent — неизменяемая запись об одной активности на платформе.
type SocialEvent struct {
	Platform   Platform       `json:"platform"`
	NativeID   string         `json:"native_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Kind       EventKind      `json:"kind"`
	Content    Content        `json:"content"`
	Author     Author         `json:"author"`
	Engagement Engagement     `json:"engagement"`
	Thread     *ThreadContext `json:"thread,omitempty"`
}

// Content содержит текст и вложения события.
type Content struct {
	Text      string   `json:"text"`
	MediaURLs []string `json:"media_urls,omitempty"`
	Hashtags  []string `json:"hashtags,omitempty"`
	Mentions  []string `json:"mentions,omitempty"`
}

// Author описывает автора события.
type Author struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Followers int64  `json:"followers"`
	Verified  bool   `json:"verified"`
}

// Engagement хранит счётчики вовлечённости и производный коэффициент.
type Engagement struct {
	Likes    int64   `json:"likes"`
	Shares   int64   `json:"shares"`
	Comments int64   `json:"comments"`
	Views    int64   `json:"views"`
	Rate     float64 `json:"rate"`
}

// Interactions возвращает сумму лайков, репостов и комментариев.
func (e Engagement) Interactions() int64 {
	return e.Likes + e.Shares + e.Comments
}

// EngagementRate возвращает заданный коэффициент или вычисляет его по счётчикам.
func (e Engagement) EngagementRate(followers int64) float64 {
	if e.Rate > 0 {
		return e.Rate
	}
	base := e.Views
	if base <= 0 {
		base = followers
	}
	if base <= 0 {
		return 0
	}
	return float64(e.Interactions()) / float64(base)
}

// ThreadContext связывает событие с обсуждением.
type ThreadContext struct {
	ThreadID      string `json:"thread_id"`
	ParentID      string `json:"parent_id,omitempty"`
	ReplyToAuthor string `json:"reply_to_author,omitempty"`
}

// Key возвращает ключ платформа+нативный идентификатор.
func (e SocialEvent) Key() string {
	return string(e.Platform) + ":" + e.NativeID
}

// BrandContext описывает плейбук бренда.
type BrandContext struct {
	Name       string          `json:"name"`
	Voice      string          `json:"voice"`
	Tone       string          `json:"tone"`
	Do         []string        `json:"do,omitempty"`
	Dont       []string        `json:"dont,omitempty"`
	Compliance ComplianceRules `json:"compliance"`
	Personas   []Persona       `json:"personas,omitempty"`
	Assets     []Asset         `json:"assets,omitempty"`
}

// ComplianceRules содержит запреты и обязательные оговорки бренда.
type ComplianceRules struct {
	ProhibitedTerms     []string `json:"prohibited_terms,omitempty"`
	RequiredDisclaimers []string `json:"required_disclaimers,omitempty"`
}

// Persona описывает целевую аудиторию бренда.
type Persona struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Asset описывает материал бренда.
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Kind string `json:"kind"`
}
