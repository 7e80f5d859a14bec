package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"social-pipeline/internal/domain"
)

// Fingerprint — сжатое представление события для поиска дубликатов.
type Fingerprint struct {
	ID          string
	Platform    domain.Platform
	NativeID    string
	ContentHash string
	Timestamp   time.Time
	CreatedAt   time.Time
	Meta        FingerprintMeta
}

// FingerprintMeta хранит лёгкие признаки события.
type FingerprintMeta struct {
	AuthorID     string
	TextLength   int
	MediaCount   int
	HashtagCount int
	PrimaryLink  string
}

var linkPattern = regexp.MustCompile(`https?://[^\s]+`)

func nativeKey(platform domain.Platform, nativeID string) string {
	return string(platform) + ":" + nativeID
}

func newFingerprint(id string, e domain.SocialEvent, now time.Time) Fingerprint {
	text := normalizeText(e.Content.Text)
	return Fingerprint{
		ID:          id,
		Platform:    domain.NormalizePlatform(e.Platform),
		NativeID:    e.NativeID,
		ContentHash: contentHash(text, e.Content.MediaURLs, e.Content.Hashtags),
		Timestamp:   e.Timestamp,
		CreatedAt:   now,
		Meta: FingerprintMeta{
			AuthorID:     e.Author.ID,
			TextLength:   len([]rune(text)),
			MediaCount:   len(e.Content.MediaURLs),
			HashtagCount: len(e.Content.Hashtags),
			PrimaryLink:  primaryLink(e.Content.Text),
		},
	}
}

// normalizeText приводит текст к нижнему регистру и схлопывает пробелы.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func contentHash(normalizedText string, media, hashtags []string) string {
	sortedMedia := append([]string(nil), media...)
	sort.Strings(sortedMedia)
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tags = append(tags, strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tag)), "#"))
	}
	sort.Strings(tags)

	h := sha256.New()
	h.Write([]byte(normalizedText))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sortedMedia, "\x01")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(tags, "\x01")))
	return hex.EncodeToString(h.Sum(nil))
}

func primaryLink(text string) string {
	link := linkPattern.FindString(text)
	if link == "" {
		return ""
	}
	return strings.ToLower(strings.TrimRight(link, ".,;:!?)\"'"))
}

func shortHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

func payloadHash(e domain.SocialEvent) string {
	raw, err := json.Marshal(e)
	if err != nil {
		raw = []byte(e.Key() + e.Content.Text)
	}
	return shortHash(raw)
}
