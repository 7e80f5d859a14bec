package dedup

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(cfg Config) (*Engine, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewEngine(cfg, zerolog.Nop(), WithClock(clock.Now)), clock
}

func event(platform domain.Platform, nativeID, author, text string, ts time.Time) domain.SocialEvent {
	return domain.SocialEvent{
		Platform:  platform,
		NativeID:  nativeID,
		Timestamp: ts,
		Kind:      domain.EventKindPost,
		Content:   domain.Content{Text: text},
		Author:    domain.Author{ID: author, Handle: author},
	}
}

func TestProcessExactDuplicate(t *testing.T) {
	e, clock := newTestEngine(DefaultConfig())
	ev := event(domain.PlatformInstagram, "p1", "u1", "Отличный продукт", clock.now)

	first := e.Process(ev)
	if first.IsDuplicate {
		t.Fatalf("первое событие не должно быть дубликатом")
	}
	if first.Method != domain.DetectionNone || first.Confidence != 0 {
		t.Fatalf("ожидали метод none и нулевую уверенность, получили %s %.2f", first.Method, first.Confidence)
	}

	clock.Advance(10 * time.Second)
	second := e.Process(ev)
	if !second.IsDuplicate {
		t.Fatalf("повтор должен быть дубликатом")
	}
	if second.Method != domain.DetectionExact || second.Confidence != 1.0 {
		t.Fatalf("ожидали exact 1.0, получили %s %.2f", second.Method, second.Confidence)
	}
	if second.DuplicateOf != first.UniqueID {
		t.Fatalf("ожидали ссылку на %s, получили %s", first.UniqueID, second.DuplicateOf)
	}
	if second.UniqueID == first.UniqueID {
		t.Fatalf("идентификаторы должны различаться")
	}
	if !strings.HasPrefix(first.UniqueID, "instagram_") {
		t.Fatalf("идентификатор должен начинаться с платформы: %s", first.UniqueID)
	}
}

func TestProcessContentHashPointsToOldest(t *testing.T) {
	e, clock := newTestEngine(DefaultConfig())
	base := clock.now
	first := e.Process(event(domain.PlatformInstagram, "p1", "u1", "Скидки  на всё", base))
	clock.Advance(time.Second)
	e.Process(event(domain.PlatformInstagram, "p2", "u1", "Скидки на всё!", base.Add(2*time.Hour)))
	clock.Advance(time.Second)

	res := e.Process(event(domain.PlatformInstagram, "p3", "u2", "скидки на ВСЁ", base.Add(5*time.Hour)))
	if !res.IsDuplicate || res.Method != domain.DetectionContentHash {
		t.Fatalf("ожидали дубликат по хешу, получили %+v", res)
	}
	if res.Confidence != 0.95 {
		t.Fatalf("ожидали уверенность 0.95, получили %.2f", res.Confidence)
	}
	if res.DuplicateOf != first.UniqueID {
		t.Fatalf("дубликат должен указывать на самое раннее событие")
	}
}

func TestProcessTimestampWindow(t *testing.T) {
	e, clock := newTestEngine(DefaultConfig())
	base := clock.now
	first := e.Process(event(domain.PlatformInstagram, "p1", "u1", "hello world one", base))

	res := e.Process(event(domain.PlatformInstagram, "p2", "u1", "hello world two", base.Add(20*time.Second)))
	if !res.IsDuplicate || res.Method != domain.DetectionTimestampWindow {
		t.Fatalf("ожидали дубликат по окну, получили %+v", res)
	}
	if res.DuplicateOf != first.UniqueID {
		t.Fatalf("ожидали ссылку на первое событие")
	}
	if res.Confidence <= 0.8 || res.Confidence > 1 {
		t.Fatalf("уверенность вне диапазона: %.3f", res.Confidence)
	}

	other := e.Process(event(domain.PlatformInstagram, "p3", "u9", "hello world six", base.Add(25*time.Second)))
	if other.IsDuplicate {
		t.Fatalf("другой автор не должен давать совпадение по окну: %+v", other)
	}

	far := e.Process(event(domain.PlatformInstagram, "p4", "u1", "hello world ten", base.Add(10*time.Minute)))
	if far.IsDuplicate {
		t.Fatalf("событие вне окна не должно быть дубликатом: %+v", far)
	}
}

func TestProcessRetweetRule(t *testing.T) {
	e, clock := newTestEngine(DefaultConfig())
	base := clock.now
	original := e.Process(event(domain.PlatformTwitter, "t1", "brand", "Great product launch today", base))

	res := e.Process(event(domain.PlatformTwitter, "t2", "fan", "RT @brand: Great product launch today", base.Add(5*time.Minute)))
	if !res.IsDuplicate || res.Method != domain.DetectionPlatformRule {
		t.Fatalf("ожидали дубликат по правилу ретвита, получили %+v", res)
	}
	if res.Confidence != 0.9 || res.DuplicateOf != original.UniqueID {
		t.Fatalf("неверный результат правила ретвита: %+v", res)
	}

	ig := e.Process(event(domain.PlatformInstagram, "i1", "fan", "RT @brand: Great product launch today", base.Add(6*time.Minute)))
	if ig.IsDuplicate {
		t.Fatalf("правило ретвита не применяется к instagram")
	}
}

func TestProcessSharedLinkRule(t *testing.T) {
	e, clock := newTestEngine(DefaultConfig())
	base := clock.now
	original := e.Process(event(domain.PlatformFacebook, "f1", "u1", "Читайте обзор https://example.com/review", base))

	share := event(domain.PlatformFacebook, "f2", "u1", "Всем советую! https://example.com/review.", base.Add(10*time.Minute))
	share.Kind = domain.EventKindShare
	res := e.Process(share)
	if !res.IsDuplicate || res.Method != domain.DetectionPlatformRule {
		t.Fatalf("ожидали дубликат по общей ссылке, получили %+v", res)
	}
	if res.Confidence != 0.85 || res.DuplicateOf != original.UniqueID {
		t.Fatalf("неверный результат правила ссылки: %+v", res)
	}
}

func TestEvictionBySize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCacheSize = 3
	e, clock := newTestEngine(cfg)
	base := clock.now
	texts := []string{"один", "два два", "три три три", "четыре четыре четыре четыре", "пять"}
	for i, text := range texts {
		clock.Advance(time.Minute)
		e.Process(event(domain.PlatformYouTube, "v"+string(rune('a'+i)), "", text, base.Add(time.Duration(i)*time.Minute)))
	}
	if size := e.Size(); size != 3 {
		t.Fatalf("ожидали 3 отпечатка, получили %d", size)
	}
	res := e.Process(event(domain.PlatformYouTube, "va", "", "один", base))
	if res.IsDuplicate {
		t.Fatalf("вытесненное событие не должно считаться дубликатом")
	}
	if e.Stats().Evicted == 0 {
		t.Fatalf("ожидали учёт вытеснений")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	e, clock := newTestEngine(DefaultConfig())
	e.Process(event(domain.PlatformTikTok, "k1", "u1", "старое", clock.now))
	clock.Advance(20 * time.Minute)
	e.Process(event(domain.PlatformTikTok, "k2", "u2", "новое событие", clock.now))
	clock.Advance(11 * time.Minute)

	if removed := e.Sweep(); removed != 1 {
		t.Fatalf("ожидали удаление одного отпечатка, получили %d", removed)
	}
	if e.Size() != 1 {
		t.Fatalf("ожидали один оставшийся отпечаток")
	}
	res := e.Process(event(domain.PlatformTikTok, "k1", "u1", "старое", clock.now))
	if res.IsDuplicate {
		t.Fatalf("после очистки событие снова уникально")
	}
}

func TestStatsSnapshotAndReset(t *testing.T) {
	e, clock := newTestEngine(DefaultConfig())
	ev := event(domain.PlatformReddit, "r1", "u1", "вопрос про доставку", clock.now)
	e.Process(ev)
	e.Process(ev)
	e.Process(event(domain.PlatformLinkedIn, "l1", "u2", "partnership", clock.now))

	snap := e.Stats()
	if snap.TotalProcessed != 3 || snap.DuplicatesFound != 1 || snap.UniqueEvents != 2 {
		t.Fatalf("неверные счётчики: %+v", snap)
	}
	if snap.DeduplicationRate < 0.33 || snap.DeduplicationRate > 0.34 {
		t.Fatalf("неверная доля дубликатов: %.3f", snap.DeduplicationRate)
	}
	if snap.ByPlatform[domain.PlatformReddit].Duplicates != 1 {
		t.Fatalf("ожидали дубликат в разрезе reddit")
	}
	if snap.ByMethod[domain.DetectionExact] != 1 {
		t.Fatalf("ожидали один exact")
	}
	if snap.CacheSize != 2 {
		t.Fatalf("ожидали размер кэша 2, получили %d", snap.CacheSize)
	}

	e.ResetStats()
	if got := e.Stats(); got.TotalProcessed != 0 || got.CacheSize != 2 {
		t.Fatalf("сброс должен обнулить счётчики, но не кэш: %+v", got)
	}
}

func TestProcessConcurrentUniqueIDs(t *testing.T) {
	e := NewEngine(DefaultConfig(), zerolog.Nop())
	ev := event(domain.PlatformTelegram, "m1", "u1", "одно и то же сообщение", time.Now())

	const workers = 16
	ids := make(chan domain.DedupResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- e.Process(ev)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, workers)
	unique := 0
	for res := range ids {
		if _, ok := seen[res.UniqueID]; ok {
			t.Fatalf("повторяющийся идентификатор %s", res.UniqueID)
		}
		seen[res.UniqueID] = struct{}{}
		if !res.IsDuplicate {
			unique++
		}
	}
	if unique != 1 {
		t.Fatalf("ровно одно событие должно быть уникальным, получили %d", unique)
	}
}
