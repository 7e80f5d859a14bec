package mtproto

import (
	"context"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
)

type memQueue struct {
	jobs []domain.EventJob
}

func (q *memQueue) Enqueue(_ context.Context, job domain.EventJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Receive(context.Context) (domain.EventJob, domain.AckFunc, error) {
	return domain.EventJob{}, nil, context.Canceled
}

func channelEntities() tg.Entities {
	brand := &tg.Channel{ID: 42, Username: "brand_news", Title: "Brand"}
	brand.SetParticipantsCount(5000)
	return tg.Entities{
		Channels: map[int64]*tg.Channel{
			42: brand,
			43: {ID: 43, Username: "other", Title: "Other"},
		},
		Users: map[int64]*tg.User{
			7: {ID: 7, Username: "alice", Verified: true},
		},
	}
}

func TestConvertChannelPost(t *testing.T) {
	msg := &tg.Message{ID: 100, Date: 1700000000, Post: true, PeerID: &tg.PeerChannel{ChannelID: 42}, Message: "Новый релиз #launch @brand"}
	msg.SetViews(300)
	msg.SetForwards(5)
	ev, ok := ConvertMessage(msg, channelEntities())
	if !ok {
		t.Fatalf("ожидали событие")
	}
	if ev.NativeID != "-1000000000042:100" {
		t.Fatalf("неожиданный идентификатор: %s", ev.NativeID)
	}
	if ev.Kind != domain.EventKindPost || ev.Platform != domain.PlatformTelegram {
		t.Fatalf("неожиданный вид события: %s/%s", ev.Platform, ev.Kind)
	}
	if ev.Author.Handle != "@brand_news" || ev.Author.Followers != 5000 {
		t.Fatalf("неожиданный автор: %+v", ev.Author)
	}
	if ev.Engagement.Views != 300 || ev.Engagement.Shares != 5 {
		t.Fatalf("неожиданная вовлечённость: %+v", ev.Engagement)
	}
	if len(ev.Content.Hashtags) != 1 || ev.Content.Hashtags[0] != "launch" {
		t.Fatalf("неожиданные хэштеги: %v", ev.Content.Hashtags)
	}
	if !ev.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("неожиданное время: %v", ev.Timestamp)
	}
}

func TestConvertReplyFromUser(t *testing.T) {
	msg := &tg.Message{ID: 5, PeerID: &tg.PeerChannel{ChannelID: 42}, Message: "А когда доставка?"}
	msg.SetFromID(&tg.PeerUser{UserID: 7})
	header := &tg.MessageReplyHeader{}
	header.SetReplyToMsgID(100)
	msg.SetReplyTo(header)
	ev, ok := ConvertMessage(msg, channelEntities())
	if !ok {
		t.Fatalf("ожидали событие")
	}
	if ev.Kind != domain.EventKindComment {
		t.Fatalf("ожидали comment, получили %s", ev.Kind)
	}
	if ev.Author.Handle != "@alice" || !ev.Author.Verified {
		t.Fatalf("неожиданный автор: %+v", ev.Author)
	}
	if ev.Thread == nil || ev.Thread.ParentID != "-1000000000042:100" {
		t.Fatalf("неожиданный тред: %+v", ev.Thread)
	}
}

func TestConvertSkipsOutgoingAndEmpty(t *testing.T) {
	if _, ok := ConvertMessage(&tg.Message{Out: true, PeerID: &tg.PeerUser{UserID: 1}, Message: "x"}, tg.Entities{}); ok {
		t.Fatalf("исходящее сообщение не должно стать событием")
	}
	if _, ok := ConvertMessage(&tg.Message{PeerID: &tg.PeerUser{UserID: 1}, Message: "  "}, tg.Entities{}); ok {
		t.Fatalf("пустое сообщение не должно стать событием")
	}
}

func TestListenerFiltersChannels(t *testing.T) {
	q := &memQueue{}
	l, err := NewListener(Config{APIID: 1, APIHash: "h", BotToken: "t", Channels: []string{"@Brand_News"}}, nil, q, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ents := channelEntities()
	tracked := &tg.Message{ID: 1, PeerID: &tg.PeerChannel{ChannelID: 42}, Message: "привет"}
	foreign := &tg.Message{ID: 2, PeerID: &tg.PeerChannel{ChannelID: 43}, Message: "привет"}
	if err := l.handle(context.Background(), tracked, ents); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := l.handle(context.Background(), foreign, ents); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("ожидали одно событие, получили %d", len(q.jobs))
	}
	if q.jobs[0].Source != domain.EventSourceCollector || q.jobs[0].ID == "" {
		t.Fatalf("неожиданная задача: %+v", q.jobs[0])
	}
}

func TestNewListenerRequiresCredentials(t *testing.T) {
	if _, err := NewListener(Config{}, nil, &memQueue{}, zerolog.Nop()); err == nil {
		t.Fatalf("ожидали ошибку без api_id")
	}
}
