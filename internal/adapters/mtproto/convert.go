package mtproto

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gotd/td/tg"

	"social-pipeline/internal/adapters/telegram"
	"social-pipeline/internal/domain"
)

// channelChatOffset переводит идентификатор канала MTProto в chat_id Bot API.
const channelChatOffset = -1000000000000

// BotChatID возвращает chat_id Bot API для пира MTProto.
func BotChatID(peer tg.PeerClass) (int64, bool) {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		return channelChatOffset - p.ChannelID, true
	case *tg.PeerChat:
		return -p.ChatID, true
	case *tg.PeerUser:
		return p.UserID, true
	}
	return 0, false
}

// ConvertMessage превращает сообщение MTProto в событие соцсети.
// Исходящие и пустые сообщения пропускаются.
func ConvertMessage(msg *tg.Message, ents tg.Entities) (domain.SocialEvent, bool) {
	if msg == nil || msg.Out || strings.TrimSpace(msg.Message) == "" {
		return domain.SocialEvent{}, false
	}
	chatID, ok := BotChatID(msg.PeerID)
	if !ok {
		return domain.SocialEvent{}, false
	}

	ev := domain.SocialEvent{
		Platform:  domain.PlatformTelegram,
		NativeID:  telegram.TargetID(chatID, msg.ID),
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
		Kind:      messageKind(msg),
		Content: domain.Content{
			Text:     msg.Message,
			Hashtags: prefixedWords(msg.Message, '#'),
			Mentions: prefixedWords(msg.Message, '@'),
		},
		Author: author(msg, ents),
	}
	if views, ok := msg.GetViews(); ok {
		ev.Engagement.Views = int64(views)
	}
	if forwards, ok := msg.GetForwards(); ok {
		ev.Engagement.Shares = int64(forwards)
	}
	if replies, ok := msg.GetReplies(); ok {
		ev.Engagement.Comments = int64(replies.Replies)
	}
	if reactions, ok := msg.GetReactions(); ok {
		for _, r := range reactions.Results {
			ev.Engagement.Likes += int64(r.Count)
		}
	}
	if header, ok := msg.GetReplyTo(); ok {
		if h, ok := header.(*tg.MessageReplyHeader); ok {
			if parent, ok := h.GetReplyToMsgID(); ok {
				ev.Thread = &domain.ThreadContext{
					ThreadID: strconv.FormatInt(chatID, 10),
					ParentID: telegram.TargetID(chatID, parent),
				}
				if top, ok := h.GetReplyToTopID(); ok {
					ev.Thread.ThreadID = telegram.TargetID(chatID, top)
				}
			}
		}
	}
	return ev, true
}

func messageKind(msg *tg.Message) domain.EventKind {
	if _, ok := msg.GetReplyTo(); ok {
		return domain.EventKindComment
	}
	switch msg.PeerID.(type) {
	case *tg.PeerChannel:
		if msg.Post {
			return domain.EventKindPost
		}
		return domain.EventKindMention
	case *tg.PeerUser:
		return domain.EventKindMessage
	}
	return domain.EventKindMention
}

func author(msg *tg.Message, ents tg.Entities) domain.Author {
	if from, ok := msg.GetFromID(); ok {
		if u, ok := from.(*tg.PeerUser); ok {
			a := domain.Author{ID: strconv.FormatInt(u.UserID, 10)}
			if user, ok := ents.Users[u.UserID]; ok {
				a.Handle = userHandle(user)
				a.Verified = user.Verified
			}
			return a
		}
	}
	if p, ok := msg.PeerID.(*tg.PeerChannel); ok {
		a := domain.Author{ID: strconv.FormatInt(p.ChannelID, 10)}
		if ch, ok := ents.Channels[p.ChannelID]; ok {
			a.Handle = channelHandle(ch)
			a.Verified = ch.Verified
			if n, ok := ch.GetParticipantsCount(); ok {
				a.Followers = int64(n)
			}
		}
		return a
	}
	if p, ok := msg.PeerID.(*tg.PeerUser); ok {
		a := domain.Author{ID: strconv.FormatInt(p.UserID, 10)}
		if user, ok := ents.Users[p.UserID]; ok {
			a.Handle = userHandle(user)
			a.Verified = user.Verified
		}
		return a
	}
	return domain.Author{}
}

func userHandle(u *tg.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func channelHandle(ch *tg.Channel) string {
	if ch.Username != "" {
		return "@" + ch.Username
	}
	return ch.Title
}

// prefixedWords извлекает слова, начинающиеся с prefix, без повторов.
func prefixedWords(text string, prefix rune) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, string(prefix)) {
			continue
		}
		word := strings.TrimRightFunc(field[1:], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if word == "" {
			continue
		}
		key := strings.ToLower(word)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, word)
	}
	return out
}
