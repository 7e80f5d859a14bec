package ticketing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/rest"
)

// Client создаёт тикеты поддержки как диалоги в helpdesk с API в стиле Chatwoot.
type Client struct {
	rest      *rest.Client
	accountID int
	inboxID   int
	log       zerolog.Logger
}

var _ domain.TicketClient = (*Client)(nil)

// NewClient создаёт клиента helpdesk.
func NewClient(r *rest.Client, accountID, inboxID int, log zerolog.Logger) *Client {
	return &Client{rest: r, accountID: accountID, inboxID: inboxID, log: log}
}

type contactRequest struct {
	InboxID    int    `json:"inbox_id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

type contactResponse struct {
	Payload struct {
		Contact struct {
			ID int64 `json:"id"`
		} `json:"contact"`
	} `json:"payload"`
}

type conversationRequest struct {
	InboxID          int               `json:"inbox_id"`
	ContactID        int64             `json:"contact_id"`
	Status           string            `json:"status"`
	CustomAttributes map[string]string `json:"custom_attributes"`
}

type conversationResponse struct {
	ID int64 `json:"id"`
}

type messageRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	Private     bool   `json:"private"`
}

type labelsRequest struct {
	Labels []string `json:"labels"`
}

// CreateTicket заводит контакт автора, открывает диалог и прикладывает описание приватной заметкой.
// Сбой заметки или меток не отменяет созданный тикет.
func (c *Client) CreateTicket(ctx context.Context, req domain.TicketRequest) (string, error) {
	base := fmt.Sprintf("/api/v1/accounts/%d", c.accountID)

	var contact contactResponse
	err := c.rest.Do(ctx, http.MethodPost, base+"/contacts", contactRequest{
		InboxID:    c.inboxID,
		Name:       contactName(req.Requester),
		Identifier: string(req.Platform) + ":" + req.Requester.ID,
	}, &contact)
	if err != nil {
		return "", fmt.Errorf("создание контакта: %w", err)
	}
	if contact.Payload.Contact.ID == 0 {
		return "", errors.New("helpdesk не вернул id контакта")
	}

	var conv conversationResponse
	err = c.rest.Do(ctx, http.MethodPost, base+"/conversations", conversationRequest{
		InboxID:   c.inboxID,
		ContactID: contact.Payload.Contact.ID,
		Status:    "open",
		CustomAttributes: map[string]string{
			"subject":     req.Subject,
			"priority":    string(req.Priority),
			"team":        req.Team,
			"platform":    string(req.Platform),
			"source_url":  req.SourceURL,
			"event_key":   req.EventKey,
			"decision_id": req.DecisionID,
		},
	}, &conv)
	if err != nil {
		return "", fmt.Errorf("создание диалога: %w", err)
	}
	if conv.ID == 0 {
		return "", errors.New("helpdesk не вернул id диалога")
	}
	ticketID := strconv.FormatInt(conv.ID, 10)
	convPath := fmt.Sprintf("%s/conversations/%d", base, conv.ID)

	if err := c.rest.Do(ctx, http.MethodPost, convPath+"/messages", messageRequest{
		Content:     req.Description,
		MessageType: "outgoing",
		Private:     true,
	}, nil); err != nil {
		c.log.Warn().Err(err).Str("ticket_id", ticketID).Msg("не удалось добавить описание тикета")
	}
	if labels := ticketLabels(req); len(labels) > 0 {
		if err := c.rest.Do(ctx, http.MethodPost, convPath+"/labels", labelsRequest{Labels: labels}, nil); err != nil {
			c.log.Warn().Err(err).Str("ticket_id", ticketID).Msg("не удалось проставить метки тикета")
		}
	}
	return ticketID, nil
}

func contactName(a domain.Author) string {
	if a.Handle != "" {
		return a.Handle
	}
	if a.ID != "" {
		return a.ID
	}
	return "unknown"
}

func ticketLabels(req domain.TicketRequest) []string {
	labels := make([]string, 0, len(req.Tags)+2)
	if req.Priority != "" {
		labels = append(labels, "priority-"+string(req.Priority))
	}
	if req.Team != "" {
		labels = append(labels, "team-"+req.Team)
	}
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(strings.ToLower(tag)); tag != "" {
			labels = append(labels, tag)
		}
	}
	return labels
}
