package crm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/rest"
)

// Client создаёт лиды и сделки в CRM по REST.
type Client struct {
	rest *rest.Client
	now  func() time.Time
}

var _ domain.CRMClient = (*Client)(nil)

// NewClient создаёт клиента CRM.
func NewClient(r *rest.Client) *Client {
	return &Client{rest: r, now: time.Now}
}

type leadRequest struct {
	Name      string  `json:"name"`
	Handle    string  `json:"handle,omitempty"`
	Source    string  `json:"source"`
	Channel   string  `json:"channel"`
	Score     float64 `json:"score"`
	Intent    string  `json:"intent,omitempty"`
	Notes     string  `json:"notes,omitempty"`
	External  string  `json:"external_ref"`
	CreatedAt string  `json:"created_at"`
}

type opportunityRequest struct {
	LeadID    string  `json:"lead_id"`
	Name      string  `json:"name"`
	Stage     string  `json:"stage"`
	Score     float64 `json:"score"`
	External  string  `json:"external_ref"`
	CreatedAt string  `json:"created_at"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// CreateLead создаёт лида и возвращает его идентификатор.
func (c *Client) CreateLead(ctx context.Context, lead domain.Lead) (string, error) {
	var out createdResponse
	err := c.rest.Do(ctx, http.MethodPost, "/leads", leadRequest{
		Name:      lead.Name,
		Handle:    lead.Handle,
		Source:    lead.Source,
		Channel:   string(lead.Platform),
		Score:     lead.Score,
		Intent:    string(lead.Intent),
		Notes:     lead.Notes,
		External:  lead.EventKey,
		CreatedAt: c.now().UTC().Format(time.RFC3339),
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("crm не вернула id лида")
	}
	return out.ID, nil
}

// CreateOpportunity создаёт сделку для существующего лида.
func (c *Client) CreateOpportunity(ctx context.Context, opp domain.Opportunity) (string, error) {
	if opp.LeadID == "" {
		return "", errors.New("не задан lead_id")
	}
	var out createdResponse
	err := c.rest.Do(ctx, http.MethodPost, "/opportunities", opportunityRequest{
		LeadID:    opp.LeadID,
		Name:      opp.Name,
		Stage:     opp.Stage,
		Score:     opp.Score,
		External:  opp.EventKey,
		CreatedAt: c.now().UTC().Format(time.RFC3339),
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("crm не вернула id сделки")
	}
	return out.ID, nil
}
