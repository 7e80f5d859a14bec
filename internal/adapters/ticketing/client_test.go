package ticketing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
	"social-pipeline/internal/infra/rest"
)

func newRest(t *testing.T, cfg rest.Config) *rest.Client {
	t.Helper()
	r, err := rest.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("rest.New: %v", err)
	}
	return r
}

func newHelpdesk(t *testing.T, failNote bool) (*httptest.Server, *[]string, *conversationRequest) {
	t.Helper()
	var calls []string
	conv := &conversationRequest{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/7/contacts", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "contact")
		var req contactRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Identifier != "twitter:u-1" || req.InboxID != 3 {
			t.Errorf("неожиданный контакт %+v", req)
		}
		_, _ = w.Write([]byte(`{"payload":{"contact":{"id":11}}}`))
	})
	mux.HandleFunc("/api/v1/accounts/7/conversations", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "conversation")
		_ = json.NewDecoder(r.Body).Decode(conv)
		_, _ = w.Write([]byte(`{"id":501}`))
	})
	mux.HandleFunc("/api/v1/accounts/7/conversations/501/messages", func(w http.ResponseWriter, _ *http.Request) {
		calls = append(calls, "note")
		if failNote {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/v1/accounts/7/conversations/501/labels", func(w http.ResponseWriter, _ *http.Request) {
		calls = append(calls, "labels")
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls, conv
}

func ticketRequest() domain.TicketRequest {
	return domain.TicketRequest{
		Subject:     "Жалоба в twitter",
		Description: "Товар пришёл сломанным",
		Priority:    domain.TicketPriorityUrgent,
		Team:        "support",
		Requester:   domain.Author{ID: "u-1", Handle: "angry"},
		Platform:    domain.PlatformTwitter,
		EventKey:    "twitter:tw-1",
		DecisionID:  "dec-1",
		Tags:        []string{"Complaint"},
	}
}

func TestCreateTicket(t *testing.T) {
	srv, calls, conv := newHelpdesk(t, false)
	c := NewClient(newRest(t, rest.Config{Name: "tickets", BaseURL: srv.URL}), 7, 3, zerolog.Nop())

	id, err := c.CreateTicket(context.Background(), ticketRequest())
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if id != "501" {
		t.Fatalf("ожидался тикет 501, получено %q", id)
	}
	want := []string{"contact", "conversation", "note", "labels"}
	if len(*calls) != len(want) {
		t.Fatalf("ожидались вызовы %v, получено %v", want, *calls)
	}
	for i := range want {
		if (*calls)[i] != want[i] {
			t.Fatalf("ожидались вызовы %v, получено %v", want, *calls)
		}
	}
	if conv.ContactID != 11 || conv.CustomAttributes["priority"] != "urgent" || conv.CustomAttributes["decision_id"] != "dec-1" {
		t.Fatalf("неверные атрибуты диалога: %+v", conv)
	}
}

func TestCreateTicketNoteFailureKeepsTicket(t *testing.T) {
	srv, _, _ := newHelpdesk(t, true)
	c := NewClient(newRest(t, rest.Config{Name: "tickets", BaseURL: srv.URL}), 7, 3, zerolog.Nop())
	id, err := c.CreateTicket(context.Background(), ticketRequest())
	if err != nil || id != "501" {
		t.Fatalf("сбой заметки не должен отменять тикет: id=%q err=%v", id, err)
	}
}

func TestCreateTicketContactFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := NewClient(newRest(t, rest.Config{Name: "tickets", BaseURL: srv.URL}), 7, 3, zerolog.Nop())
	if _, err := c.CreateTicket(context.Background(), ticketRequest()); err == nil {
		t.Fatalf("ожидалась ошибка авторизации")
	}
}

func TestTicketLabels(t *testing.T) {
	labels := ticketLabels(ticketRequest())
	want := []string{"priority-urgent", "team-support", "complaint"}
	if len(labels) != len(want) {
		t.Fatalf("ожидалось %v, получено %v", want, labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("ожидалось %v, получено %v", want, labels)
		}
	}
}
