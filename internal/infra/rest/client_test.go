package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

func mustNew(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "crm.local", "ftp://crm.local", "http://"} {
		if _, err := New(Config{Name: "crm", BaseURL: raw}, zerolog.Nop()); err == nil {
			t.Fatalf("%q: ожидали ошибку конфигурации", raw)
		}
	}
}

func TestDoDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("нет токена")
		}
		if r.URL.Path != "/items" || r.Method != http.MethodPost {
			t.Errorf("неожиданный запрос %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	c := mustNew(t, Config{Name: "test", BaseURL: srv.URL + "/", Token: "tok"})
	var out struct {
		ID string `json:"id"`
	}
	if err := c.Do(context.Background(), http.MethodPost, "/items", map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out.ID != "42" {
		t.Fatalf("ожидался id 42, получено %q", out.ID)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := mustNew(t, Config{Name: "flaky", BaseURL: srv.URL, Trip: 2, Cooldown: time.Minute})
	for i := 0; i < 2; i++ {
		err := c.Do(context.Background(), http.MethodGet, "/", nil, nil)
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("ожидалась StatusError 503, получено %v", err)
		}
	}
	if c.State() != gobreaker.StateOpen {
		t.Fatalf("предохранитель должен разомкнуться, состояние %s", c.State())
	}
	err := c.Do(context.Background(), http.MethodGet, "/", nil, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("ожидалась ErrOpenState, получено %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("разомкнутый предохранитель не должен пропускать запросы, вызовов %d", calls.Load())
	}
}

func TestClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := mustNew(t, Config{Name: "strict", BaseURL: srv.URL, Trip: 1})
	for i := 0; i < 3; i++ {
		if err := c.Do(context.Background(), http.MethodGet, "/", nil, nil); err == nil {
			t.Fatalf("ожидалась ошибка 422")
		}
	}
	if c.State() != gobreaker.StateClosed {
		t.Fatalf("ошибки 4xx не должны размыкать предохранитель, состояние %s", c.State())
	}
}

func TestRouteOf(t *testing.T) {
	got := routeOf("/api/v1/accounts/3/conversations/120/messages?x=1")
	if got != "/api/v1/accounts/:id/conversations/:id/messages" {
		t.Fatalf("неожиданный маршрут %q", got)
	}
}
