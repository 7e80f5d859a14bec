package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-pipeline/internal/domain"
)

type failingSink struct{ calls int }

func (f *failingSink) Append(context.Context, domain.AuditRecord) error {
	f.calls++
	return errors.New("postgres недоступен")
}

func TestLogSinkWritesFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))
	err := sink.Append(context.Background(), domain.AuditRecord{
		Event:      domain.AuditEventDecision,
		EventKey:   "twitter:1",
		DecisionID: "d1",
		Route:      domain.RouteSuggestion,
		Confidence: 0.8,
		Metadata:   map[string]any{"actions": 2},
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("лог не в JSON: %v", err)
	}
	if line["audit_event"] != domain.AuditEventDecision || line["route"] != "suggestion" || line["component"] != "audit" {
		t.Fatalf("неожиданная запись: %v", line)
	}
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	failing := &failingSink{}
	m := Multi{failing, NewLogSink(zerolog.New(&buf))}
	if err := m.Append(context.Background(), domain.AuditRecord{Event: domain.AuditEventDuplicate, EventKey: "x:1"}); err == nil {
		t.Fatalf("ожидали ошибку первого журнала")
	}
	if failing.calls != 1 || buf.Len() == 0 {
		t.Fatalf("запись должна дойти до всех журналов")
	}
}
