package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestActionApprovalSurvivesStorage(t *testing.T) {
	action := Action{
		ID:               "a1",
		Type:             ActionRespond,
		Priority:         ActionPriorityHigh,
		RequiresApproval: true,
		Params:           RespondParams{Tone: "empathetic", MaxLength: 280, ReplyToID: "42"},
	}
	if action.Approved() {
		t.Fatalf("новое действие не должно быть одобрено")
	}

	raw, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var stored Action
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	params, ok := stored.Params.(RespondParams)
	if !ok || params.Tone != "empathetic" || params.ReplyToID != "42" {
		t.Fatalf("параметры потеряны: %#v", stored.Params)
	}

	approved := stored.Approve("@anna")
	if !approved.Approved() || stored.Approved() {
		t.Fatalf("Approve должен вернуть одобренную копию, не меняя исходное действие")
	}
	if p := approved.Params.(RespondParams); p.ApprovedBy != "@anna" {
		t.Fatalf("ожидали отметку оператора, получили %q", p.ApprovedBy)
	}
}

func TestActionUnmarshalUnknownType(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`{"id":"x","type":"teleport"}`), &a); err == nil {
		t.Fatalf("ожидали ошибку для неизвестного типа")
	}
}

func TestActionUnmarshalWithoutParams(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`{"id":"x","type":"monitor"}`), &a); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := a.Params.(MonitorParams); !ok {
		t.Fatalf("ожидали пустые MonitorParams, получили %T", a.Params)
	}
}

func TestValidateEvent(t *testing.T) {
	valid := SocialEvent{Platform: PlatformTwitter, NativeID: "1", Timestamp: time.Now(), Kind: EventKindMention}
	if err := ValidateEvent(valid); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	broken := valid
	broken.Engagement.Likes = -1
	var verr *ValidationError
	if err := ValidateEvent(broken); !errors.As(err, &verr) || verr.Field != "event.engagement" {
		t.Fatalf("ожидали ошибку поля engagement, получили %v", err)
	}
	noKind := valid
	noKind.Kind = ""
	if err := ValidateEvent(noKind); err == nil {
		t.Fatalf("ожидали ошибку для пустого kind")
	}
}

func TestValidateAnalysis(t *testing.T) {
	s := SentimentResult{Label: SentimentNegative, Score: -0.5, Confidence: 0.9}
	i := IntentResult{Primary: IntentCandidate{Type: IntentComplaint, Confidence: 0.8}, Urgency: Urgency{Level: UrgencyHigh, Score: 0.8}}
	if err := ValidateAnalysis(s, i); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	s.Score = 1.5
	if err := ValidateAnalysis(s, i); err == nil {
		t.Fatalf("ожидали ошибку для score вне диапазона")
	}
	s.Score = 0
	i.Urgency.Level = "eventually"
	if err := ValidateAnalysis(s, i); err == nil {
		t.Fatalf("ожидали ошибку для неизвестной срочности")
	}
}
