package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Route — маршрут исполнения решения.
type Route string

const (
	RouteAutoResponse Route = "auto-response"
	RouteSuggestion   Route = "suggestion"
	RouteHumanReview  Route = "human-review"
)

// ActionType — вид действия.
type ActionType string

const (
	ActionRespond  ActionType = "respond"
	ActionEscalate ActionType = "escalate"
	ActionCreate   ActionType = "create"
	ActionMonitor  ActionType = "monitor"
	ActionEngage   ActionType = "engage"
	ActionSuppress ActionType = "suppress"
)

// ActionTypes перечисляет все виды действий.
var ActionTypes = []ActionType{ActionRespond, ActionEscalate, ActionCreate, ActionMonitor, ActionEngage, ActionSuppress}

// ActionPriority — приоритет действия внутри решения.
type ActionPriority string

const (
	ActionPriorityCritical ActionPriority = "critical"
	ActionPriorityHigh     ActionPriority = "high"
	ActionPriorityMedium   ActionPriority = "medium"
	ActionPriorityLow      ActionPriority = "low"
)

// EscalationLevel — уровень эскалации на человека.
type EscalationLevel string

const (
	EscalationUrgent EscalationLevel = "urgent"
	EscalationHigh   EscalationLevel = "high"
	EscalationNormal EscalationLevel = "normal"
)

// Approval — отметка оператора об одобрении действия.
type Approval struct {
	Approved   bool   `json:"approved"`
	ApprovedBy string `json:"approved_by,omitempty"`
}

// ActionParams — параметры конкретного вида действия.
// Набор реализаций закрыт: RespondParams, EscalateParams, CreateParams,
// MonitorParams, EngageParams, SuppressParams.
type ActionParams interface {
	ActionType() ActionType
	IsApproved() bool
	approved(by string) ActionParams
}

// RespondParams — параметры ответа автору.
type RespondParams struct {
	Approval
	Tone      string `json:"tone,omitempty"`
	Template  string `json:"template,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	UseAI     bool   `json:"use_ai"`
}

// EscalateParams — параметры эскалации в поддержку.
type EscalateParams struct {
	Approval
	Team   string          `json:"team"`
	Reason string          `json:"reason"`
	Level  EscalationLevel `json:"level"`
}

// CreateParams — параметры создания записи в CRM.
type CreateParams struct {
	Approval
	Record string `json:"record"`
	Source string `json:"source,omitempty"`
}

// MonitorParams — параметры наблюдения за обсуждением.
type MonitorParams struct {
	Approval
	Window   time.Duration `json:"window"`
	Keywords []string      `json:"keywords,omitempty"`
}

// EngageParams — параметры лёгкого взаимодействия (лайк, подписка).
type EngageParams struct {
	Approval
	Kind string `json:"kind"`
}

// SuppressParams — параметры подавления реакции.
type SuppressParams struct {
	Approval
	Reason string `json:"reason"`
}

func (p RespondParams) ActionType() ActionType  { return ActionRespond }
func (p EscalateParams) ActionType() ActionType { return ActionEscalate }
func (p CreateParams) ActionType() ActionType   { return ActionCreate }
func (p MonitorParams) ActionType() ActionType  { return ActionMonitor }
func (p EngageParams) ActionType() ActionType   { return ActionEngage }
func (p SuppressParams) ActionType() ActionType { return ActionSuppress }

func (p RespondParams) IsApproved() bool  { return p.Approved }
func (p EscalateParams) IsApproved() bool { return p.Approved }
func (p CreateParams) IsApproved() bool   { return p.Approved }
func (p MonitorParams) IsApproved() bool  { return p.Approved }
func (p EngageParams) IsApproved() bool   { return p.Approved }
func (p SuppressParams) IsApproved() bool { return p.Approved }

func (p RespondParams) approved(by string) ActionParams {
	p.Approval = Approval{Approved: true, ApprovedBy: by}
	return p
}

func (p EscalateParams) approved(by string) ActionParams {
	p.Approval = Approval{Approved: true, ApprovedBy: by}
	return p
}

func (p CreateParams) approved(by string) ActionParams {
	p.Approval = Approval{Approved: true, ApprovedBy: by}
	return p
}

func (p MonitorParams) approved(by string) ActionParams {
	p.Approval = Approval{Approved: true, ApprovedBy: by}
	return p
}

func (p EngageParams) approved(by string) ActionParams {
	p.Approval = Approval{Approved: true, ApprovedBy: by}
	return p
}

func (p SuppressParams) approved(by string) ActionParams {
	p.Approval = Approval{Approved: true, ApprovedBy: by}
	return p
}

// Action — единица работы, прикреплённая к решению маршрутизации.
type Action struct {
	ID               string         `json:"id"`
	Type             ActionType     `json:"type"`
	Priority         ActionPriority `json:"priority"`
	Confidence       float64        `json:"confidence"`
	Automated        bool           `json:"automated"`
	RequiresApproval bool           `json:"requires_approval"`
	Params           ActionParams   `json:"-"`
}

// Approve возвращает копию действия с отметкой об одобрении.
func (a Action) Approve(by string) Action {
	if a.Params != nil {
		a.Params = a.Params.approved(by)
	}
	return a
}

// Approved сообщает, одобрено ли действие.
func (a Action) Approved() bool {
	return a.Params != nil && a.Params.IsApproved()
}

type actionJSON struct {
	ID               string          `json:"id"`
	Type             ActionType      `json:"type"`
	Priority         ActionPriority  `json:"priority"`
	Confidence       float64         `json:"confidence"`
	Automated        bool            `json:"automated"`
	RequiresApproval bool            `json:"requires_approval"`
	Params           json.RawMessage `json:"params,omitempty"`
}

// MarshalJSON сериализует действие вместе с параметрами.
func (a Action) MarshalJSON() ([]byte, error) {
	raw := actionJSON{
		ID:               a.ID,
		Type:             a.Type,
		Priority:         a.Priority,
		Confidence:       a.Confidence,
		Automated:        a.Automated,
		RequiresApproval: a.RequiresApproval,
	}
	if a.Params != nil {
		params, err := json.Marshal(a.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		raw.Params = params
	}
	return json.Marshal(raw)
}

// UnmarshalJSON восстанавливает типизированные параметры по полю type.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	params, err := decodeParams(raw.Type, raw.Params)
	if err != nil {
		return err
	}
	*a = Action{
		ID:               raw.ID,
		Type:             raw.Type,
		Priority:         raw.Priority,
		Confidence:       raw.Confidence,
		Automated:        raw.Automated,
		RequiresApproval: raw.RequiresApproval,
		Params:           params,
	}
	return nil
}

func decodeParams(t ActionType, data json.RawMessage) (ActionParams, error) {
	var target ActionParams
	switch t {
	case ActionRespond:
		var p RespondParams
		if err := unmarshalOptional(data, &p); err != nil {
			return nil, err
		}
		target = p
	case ActionEscalate:
		var p EscalateParams
		if err := unmarshalOptional(data, &p); err != nil {
			return nil, err
		}
		target = p
	case ActionCreate:
		var p CreateParams
		if err := unmarshalOptional(data, &p); err != nil {
			return nil, err
		}
		target = p
	case ActionMonitor:
		var p MonitorParams
		if err := unmarshalOptional(data, &p); err != nil {
			return nil, err
		}
		target = p
	case ActionEngage:
		var p EngageParams
		if err := unmarshalOptional(data, &p); err != nil {
			return nil, err
		}
		target = p
	case ActionSuppress:
		var p SuppressParams
		if err := unmarshalOptional(data, &p); err != nil {
			return nil, err
		}
		target = p
	default:
		return nil, fmt.Errorf("неизвестный тип действия %q", t)
	}
	return target, nil
}

func unmarshalOptional(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

// EscalationInfo — детали передачи события человеку.
type EscalationInfo struct {
	Level     EscalationLevel `json:"level"`
	Team      string          `json:"team"`
	Reason    string          `json:"reason"`
	QueueWait time.Duration   `json:"queue_wait"`
}

// ApprovalRequirement — требование одобрения для маршрута suggestion.
type ApprovalRequirement struct {
	Required bool   `json:"required"`
	Reason   string `json:"reason"`
}

// OverrideRecord фиксирует сработавшее правило переопределения.
type OverrideRecord struct {
	Rule   string `json:"rule"`
	Effect string `json:"effect"`
	Detail string `json:"detail,omitempty"`
}

// RoutingMetadata делает маршрутизацию проверяемой.
type RoutingMetadata struct {
	BaseConfidence float64          `json:"base_confidence"`
	PriorityScore  float64          `json:"priority_score"`
	Overrides      []OverrideRecord `json:"overrides,omitempty"`
}

// RoutingDecision — итог маршрутизации события.
type RoutingDecision struct {
	ID         string               `json:"id"`
	EventKey   string               `json:"event_key"`
	Route      Route                `json:"route"`
	Confidence float64              `json:"confidence"`
	Reasoning  string               `json:"reasoning"`
	Actions    []Action             `json:"actions"`
	Metadata   RoutingMetadata      `json:"metadata"`
	Escalation *EscalationInfo      `json:"escalation,omitempty"`
	Approval   *ApprovalRequirement `json:"approval,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}
