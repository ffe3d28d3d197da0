package server

import (
	"alfcoach/internal/domain"
)

type CreateSessionRequest struct {
	ID           *string `json:"id,omitempty"`
	Title        string  `json:"title"`
	DurationHint *string `json:"duration_hint,omitempty"`
}

type SessionResponse struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title,omitempty"`
	Step         domain.Step            `json:"step"`
	Stage        domain.Stage           `json:"stage"`
	Status       string                 `json:"status"`
	DurationHint string                 `json:"duration_hint,omitempty"`
	Captured     domain.CapturedProject `json:"captured"`
	CreatedAt    string                 `json:"created_at"`
	UpdatedAt    string                 `json:"updated_at"`
}

type SubmitTurnRequest struct {
	Text string `json:"text"`
}

type TurnResponse struct {
	ID              string      `json:"id"`
	Seq             int         `json:"seq"`
	Step            domain.Step `json:"step"`
	Text            string      `json:"text"`
	Outcome         string      `json:"outcome"`
	Reason          string      `json:"reason,omitempty"`
	DidAdvance      bool        `json:"did_advance"`
	ExtractionEmpty bool        `json:"extraction_empty"`
	NextStep        domain.Step `json:"next_step"`
	CreatedAt       string      `json:"created_at"`
}

type GoBackRequest struct {
	Target *string `json:"target,omitempty"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

func sessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		Title:        s.Title,
		Step:         s.Step,
		Stage:        s.Stage,
		Status:       s.Status,
		DurationHint: s.DurationHint,
		Captured:     s.Captured,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func mapSessions(items []domain.Session) []SessionResponse {
	out := make([]SessionResponse, 0, len(items))
	for _, s := range items {
		out = append(out, sessionResponse(s))
	}
	return out
}

func turnResponse(t domain.Turn) TurnResponse {
	return TurnResponse{
		ID:              t.ID,
		Seq:             t.Seq,
		Step:            t.Step,
		Text:            t.Text,
		Outcome:         t.Outcome,
		Reason:          t.Reason,
		DidAdvance:      t.DidAdvance,
		ExtractionEmpty: t.ExtractionEmpty,
		NextStep:        t.NextStep,
		CreatedAt:       t.CreatedAt,
	}
}

func mapTurns(items []domain.Turn) []TurnResponse {
	out := make([]TurnResponse, 0, len(items))
	for _, t := range items {
		out = append(out, turnResponse(t))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		SessionID:  e.SessionID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, eventResponse(e))
	}
	return out
}
