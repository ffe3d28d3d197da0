package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the conversation engine. capture.empty is kept
// separate from stage.held so a parser mismatch is distinguishable from a
// genuinely incomplete record when reading the log.
const (
	TypeSessionCreated   = "session.created"
	TypeSessionCompleted = "session.completed"
	TypeSessionBack      = "session.back"
	TypeTurnRejected     = "turn.rejected"
	TypeCaptureMerged    = "capture.merged"
	TypeCaptureEmpty     = "capture.empty"
	TypeStageAdvanced    = "stage.advanced"
	TypeStageHeld        = "stage.held"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, sessionID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,session_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(sessionID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
