package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"alfcoach/internal/config"
	"alfcoach/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertSessionTx(ctx context.Context, tx *sql.Tx, s domain.Session) error {
	captured, err := json.Marshal(s.Captured)
	if err != nil {
		return fmt.Errorf("marshal captured: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO sessions(id,title,step,stage,status,duration_hint,captured_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, nullable(s.Title), string(s.Step), string(s.Stage), s.Status, nullable(s.DurationHint), string(captured), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,COALESCE(title,''),step,stage,status,COALESCE(duration_hint,''),captured_json,created_at,updated_at FROM sessions WHERE id=?`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (domain.Session, error) {
	var s domain.Session
	var step, stage, captured string
	err := row.Scan(&s.ID, &s.Title, &step, &stage, &s.Status, &s.DurationHint, &captured, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Step = domain.Step(step)
	s.Stage = domain.Stage(stage)
	if err := json.Unmarshal([]byte(captured), &s.Captured); err != nil {
		return s, fmt.Errorf("unmarshal captured for session %s: %w", s.ID, err)
	}
	return s, nil
}

func (r Repo) ListSessions(ctx context.Context, status string) ([]domain.Session, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	query := `SELECT id,COALESCE(title,''),step,stage,status,COALESCE(duration_hint,''),captured_json,created_at,updated_at FROM sessions WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Session
	for rows.Next() {
		var s domain.Session
		var step, stage, captured string
		if err := rows.Scan(&s.ID, &s.Title, &step, &stage, &s.Status, &s.DurationHint, &captured, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Step = domain.Step(step)
		s.Stage = domain.Stage(stage)
		if err := json.Unmarshal([]byte(captured), &s.Captured); err != nil {
			return nil, fmt.Errorf("unmarshal captured for session %s: %w", s.ID, err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpdateSessionTx persists the step, stage, status and captured snapshot
// after a turn or go-back.
func (r Repo) UpdateSessionTx(ctx context.Context, tx *sql.Tx, s domain.Session) error {
	captured, err := json.Marshal(s.Captured)
	if err != nil {
		return fmt.Errorf("marshal captured: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET step=?, stage=?, status=?, captured_json=?, updated_at=? WHERE id=?`,
		string(s.Step), string(s.Stage), s.Status, string(captured), s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteSession(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) NextTurnSeq(ctx context.Context, tx *sql.Tx, sessionID string) (int, error) {
	var seq sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM turns WHERE session_id=?`, sessionID).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return int(seq.Int64) + 1, nil
}

func (r Repo) InsertTurnTx(ctx context.Context, tx *sql.Tx, t domain.Turn) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO turns(id,session_id,seq,step,text,outcome,reason,did_advance,extraction_empty,next_step,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.SessionID, t.Seq, string(t.Step), t.Text, t.Outcome, nullable(t.Reason), boolInt(t.DidAdvance), boolInt(t.ExtractionEmpty), string(t.NextStep), t.CreatedAt)
	return err
}

func (r Repo) ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,session_id,seq,step,text,outcome,COALESCE(reason,''),did_advance,extraction_empty,next_step,created_at FROM turns WHERE session_id=? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var step, next string
		var advance, empty int
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &step, &t.Text, &t.Outcome, &t.Reason, &advance, &empty, &next, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Step = domain.Step(step)
		t.NextStep = domain.Step(next)
		t.DidAdvance = advance != 0
		t.ExtractionEmpty = empty != 0
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, n int, sessionID, evtType string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if sessionID != "" {
		clauses = append(clauses, "session_id=?")
		args = append(args, sessionID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if n <= 0 {
		n = 20
	}
	args = append(args, n)
	query := `SELECT id,ts,type,COALESCE(session_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with id greater than cursor, oldest first. The
// webhook dispatcher pages through the log with it.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id,ts,type,COALESCE(session_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`
	return r.queryEvents(ctx, query, cursor, limit)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.SessionID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// GetConfig returns the workspace config stored in the DB.
func (r Repo) GetConfig(ctx context.Context) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM coach_configs WHERE id=1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

// UpsertConfig stores the workspace config in the DB.
func (r Repo) UpsertConfig(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.DB.ExecContext(ctx, `INSERT INTO coach_configs(id,config_json,created_at,updated_at) VALUES (1,?,?,?)
ON CONFLICT(id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, string(payload), now, now)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
