// Package flow is the stage controller: it orchestrates assess, capture and
// validate for each conversation turn and owns the decision to advance, hold
// or regress the stage. "Not yet" outcomes are values on the returned turn,
// never errors; only contract violations (unknown step tags, missing
// sessions) surface as errors.
package flow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"alfcoach/internal/assess"
	"alfcoach/internal/capture"
	"alfcoach/internal/config"
	"alfcoach/internal/domain"
	"alfcoach/internal/events"
	"alfcoach/internal/repo"
	"alfcoach/internal/validate"
)

// ErrSessionComplete is returned when a turn or go-back targets a session
// that already reached the terminal step.
var ErrSessionComplete = errors.New("session already completed")

// CadencePlanner maps a wizard duration hint ("6 weeks") to suggested
// phase/milestone counts. The default planner ignores the hint and returns
// the configured minimums; richer mappings plug in here.
type CadencePlanner interface {
	SuggestedPhaseCount(durationHint string) int
	SuggestedMilestoneCount(durationHint string) int
}

type gatePlanner struct {
	gates config.Gates
}

func (p gatePlanner) SuggestedPhaseCount(string) int     { return p.gates.MinPhases }
func (p gatePlanner) SuggestedMilestoneCount(string) int { return p.gates.MinMilestones }

// NewPlanner returns the default gate-backed planner.
func NewPlanner(g config.Gates) CadencePlanner {
	return gatePlanner{gates: g}
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Extractor capture.PhaseExtractor
	Planner   CadencePlanner
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Extractor: capture.DelimiterExtractor{},
		Planner:   NewPlanner(cfg.Gates),
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// StartOptions are parameters for creating a session.
type StartOptions struct {
	ID           string
	Title        string
	DurationHint string
	ActorID      string
}

// StartSession creates a session at the first ideation sub-step with an
// empty captured record.
func (e Engine) StartSession(ctx context.Context, opts StartOptions) (domain.Session, error) {
	if e.Config == nil {
		return domain.Session{}, errors.New("config not loaded")
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	s := domain.Session{
		ID:           id,
		Title:        opts.Title,
		Step:         domain.StepBigIdea,
		Stage:        domain.StageIdeation,
		Status:       "active",
		DurationHint: opts.DurationHint,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSessionTx(ctx, tx, s); err != nil {
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TypeSessionCreated, s.ID, "session", s.ID, opts.ActorID, events.EventPayload{
		"step":          string(s.Step),
		"duration_hint": s.DurationHint,
	}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// backCommands are the user-issued go-back intents intercepted before
// assessment.
var backCommands = map[string]bool{
	"go back":        true,
	"back":           true,
	"previous":       true,
	"go back a step": true,
}

// Submit runs one assess/capture/validate/transition cycle for the session.
// The returned turn carries the outcome and the reason the user sees.
func (e Engine) Submit(ctx context.Context, sessionID, text, actorID string) (domain.Turn, error) {
	if e.Config == nil {
		return domain.Turn{}, errors.New("config not loaded")
	}
	s, err := e.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Turn{}, err
	}
	if s.Step == domain.StepCompleted {
		return domain.Turn{}, ErrSessionComplete
	}
	if backCommands[strings.ToLower(strings.TrimSpace(text))] {
		return e.backTurn(ctx, s, text, actorID)
	}

	verdict, err := assess.Assess(s.Step, text, e.Config.Assess)
	if err != nil {
		return domain.Turn{}, err
	}
	if !verdict.OK {
		turn := e.newTurn(s, text, domain.OutcomeRejected, verdict.Reason, s.Step)
		return turn, e.persistTurn(ctx, s, turn, events.TypeTurnRejected, events.EventPayload{"reason": verdict.Reason})
	}

	extractor := e.Extractor
	if extractor == nil {
		extractor = capture.DelimiterExtractor{}
	}
	delta, err := capture.ForStep(s.Step, text, deliverablesFocus(s.Captured, e.Config.Gates), extractor)
	if err != nil {
		return domain.Turn{}, err
	}
	merged := capture.Merge(s.Captured, delta)
	extractionEmpty := delta.Empty() && isListStep(s.Step)

	result, err := validate.Validate(s.Step, merged, e.Config.Gates)
	if err != nil {
		return domain.Turn{}, err
	}

	s.Captured = merged
	var turn domain.Turn
	switch {
	case result.OK:
		next, err := domain.NextStep(s.Step)
		if err != nil {
			return domain.Turn{}, err
		}
		turn = e.newTurn(s, text, domain.OutcomeAdvanced, "", next)
		turn.DidAdvance = true
		err = e.advance(ctx, s, turn, next, actorID, extractionEmpty)
		return turn, err
	case extractionEmpty:
		reason := extractionEmptyReason(s.Step)
		turn = e.newTurn(s, text, domain.OutcomeHeld, reason, s.Step)
		turn.ExtractionEmpty = true
		return turn, e.persistHeld(ctx, s, turn, actorID, result, true)
	default:
		turn = e.newTurn(s, text, domain.OutcomeHeld, strings.Join(result.Missing, "; "), s.Step)
		return turn, e.persistHeld(ctx, s, turn, actorID, result, false)
	}
}

// GoBack re-enters an earlier step without clearing its captured data. An
// empty target means the previous step.
func (e Engine) GoBack(ctx context.Context, sessionID string, target domain.Step, actorID string) (domain.Session, error) {
	s, err := e.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if s.Step == domain.StepCompleted {
		return domain.Session{}, ErrSessionComplete
	}
	moved, err := regress(s, target)
	if err != nil {
		return domain.Session{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()
	moved.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateSessionTx(ctx, tx, moved); err != nil {
		return domain.Session{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeSessionBack, s.ID, "session", s.ID, actorID, events.EventPayload{
		"from": string(s.Step),
		"to":   string(moved.Step),
	}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	return moved, nil
}

// Status is a progress summary for the UI layer.
type Status struct {
	SessionID           string          `json:"session_id"`
	Step                domain.Step     `json:"step"`
	Stage               domain.Stage    `json:"stage"`
	SessionStatus       string          `json:"status"`
	Gate                validate.Result `json:"gate"`
	SuggestedPhases     int             `json:"suggested_phases"`
	SuggestedMilestones int             `json:"suggested_milestones"`
	Turns               int             `json:"turns"`
}

func (e Engine) SessionStatus(ctx context.Context, sessionID string) (Status, error) {
	s, err := e.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	gate, err := validate.Validate(s.Step, s.Captured, e.Config.Gates)
	if err != nil {
		return Status{}, err
	}
	turns, err := e.Repo.ListTurns(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	planner := e.Planner
	if planner == nil {
		planner = NewPlanner(e.Config.Gates)
	}
	return Status{
		SessionID:           s.ID,
		Step:                s.Step,
		Stage:               s.Stage,
		SessionStatus:       s.Status,
		Gate:                gate,
		SuggestedPhases:     planner.SuggestedPhaseCount(s.DurationHint),
		SuggestedMilestones: planner.SuggestedMilestoneCount(s.DurationHint),
		Turns:               len(turns),
	}, nil
}

// --- internals ---

func (e Engine) newTurn(s domain.Session, text, outcome, reason string, next domain.Step) domain.Turn {
	return domain.Turn{
		ID:        uuid.New().String(),
		SessionID: s.ID,
		Step:      s.Step,
		Text:      text,
		Outcome:   outcome,
		Reason:    reason,
		NextStep:  next,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
}

func (e Engine) backTurn(ctx context.Context, s domain.Session, text, actorID string) (domain.Turn, error) {
	moved, err := regress(s, "")
	if err != nil {
		// Already at the first step; hold with a usable reason instead of
		// erroring, since this is user input, not a caller bug.
		turn := e.newTurn(s, text, domain.OutcomeHeld, "You're at the first step; there is nothing to go back to.", s.Step)
		return turn, e.persistTurn(ctx, s, turn, events.TypeStageHeld, events.EventPayload{"reason": turn.Reason})
	}
	turn := e.newTurn(s, text, domain.OutcomeBack, "", moved.Step)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Turn{}, err
	}
	defer tx.Rollback()
	moved.UpdatedAt = turn.CreatedAt
	if err := e.Repo.UpdateSessionTx(ctx, tx, moved); err != nil {
		return domain.Turn{}, err
	}
	if err := e.insertTurnTx(ctx, tx, &turn); err != nil {
		return domain.Turn{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeSessionBack, s.ID, "session", s.ID, actorID, events.EventPayload{
		"from": string(s.Step),
		"to":   string(moved.Step),
	}); err != nil {
		return domain.Turn{}, err
	}
	return turn, tx.Commit()
}

func regress(s domain.Session, target domain.Step) (domain.Session, error) {
	if target == "" {
		prev, err := domain.PrevStep(s.Step)
		if err != nil {
			return domain.Session{}, err
		}
		target = prev
	}
	targetIdx, err := domain.StepIndex(target)
	if err != nil {
		return domain.Session{}, err
	}
	currentIdx, err := domain.StepIndex(s.Step)
	if err != nil {
		return domain.Session{}, err
	}
	if targetIdx >= currentIdx {
		return domain.Session{}, fmt.Errorf("cannot go back from %q to %q", s.Step, target)
	}
	stage, err := domain.StageOf(target)
	if err != nil {
		return domain.Session{}, err
	}
	s.Step = target
	s.Stage = stage
	s.Status = "active"
	return s, nil
}

func (e Engine) advance(ctx context.Context, s domain.Session, turn domain.Turn, next domain.Step, actorID string, extractionEmpty bool) error {
	from := s.Step
	stage, err := domain.StageOf(next)
	if err != nil {
		return err
	}
	s.Step = next
	s.Stage = stage
	if next == domain.StepCompleted {
		s.Status = "completed"
	}
	s.UpdatedAt = turn.CreatedAt
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSessionTx(ctx, tx, s); err != nil {
		return err
	}
	if err := e.insertTurnTx(ctx, tx, &turn); err != nil {
		return err
	}
	if err := e.appendCaptureEvent(ctx, tx, s.ID, actorID, extractionEmpty); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TypeStageAdvanced, s.ID, "session", s.ID, actorID, events.EventPayload{
		"from": string(from),
		"to":   string(next),
	}); err != nil {
		return err
	}
	if next == domain.StepCompleted {
		if err := e.Events.Append(ctx, tx, events.TypeSessionCompleted, s.ID, "session", s.ID, actorID, events.EventPayload{}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (e Engine) persistHeld(ctx context.Context, s domain.Session, turn domain.Turn, actorID string, gate validate.Result, extractionEmpty bool) error {
	s.UpdatedAt = turn.CreatedAt
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSessionTx(ctx, tx, s); err != nil {
		return err
	}
	if err := e.insertTurnTx(ctx, tx, &turn); err != nil {
		return err
	}
	if err := e.appendCaptureEvent(ctx, tx, s.ID, actorID, extractionEmpty); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TypeStageHeld, s.ID, "session", s.ID, actorID, events.EventPayload{
		"step":    string(turn.Step),
		"missing": gate.Missing,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// persistTurn writes a turn that did not touch the captured record
// (rejections and first-step back attempts).
func (e Engine) persistTurn(ctx context.Context, s domain.Session, turn domain.Turn, evtType string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.insertTurnTx(ctx, tx, &turn); err != nil {
		return err
	}
	if payload == nil {
		payload = events.EventPayload{}
	}
	payload["step"] = string(turn.Step)
	if err := e.Events.Append(ctx, tx, evtType, s.ID, "turn", turn.ID, "", payload); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) insertTurnTx(ctx context.Context, tx *sql.Tx, turn *domain.Turn) error {
	seq, err := e.Repo.NextTurnSeq(ctx, tx, turn.SessionID)
	if err != nil {
		return err
	}
	turn.Seq = seq
	return e.Repo.InsertTurnTx(ctx, tx, *turn)
}

func (e Engine) appendCaptureEvent(ctx context.Context, tx *sql.Tx, sessionID, actorID string, extractionEmpty bool) error {
	evtType := events.TypeCaptureMerged
	if extractionEmpty {
		evtType = events.TypeCaptureEmpty
	}
	return e.Events.Append(ctx, tx, evtType, sessionID, "session", sessionID, actorID, events.EventPayload{})
}

func isListStep(step domain.Step) bool {
	return step == domain.StepJourney || step == domain.StepDeliverables
}

func extractionEmptyReason(step domain.Step) string {
	if step == domain.StepJourney {
		return "I couldn't pick out any phases from that. Put each phase on its own line, like \"Research: interviews, site visits\"."
	}
	return "I couldn't pick out any deliverables from that. Try naming them one per line, like \"Milestone: first draft\"."
}

func deliverablesFocus(captured domain.CapturedProject, g config.Gates) capture.Bucket {
	switch {
	case len(captured.Deliverables.Milestones) < g.MinMilestones:
		return capture.BucketMilestones
	case len(captured.Deliverables.Artifacts) < g.MinArtifacts:
		return capture.BucketArtifacts
	default:
		return capture.BucketRubric
	}
}
