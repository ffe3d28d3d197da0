package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownStep signals a caller passed a step tag outside the closed set.
// It is a contract violation, not a user-facing outcome.
var ErrUnknownStep = errors.New("unknown step")

// Stage groups the ordered conversation into its five coarse phases.
type Stage string

const (
	StageIdeation     Stage = "ideation"
	StageJourney      Stage = "journey"
	StageDeliverables Stage = "deliverables"
	StageCompletion   Stage = "completion"
	StageCompleted    Stage = "completed"
)

// Step is the fine-grained position within the conversation. The ideation
// stage has three sub-steps; the remaining stages are single steps.
type Step string

const (
	StepBigIdea           Step = "big_idea"
	StepEssentialQuestion Step = "essential_question"
	StepChallenge         Step = "challenge"
	StepJourney           Step = "journey"
	StepDeliverables      Step = "deliverables"
	StepCompletion        Step = "completion"
	StepCompleted         Step = "completed"
)

// StepOrder is the fixed forward order of the conversation.
var StepOrder = []Step{
	StepBigIdea,
	StepEssentialQuestion,
	StepChallenge,
	StepJourney,
	StepDeliverables,
	StepCompletion,
	StepCompleted,
}

// StepIndex returns the ordinal of a step in StepOrder.
func StepIndex(s Step) (int, error) {
	for i, v := range StepOrder {
		if v == s {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

// StageOf maps a step to its stage.
func StageOf(s Step) (Stage, error) {
	switch s {
	case StepBigIdea, StepEssentialQuestion, StepChallenge:
		return StageIdeation, nil
	case StepJourney:
		return StageJourney, nil
	case StepDeliverables:
		return StageDeliverables, nil
	case StepCompletion:
		return StageCompletion, nil
	case StepCompleted:
		return StageCompleted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
	}
}

// NextStep returns the step after s. Calling it on the terminal step is a
// caller bug.
func NextStep(s Step) (Step, error) {
	i, err := StepIndex(s)
	if err != nil {
		return "", err
	}
	if i == len(StepOrder)-1 {
		return "", fmt.Errorf("step %q is terminal", s)
	}
	return StepOrder[i+1], nil
}

// PrevStep returns the step before s.
func PrevStep(s Step) (Step, error) {
	i, err := StepIndex(s)
	if err != nil {
		return "", err
	}
	if i == 0 {
		return "", fmt.Errorf("step %q is the first step", s)
	}
	return StepOrder[i-1], nil
}

// Phase is one segment of the project's learning journey.
type Phase struct {
	Name       string   `json:"name"`
	Activities []string `json:"activities,omitempty"`
}

type Milestone struct {
	Name string `json:"name"`
}

type Artifact struct {
	Name string `json:"name"`
}

type Rubric struct {
	Criteria []string `json:"criteria,omitempty"`
}

// CapturedProject accumulates everything extracted from the conversation.
// Fields are append/overwrite only within a stage; nothing is cleared when
// a stage is exited, so going back never loses data.
type CapturedProject struct {
	Ideation struct {
		BigIdea           string `json:"big_idea,omitempty"`
		EssentialQuestion string `json:"essential_question,omitempty"`
		Challenge         string `json:"challenge,omitempty"`
	} `json:"ideation"`
	Journey struct {
		Phases []Phase `json:"phases,omitempty"`
	} `json:"journey"`
	Deliverables struct {
		Milestones []Milestone `json:"milestones,omitempty"`
		Artifacts  []Artifact  `json:"artifacts,omitempty"`
		Rubric     Rubric      `json:"rubric"`
	} `json:"deliverables"`
}

// Session is one teacher's blueprint conversation.
type Session struct {
	ID           string          `json:"id"`
	Title        string          `json:"title,omitempty"`
	Step         Step            `json:"step" enum:"big_idea,essential_question,challenge,journey,deliverables,completion,completed"`
	Stage        Stage           `json:"stage" enum:"ideation,journey,deliverables,completion,completed"`
	Status       string          `json:"status" enum:"active,completed"`
	DurationHint string          `json:"duration_hint,omitempty"`
	Captured     CapturedProject `json:"captured"`
	CreatedAt    string          `json:"created_at" format:"date-time"`
	UpdatedAt    string          `json:"updated_at" format:"date-time"`
}

// Turn outcomes.
const (
	OutcomeRejected = "rejected" // assessor said no; nothing captured
	OutcomeHeld     = "held"     // captured, but the gate is not met yet
	OutcomeAdvanced = "advanced" // gate met, moved to the next step
	OutcomeBack     = "back"     // user-issued go back
)

// Turn records one assess/capture/validate cycle. It exists for the
// transcript and for debugging; the session snapshot is the durable state.
type Turn struct {
	ID              string `json:"id"`
	SessionID       string `json:"session_id"`
	Seq             int    `json:"seq"`
	Step            Step   `json:"step"`
	Text            string `json:"text"`
	Outcome         string `json:"outcome" enum:"rejected,held,advanced,back"`
	Reason          string `json:"reason,omitempty"`
	DidAdvance      bool   `json:"did_advance"`
	ExtractionEmpty bool   `json:"extraction_empty,omitempty"`
	NextStep        Step   `json:"next_step"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
