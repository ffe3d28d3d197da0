// Package validate decides whether the captured record clears the active
// step's minimum-completeness bar. It looks only at the accumulated record,
// never at the latest turn, and is deliberately decoupled from assessment:
// text can look like phases to the assessor while the capturer extracted
// none, in which case validation still holds the stage.
package validate

import (
	"fmt"
	"strings"

	"alfcoach/internal/config"
	"alfcoach/internal/domain"
)

// Result reports whether the gate is met, with one actionable line per
// missing requirement.
type Result struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
}

// Validate checks the captured record against the gate for the given step.
// Pure function; unknown steps fail loudly.
func Validate(step domain.Step, captured domain.CapturedProject, g config.Gates) (Result, error) {
	switch step {
	case domain.StepBigIdea:
		return result(bigIdeaMissing(captured, g)), nil
	case domain.StepEssentialQuestion:
		return result(essentialQuestionMissing(captured, g)), nil
	case domain.StepChallenge:
		return result(challengeMissing(captured, g)), nil
	case domain.StepJourney:
		return result(journeyMissing(captured, g)), nil
	case domain.StepDeliverables:
		return result(deliverablesMissing(captured, g)), nil
	case domain.StepCompletion:
		// The confirmation step requires the whole record to be complete.
		var missing []string
		missing = append(missing, bigIdeaMissing(captured, g)...)
		missing = append(missing, essentialQuestionMissing(captured, g)...)
		missing = append(missing, challengeMissing(captured, g)...)
		missing = append(missing, journeyMissing(captured, g)...)
		missing = append(missing, deliverablesMissing(captured, g)...)
		return result(missing), nil
	case domain.StepCompleted:
		return Result{OK: true}, nil
	default:
		return Result{}, fmt.Errorf("validate: %w: %q", domain.ErrUnknownStep, step)
	}
}

func result(missing []string) Result {
	return Result{OK: len(missing) == 0, Missing: missing}
}

func bigIdeaMissing(c domain.CapturedProject, g config.Gates) []string {
	if len(strings.TrimSpace(c.Ideation.BigIdea)) < g.BigIdeaMinLen {
		return []string{fmt.Sprintf("big idea needs at least %d characters", g.BigIdeaMinLen)}
	}
	return nil
}

func essentialQuestionMissing(c domain.CapturedProject, g config.Gates) []string {
	q := strings.TrimSpace(c.Ideation.EssentialQuestion)
	var missing []string
	if len(q) < g.EssentialQuestionMinLen {
		missing = append(missing, fmt.Sprintf("essential question needs at least %d characters", g.EssentialQuestionMinLen))
	}
	if !strings.HasSuffix(q, "?") {
		missing = append(missing, "essential question must end with a question mark")
	}
	return missing
}

func challengeMissing(c domain.CapturedProject, g config.Gates) []string {
	if len(strings.TrimSpace(c.Ideation.Challenge)) < g.ChallengeMinLen {
		return []string{fmt.Sprintf("challenge needs at least %d characters", g.ChallengeMinLen)}
	}
	return nil
}

func journeyMissing(c domain.CapturedProject, g config.Gates) []string {
	if n := len(c.Journey.Phases); n < g.MinPhases {
		return []string{fmt.Sprintf("need at least %d phases, have %d", g.MinPhases, n)}
	}
	return nil
}

func deliverablesMissing(c domain.CapturedProject, g config.Gates) []string {
	var missing []string
	if n := len(c.Deliverables.Milestones); n < g.MinMilestones {
		missing = append(missing, fmt.Sprintf("need at least %d milestones, have %d", g.MinMilestones, n))
	}
	if n := len(c.Deliverables.Artifacts); n < g.MinArtifacts {
		missing = append(missing, fmt.Sprintf("need at least %d artifacts, have %d", g.MinArtifacts, n))
	}
	if n := len(c.Deliverables.Rubric.Criteria); n < g.MinRubricCriteria {
		missing = append(missing, fmt.Sprintf("need at least %d rubric criteria, have %d", g.MinRubricCriteria, n))
	}
	return missing
}
