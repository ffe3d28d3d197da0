package validate_test

import (
	"errors"
	"strings"
	"testing"

	"alfcoach/internal/config"
	"alfcoach/internal/domain"
	"alfcoach/internal/validate"
)

func gates() config.Gates {
	return config.Default("alf").Gates
}

func TestJourneyGateBoundary(t *testing.T) {
	var c domain.CapturedProject
	c.Journey.Phases = []domain.Phase{{Name: "Research"}, {Name: "Build"}}
	res, err := validate.Validate(domain.StepJourney, c, gates())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.OK {
		t.Fatalf("2 phases should not pass a gate of 3")
	}
	if len(res.Missing) != 1 || !strings.Contains(res.Missing[0], "have 2") {
		t.Fatalf("missing: %v", res.Missing)
	}
	c.Journey.Phases = append(c.Journey.Phases, domain.Phase{Name: "Share"})
	res, _ = validate.Validate(domain.StepJourney, c, gates())
	if !res.OK {
		t.Fatalf("3 phases should pass: %v", res.Missing)
	}
}

func TestDeliverablesGateReportsEachList(t *testing.T) {
	var c domain.CapturedProject
	c.Deliverables.Milestones = []domain.Milestone{{Name: "draft"}}
	res, _ := validate.Validate(domain.StepDeliverables, c, gates())
	if res.OK {
		t.Fatalf("expected hold")
	}
	if len(res.Missing) != 3 {
		t.Fatalf("expected one line per unmet list, got %v", res.Missing)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	var c domain.CapturedProject
	c.Ideation.BigIdea = "Sustainability in the city"
	first, _ := validate.Validate(domain.StepBigIdea, c, gates())
	second, _ := validate.Validate(domain.StepBigIdea, c, gates())
	if first.OK != second.OK {
		t.Fatalf("same record, different verdicts")
	}
}

func TestEssentialQuestionMustBeAQuestion(t *testing.T) {
	var c domain.CapturedProject
	c.Ideation.EssentialQuestion = "We should reduce cafeteria waste somehow"
	res, err := validate.Validate(domain.StepEssentialQuestion, c, gates())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.OK || len(res.Missing) != 1 || !strings.Contains(res.Missing[0], "question mark") {
		t.Fatalf("missing: %v", res.Missing)
	}
}

func TestCompletionAggregatesAllGates(t *testing.T) {
	var c domain.CapturedProject
	res, _ := validate.Validate(domain.StepCompletion, c, gates())
	if res.OK {
		t.Fatalf("empty record cannot complete")
	}
	// one line each for big idea, challenge, journey, the three
	// deliverables lists, and two for the empty essential question
	// (too short, no question mark)
	if len(res.Missing) != 7 {
		t.Fatalf("expected 7 missing lines, got %d: %v", len(res.Missing), res.Missing)
	}

	c.Ideation.BigIdea = "Sustainability in our local food system"
	c.Ideation.EssentialQuestion = "How might we reduce cafeteria waste?"
	c.Ideation.Challenge = "Design a recycling campaign for the school community"
	c.Journey.Phases = []domain.Phase{{Name: "Research"}, {Name: "Ideate"}, {Name: "Build"}}
	c.Deliverables.Milestones = []domain.Milestone{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	c.Deliverables.Artifacts = []domain.Artifact{{Name: "poster"}}
	c.Deliverables.Rubric.Criteria = []string{"clarity", "accuracy", "persuasion"}
	res, _ = validate.Validate(domain.StepCompletion, c, gates())
	if !res.OK {
		t.Fatalf("full record should complete: %v", res.Missing)
	}
}

func TestCompletedAlwaysOK(t *testing.T) {
	res, err := validate.Validate(domain.StepCompleted, domain.CapturedProject{}, gates())
	if err != nil || !res.OK {
		t.Fatalf("completed step: ok=%v err=%v", res.OK, err)
	}
}

func TestUnknownStepErrors(t *testing.T) {
	_, err := validate.Validate(domain.Step("bogus"), domain.CapturedProject{}, gates())
	if !errors.Is(err, domain.ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
}
