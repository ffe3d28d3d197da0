package assess_test

import (
	"errors"
	"testing"

	"alfcoach/internal/assess"
	"alfcoach/internal/config"
	"alfcoach/internal/domain"
)

func rules() config.AssessRules {
	return config.Default("alf").Assess
}

func TestBigIdeaRejections(t *testing.T) {
	for _, text := range []string{
		"What is sustainability?",
		"i don't know",
		"idk maybe something about plants",
		"ecology",
		"two words",
	} {
		v, err := assess.Assess(domain.StepBigIdea, text, rules())
		if err != nil {
			t.Fatalf("assess %q: %v", text, err)
		}
		if v.OK {
			t.Errorf("expected rejection for %q", text)
		}
		if v.Reason == "" {
			t.Errorf("expected reason for %q", text)
		}
	}
}

func TestBigIdeaAccepted(t *testing.T) {
	v, err := assess.Assess(domain.StepBigIdea, "Sustainability in our local food system", rules())
	if err != nil || !v.OK {
		t.Fatalf("expected acceptance, got ok=%v err=%v reason=%q", v.OK, err, v.Reason)
	}
}

func TestEssentialQuestionYesNoStarters(t *testing.T) {
	v, _ := assess.Assess(domain.StepEssentialQuestion, "Is recycling good for our town?", rules())
	if v.OK {
		t.Fatalf("expected yes/no rejection")
	}
	// "Islands" starts with "is" but not as a word
	v, _ = assess.Assess(domain.StepEssentialQuestion, "Islands aside, how might we restore the coastline?", rules())
	if !v.OK {
		t.Fatalf("expected acceptance, got %q", v.Reason)
	}
}

func TestEssentialQuestionNeedsQuestionMark(t *testing.T) {
	v, _ := assess.Assess(domain.StepEssentialQuestion, "How might we reduce cafeteria waste", rules())
	if v.OK {
		t.Fatalf("expected rejection without question mark")
	}
	v, _ = assess.Assess(domain.StepEssentialQuestion, "How might we reduce cafeteria waste?", rules())
	if !v.OK {
		t.Fatalf("expected acceptance, got %q", v.Reason)
	}
}

func TestChallengeNeedsActionAndAudience(t *testing.T) {
	v, _ := assess.Assess(domain.StepChallenge, "Students will think about recycling for a while", rules())
	if v.OK {
		t.Fatalf("expected rejection without action verb and audience")
	}
	v, _ = assess.Assess(domain.StepChallenge, "Design a recycling campaign for the school community", rules())
	if !v.OK {
		t.Fatalf("expected acceptance, got %q", v.Reason)
	}
}

func TestChallengeWordBoundaries(t *testing.T) {
	// "remake" must not satisfy the "make" action verb.
	v, _ := assess.Assess(domain.StepChallenge, "Students remake old furniture over several weekends", rules())
	if v.OK {
		t.Fatalf("expected rejection, substring matches should not count")
	}
}

func TestJourneyAcceptsListShapes(t *testing.T) {
	for _, text := range []string{
		"Research -> Ideate -> Build",
		"Phase 1 research, then build",
		"Research: interviews\nIdeate: brainstorm\nBuild: prototype",
		"first we research, then we plan, then we build",
		"First research, then brainstorm, then build, then present",
	} {
		v, err := assess.Assess(domain.StepJourney, text, rules())
		if err != nil {
			t.Fatalf("assess %q: %v", text, err)
		}
		if !v.OK {
			t.Errorf("expected acceptance for %q, got %q", text, v.Reason)
		}
	}
	v, _ := assess.Assess(domain.StepJourney, "we will just explore", rules())
	if v.OK {
		t.Fatalf("expected rejection for single vague segment")
	}
}

func TestCompletionAffirmative(t *testing.T) {
	v, _ := assess.Assess(domain.StepCompletion, "Yes, publish it!", rules())
	if !v.OK {
		t.Fatalf("expected affirmative acceptance, got %q", v.Reason)
	}
	v, _ = assess.Assess(domain.StepCompletion, "hmm let me think", rules())
	if v.OK {
		t.Fatalf("expected non-affirmative rejection")
	}
}

func TestCompletedStepRejects(t *testing.T) {
	v, err := assess.Assess(domain.StepCompleted, "anything", rules())
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if v.OK {
		t.Fatalf("completed sessions must not accept turns")
	}
}

func TestUnknownStepErrors(t *testing.T) {
	_, err := assess.Assess(domain.Step("bogus"), "text", rules())
	if !errors.Is(err, domain.ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
}
