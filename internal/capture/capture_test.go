package capture_test

import (
	"reflect"
	"testing"

	"alfcoach/internal/capture"
	"alfcoach/internal/domain"
)

func TestParsePhasesNewlines(t *testing.T) {
	phases := capture.ParsePhases("Research: interviews, site visits\nIdeate Solutions — brainstorm; sketch\nBuild")
	if len(phases) != 3 {
		t.Fatalf("expected 3 phases, got %d: %+v", len(phases), phases)
	}
	if phases[0].Name != "Research" {
		t.Errorf("phase 0 name: %q", phases[0].Name)
	}
	if !reflect.DeepEqual(phases[0].Activities, []string{"interviews", "site visits"}) {
		t.Errorf("phase 0 activities: %v", phases[0].Activities)
	}
	if phases[1].Name != "Ideate Solutions" {
		t.Errorf("phase 1 name: %q", phases[1].Name)
	}
	// an item without a separator keeps the whole text as the name
	if phases[2].Name != "Build" || len(phases[2].Activities) != 0 {
		t.Errorf("phase 2: %+v", phases[2])
	}
}

func TestParsePhasesSemicolons(t *testing.T) {
	phases := capture.ParsePhases("Research & Analyze: audit, interview; Ideate Solutions: brainstorm, sketch")
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases, got %d: %+v", len(phases), phases)
	}
	if phases[0].Name != "Research & Analyze" || phases[1].Name != "Ideate Solutions" {
		t.Errorf("names: %q, %q", phases[0].Name, phases[1].Name)
	}
	if !reflect.DeepEqual(phases[0].Activities, []string{"audit", "interview"}) {
		t.Errorf("phase 0 activities: %v", phases[0].Activities)
	}
	if !reflect.DeepEqual(phases[1].Activities, []string{"brainstorm", "sketch"}) {
		t.Errorf("phase 1 activities: %v", phases[1].Activities)
	}
}

func TestParsePhasesCommaProseYieldsNothing(t *testing.T) {
	// comma-joined prose has no name separators; in comma mode such items
	// are dropped rather than turned into bogus phase names
	phases := capture.ParsePhases("First the students research the topic, then they brainstorm solutions, then they build a prototype")
	if len(phases) != 0 {
		t.Fatalf("expected 0 phases from prose, got %d: %+v", len(phases), phases)
	}
	phases = capture.ParsePhases("First research, then brainstorm, then build, then present")
	if len(phases) != 0 {
		t.Fatalf("expected 0 phases from prose, got %d: %+v", len(phases), phases)
	}
}

func TestParsePhasesSynthesizesName(t *testing.T) {
	phases := capture.ParsePhases(": interviews, observations\nIdeate: sketching")
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(phases))
	}
	if phases[0].Name != "Phase 1" {
		t.Errorf("expected synthesized name, got %q", phases[0].Name)
	}
}

func TestParsePhasesHyphenatedNamesSurvive(t *testing.T) {
	phases := capture.ParsePhases("Self-Discovery: journaling\nField-Work - interviews")
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(phases))
	}
	if phases[0].Name != "Self-Discovery" {
		t.Errorf("hyphenated name split: %q", phases[0].Name)
	}
	if phases[1].Name != "Field-Work" {
		t.Errorf("spaced dash should split: %q", phases[1].Name)
	}
}

func TestDeliverablesLabelRouting(t *testing.T) {
	d, err := capture.ForStep(domain.StepDeliverables,
		"Milestones: first draft, peer review, final deadline\nArtifacts: campaign poster\nRubric: clear message, accurate data, persuasive design",
		capture.BucketMilestones, capture.DelimiterExtractor{})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(d.Milestones) != 3 || len(d.Artifacts) != 1 || len(d.Criteria) != 3 {
		t.Fatalf("buckets: milestones=%v artifacts=%v criteria=%v", d.Milestones, d.Artifacts, d.Criteria)
	}
}

func TestDeliverablesKeywordClassification(t *testing.T) {
	d, err := capture.ForStep(domain.StepDeliverables,
		"research checkpoint; final podcast; assessed on clarity",
		capture.BucketMilestones, capture.DelimiterExtractor{})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(d.Milestones) != 1 || d.Milestones[0] != "research checkpoint" {
		t.Errorf("milestones: %v", d.Milestones)
	}
	if len(d.Artifacts) != 1 || d.Artifacts[0] != "final podcast" {
		t.Errorf("artifacts: %v", d.Artifacts)
	}
	if len(d.Criteria) != 1 {
		t.Errorf("criteria: %v", d.Criteria)
	}
}

func TestDeliverablesFocusFallback(t *testing.T) {
	d, err := capture.ForStep(domain.StepDeliverables, "interview the principal; survey the class",
		capture.BucketArtifacts, capture.DelimiterExtractor{})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(d.Artifacts) != 2 {
		t.Fatalf("expected unclassified items in focus bucket, got %+v", d)
	}
}

func TestScalarStepsCapture(t *testing.T) {
	d, err := capture.ForStep(domain.StepBigIdea, "  Community resilience  ", "", nil)
	if err != nil || d.BigIdea != "Community resilience" {
		t.Fatalf("big idea capture: %+v err=%v", d, err)
	}
	d, err = capture.ForStep(domain.StepCompletion, "yes", "", nil)
	if err != nil || !d.Empty() {
		t.Fatalf("completion should capture nothing: %+v err=%v", d, err)
	}
}

func TestMergeReplacesScalarsKeepsOld(t *testing.T) {
	var c domain.CapturedProject
	c = capture.Merge(c, capture.Delta{BigIdea: "Sustainability"})
	c = capture.Merge(c, capture.Delta{EssentialQuestion: "How might we reduce waste?"})
	if c.Ideation.BigIdea != "Sustainability" {
		t.Fatalf("empty delta field must not clear earlier capture: %+v", c.Ideation)
	}
	c = capture.Merge(c, capture.Delta{BigIdea: "Waste and consumption"})
	if c.Ideation.BigIdea != "Waste and consumption" {
		t.Fatalf("non-empty scalar should replace: %q", c.Ideation.BigIdea)
	}
}

func TestMergeListsAppendWithDedupe(t *testing.T) {
	var c domain.CapturedProject
	c = capture.Merge(c, capture.Delta{Milestones: []string{"first draft", "peer review"}})
	c = capture.Merge(c, capture.Delta{Milestones: []string{"First Draft", "final deadline"}})
	if len(c.Deliverables.Milestones) != 3 {
		t.Fatalf("expected 3 milestones after dedupe, got %+v", c.Deliverables.Milestones)
	}
	c = capture.Merge(c, capture.Delta{Phases: []domain.Phase{{Name: "Research"}}})
	c = capture.Merge(c, capture.Delta{Phases: []domain.Phase{{Name: "research"}, {Name: "Build"}}})
	if len(c.Journey.Phases) != 2 {
		t.Fatalf("expected 2 phases after dedupe, got %+v", c.Journey.Phases)
	}
}

func TestMergeNeverShrinks(t *testing.T) {
	var c domain.CapturedProject
	c = capture.Merge(c, capture.Delta{
		Phases:    []domain.Phase{{Name: "Research"}, {Name: "Build"}},
		Artifacts: []string{"poster"},
	})
	before := len(c.Journey.Phases)
	c = capture.Merge(c, capture.Delta{})
	if len(c.Journey.Phases) != before || len(c.Deliverables.Artifacts) != 1 {
		t.Fatalf("empty delta shrank the record: %+v", c)
	}
}
