// Package capture turns accepted raw text into structured deltas against the
// captured project record. The shipped extractor is a delimiter heuristic,
// not NLP: it wants list-shaped input ("Name: activity, activity" lines) and
// finds nothing in naturally written prose. That gap is a known property of
// the design, surfaced to callers through Delta.Empty rather than papered
// over here.
package capture

import (
	"fmt"
	"strings"

	"alfcoach/internal/domain"
)

// Bucket identifies which deliverables list an unclassified item lands in.
type Bucket string

const (
	BucketMilestones Bucket = "milestones"
	BucketArtifacts  Bucket = "artifacts"
	BucketRubric     Bucket = "rubric"
)

// Delta is the structured result of one capture pass. The controller merges
// it into the running record.
type Delta struct {
	BigIdea           string
	EssentialQuestion string
	Challenge         string
	Phases            []domain.Phase
	Milestones        []string
	Artifacts         []string
	Criteria          []string
}

// Empty reports whether the pass extracted nothing structured. For
// list-shaped steps this is the extraction-ambiguity signal: the text passed
// assessment but the parser found no items in it.
func (d Delta) Empty() bool {
	return d.BigIdea == "" && d.EssentialQuestion == "" && d.Challenge == "" &&
		len(d.Phases) == 0 && len(d.Milestones) == 0 && len(d.Artifacts) == 0 && len(d.Criteria) == 0
}

// PhaseExtractor is the pluggable strategy for turning journey text into
// phases. DelimiterExtractor is the shipped implementation; an AI-assisted
// or grammar-based extractor can replace it without touching the controller.
type PhaseExtractor interface {
	Extract(text string) []domain.Phase
}

// DelimiterExtractor splits list-shaped text on newlines/semicolons/commas
// and isolates phase names from activities at the first colon or dash.
type DelimiterExtractor struct{}

func (DelimiterExtractor) Extract(text string) []domain.Phase {
	return ParsePhases(text)
}

// ForStep extracts a Delta for the given step. focus picks the deliverables
// bucket for items that carry no classifying keyword; it reflects the prompt
// the user was just shown. Completion and completed steps capture nothing.
func ForStep(step domain.Step, text string, focus Bucket, extractor PhaseExtractor) (Delta, error) {
	trimmed := strings.TrimSpace(text)
	switch step {
	case domain.StepBigIdea:
		return Delta{BigIdea: trimmed}, nil
	case domain.StepEssentialQuestion:
		return Delta{EssentialQuestion: trimmed}, nil
	case domain.StepChallenge:
		return Delta{Challenge: trimmed}, nil
	case domain.StepJourney:
		if extractor == nil {
			extractor = DelimiterExtractor{}
		}
		return Delta{Phases: extractor.Extract(trimmed)}, nil
	case domain.StepDeliverables:
		d := parseDeliverables(trimmed, focus)
		return d, nil
	case domain.StepCompletion, domain.StepCompleted:
		return Delta{}, nil
	default:
		return Delta{}, fmt.Errorf("capture: %w: %q", domain.ErrUnknownStep, step)
	}
}

// ParsePhases implements the delimiter heuristic:
//
//  1. Items split on newlines; a single line splits on semicolons, or on
//     commas as a last resort.
//  2. Each item splits once at the first colon/dash into name and activities.
//  3. Without a separator the whole item is the name, but only in line or
//     semicolon mode. Comma-split items are ambiguous (commas also separate
//     activities), so an item with no separator is dropped there. This is
//     what makes comma-joined prose parse to zero phases.
//  4. An item with activities but no extractable name becomes "Phase N".
//  5. Activities split on commas and semicolons, trimmed, empties dropped.
func ParsePhases(text string) []domain.Phase {
	items, ambiguous := splitItems(text)
	var phases []domain.Phase
	for _, item := range items {
		name, rest, found := splitNameActivities(item)
		if !found {
			if ambiguous {
				continue
			}
			name = item
		}
		if name == "" {
			if rest == "" {
				continue
			}
			name = fmt.Sprintf("Phase %d", len(phases)+1)
		}
		phases = append(phases, domain.Phase{
			Name:       name,
			Activities: splitList(rest),
		})
	}
	return phases
}

// splitItems returns candidate items and whether comma fallback was used.
func splitItems(text string) ([]string, bool) {
	switch {
	case strings.Contains(text, "\n"):
		return trimNonEmpty(strings.Split(text, "\n")), false
	case strings.Contains(text, ";"):
		return trimNonEmpty(strings.Split(text, ";")), false
	default:
		return trimNonEmpty(strings.Split(text, ",")), true
	}
}

// nameSeparators in priority-by-position order: the split happens at
// whichever occurs first in the item. The plain hyphen must be surrounded by
// spaces so hyphenated names ("Self-Discovery") survive.
var nameSeparators = []string{":", "—", "–", " - "}

func splitNameActivities(item string) (name, activities string, found bool) {
	best := -1
	width := 0
	for _, sep := range nameSeparators {
		if i := strings.Index(item, sep); i >= 0 && (best < 0 || i < best) {
			best = i
			width = len(sep)
		}
	}
	if best < 0 {
		return strings.TrimSpace(item), "", false
	}
	return strings.TrimSpace(item[:best]), strings.TrimSpace(item[best+width:]), true
}

func splitList(text string) []string {
	if text == "" {
		return nil
	}
	return trimNonEmpty(strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';'
	}))
}

func trimNonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Deliverables classification keywords. A labeled item ("Milestones: a, b")
// routes its whole list; an unlabeled item is classified by keyword or falls
// into the focus bucket.
var (
	milestoneWords = []string{"milestone", "checkpoint", "draft", "deadline", "due"}
	artifactWords  = []string{"artifact", "prototype", "portfolio", "exhibit", "poster", "website", "video", "podcast", "report", "model", "presentation", "product", "essay", "documentary", "mural"}
	rubricWords    = []string{"rubric", "criteri", "assess", "evaluat", "quality", "standard"}
)

func parseDeliverables(text string, focus Bucket) Delta {
	if focus == "" {
		focus = BucketMilestones
	}
	var d Delta
	var items []string
	if strings.Contains(text, "\n") {
		items = trimNonEmpty(strings.Split(text, "\n"))
	} else {
		items = trimNonEmpty(strings.FieldsFunc(text, func(r rune) bool {
			return r == ';' || r == ','
		}))
	}
	for _, item := range items {
		if label, rest, ok := splitLabel(item); ok {
			bucket := classify(label, "")
			for _, entry := range splitList(rest) {
				d.add(bucket, entry)
			}
			continue
		}
		d.add(classify(item, focus), item)
	}
	return d
}

// splitLabel detects a leading "Milestones:"-style label that routes the
// rest of the item.
func splitLabel(item string) (label, rest string, ok bool) {
	i := strings.Index(item, ":")
	if i < 0 {
		return "", "", false
	}
	label = strings.ToLower(strings.TrimSpace(item[:i]))
	if !matchesAny(label, milestoneWords) && !matchesAny(label, artifactWords) && !matchesAny(label, rubricWords) {
		return "", "", false
	}
	return label, strings.TrimSpace(item[i+1:]), true
}

func classify(item string, fallback Bucket) Bucket {
	lower := strings.ToLower(item)
	switch {
	case matchesAny(lower, rubricWords):
		return BucketRubric
	case matchesAny(lower, artifactWords):
		return BucketArtifacts
	case matchesAny(lower, milestoneWords):
		return BucketMilestones
	default:
		if fallback == "" {
			return BucketMilestones
		}
		return fallback
	}
}

func matchesAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (d *Delta) add(bucket Bucket, entry string) {
	switch bucket {
	case BucketArtifacts:
		d.Artifacts = append(d.Artifacts, entry)
	case BucketRubric:
		d.Criteria = append(d.Criteria, entry)
	default:
		d.Milestones = append(d.Milestones, entry)
	}
}

// Merge applies a delta to a captured record and returns the updated copy.
// Scalars are replaced when the delta carries a value; lists only ever
// append, with case-insensitive dedupe by name, so stage-relevant fields
// never shrink within a stage visit.
func Merge(captured domain.CapturedProject, d Delta) domain.CapturedProject {
	out := captured
	if d.BigIdea != "" {
		out.Ideation.BigIdea = d.BigIdea
	}
	if d.EssentialQuestion != "" {
		out.Ideation.EssentialQuestion = d.EssentialQuestion
	}
	if d.Challenge != "" {
		out.Ideation.Challenge = d.Challenge
	}
	if len(d.Phases) > 0 {
		out.Journey.Phases = append([]domain.Phase(nil), captured.Journey.Phases...)
		seen := nameSet(len(out.Journey.Phases))
		for _, p := range out.Journey.Phases {
			seen[strings.ToLower(p.Name)] = true
		}
		for _, p := range d.Phases {
			if seen[strings.ToLower(p.Name)] {
				continue
			}
			seen[strings.ToLower(p.Name)] = true
			out.Journey.Phases = append(out.Journey.Phases, p)
		}
	}
	out.Deliverables.Milestones = appendMilestones(captured.Deliverables.Milestones, d.Milestones)
	out.Deliverables.Artifacts = appendArtifacts(captured.Deliverables.Artifacts, d.Artifacts)
	out.Deliverables.Rubric.Criteria = appendUnique(captured.Deliverables.Rubric.Criteria, d.Criteria)
	return out
}

func nameSet(capacity int) map[string]bool {
	return make(map[string]bool, capacity)
}

func appendMilestones(existing []domain.Milestone, names []string) []domain.Milestone {
	if len(names) == 0 {
		return existing
	}
	out := append([]domain.Milestone(nil), existing...)
	seen := nameSet(len(out))
	for _, m := range out {
		seen[strings.ToLower(m.Name)] = true
	}
	for _, n := range names {
		if seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		out = append(out, domain.Milestone{Name: n})
	}
	return out
}

func appendArtifacts(existing []domain.Artifact, names []string) []domain.Artifact {
	if len(names) == 0 {
		return existing
	}
	out := append([]domain.Artifact(nil), existing...)
	seen := nameSet(len(out))
	for _, a := range out {
		seen[strings.ToLower(a.Name)] = true
	}
	for _, n := range names {
		if seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		out = append(out, domain.Artifact{Name: n})
	}
	return out
}

func appendUnique(existing, add []string) []string {
	if len(add) == 0 {
		return existing
	}
	out := append([]string(nil), existing...)
	seen := nameSet(len(out))
	for _, s := range out {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range add {
		if seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}
