// Package assess implements the fast, local plausibility check that runs on
// raw user text before any extraction is attempted. It is deliberately
// lenient for list-shaped stages: its job is to screen out obviously
// unusable input and give the user a quick, stage-specific correction, not
// to guarantee the capturer will find structure.
package assess

import (
	"fmt"
	"strings"

	"alfcoach/internal/config"
	"alfcoach/internal/domain"
)

// Verdict is the assessor's answer for one turn.
type Verdict struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func ok() Verdict              { return Verdict{OK: true} }
func no(reason string) Verdict { return Verdict{OK: false, Reason: reason} }

// Assess checks raw text against the rules for the given step. Pure function
// of its inputs; an unknown step is a caller bug.
func Assess(step domain.Step, text string, rules config.AssessRules) (Verdict, error) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	switch step {
	case domain.StepBigIdea:
		return assessBigIdea(trimmed, lower, rules), nil
	case domain.StepEssentialQuestion:
		return assessEssentialQuestion(trimmed, lower, rules), nil
	case domain.StepChallenge:
		return assessChallenge(trimmed, lower, rules), nil
	case domain.StepJourney:
		return assessJourney(trimmed, lower, rules), nil
	case domain.StepDeliverables:
		return assessDeliverables(trimmed, lower, rules), nil
	case domain.StepCompletion:
		return assessCompletion(lower, rules), nil
	case domain.StepCompleted:
		return no("This blueprint is already complete."), nil
	default:
		return Verdict{}, fmt.Errorf("assess: %w: %q", domain.ErrUnknownStep, step)
	}
}

func assessBigIdea(trimmed, lower string, rules config.AssessRules) Verdict {
	if strings.Contains(trimmed, "?") {
		return no("State a concept, not a question. The essential question comes next.")
	}
	for _, phrase := range rules.UncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			return no("Give it a try anyway: name a broad concept your students should explore, like sustainability or community identity.")
		}
	}
	if len(strings.Fields(trimmed)) < rules.BigIdeaMinWords {
		return no(fmt.Sprintf("A big idea needs at least %d words. Describe the concept in a short phrase.", rules.BigIdeaMinWords))
	}
	if len(trimmed) < rules.BigIdeaMinLen {
		return no("That's too short for a big idea. Expand it into a concept students can dig into.")
	}
	return ok()
}

func assessEssentialQuestion(trimmed, lower string, rules config.AssessRules) Verdict {
	if !strings.HasSuffix(trimmed, "?") {
		return no("An essential question must end with a question mark.")
	}
	for _, starter := range rules.YesNoStarters {
		if strings.HasPrefix(lower, starter+" ") {
			return no("Avoid yes/no questions. Try starting with \"How might...\" or \"Why does...\" instead.")
		}
	}
	if len(trimmed) < rules.EssentialQuestionMinLen {
		return no("Make the question richer: it should be open-ended and worth weeks of inquiry.")
	}
	return ok()
}

func assessChallenge(trimmed, lower string, rules config.AssessRules) Verdict {
	if len(trimmed) < rules.ChallengeMinLen {
		return no("Describe the challenge in a full sentence: what students will do and for whom.")
	}
	if !containsAnyWord(lower, rules.ActionVerbs) {
		return no("Name what students will do: use an action like design, create, build, or propose.")
	}
	if !containsAnyWord(lower, rules.AudienceNouns) {
		return no("Name a real audience for the work, like the community, families, or the school board.")
	}
	return ok()
}

func assessJourney(trimmed, lower string, rules config.AssessRules) Verdict {
	if trimmed == "" {
		return no("Describe the phases of the learning journey, one per line, like \"Research: interviews, site visits\".")
	}
	if strings.Contains(trimmed, "->") || strings.Contains(trimmed, "→") {
		return ok()
	}
	for _, marker := range []string{"phase", "step", "stage"} {
		if strings.Contains(lower, marker) {
			return ok()
		}
	}
	if len(splitSegments(trimmed)) >= rules.MinJourneySegments {
		return ok()
	}
	return no(fmt.Sprintf("List at least %d phases. Put each on its own line, like \"Research: interviews, site visits\".", rules.MinJourneySegments))
}

func assessDeliverables(trimmed, lower string, rules config.AssessRules) Verdict {
	if trimmed == "" {
		return no("List the milestones, final artifacts, and rubric criteria for the project.")
	}
	for _, marker := range rules.DeliverableMarkers {
		if strings.Contains(lower, marker) {
			return ok()
		}
	}
	if len(splitSegments(trimmed)) >= 2 {
		return ok()
	}
	return no("Name concrete deliverables: milestones along the way, the final artifact, and how it will be assessed.")
}

func assessCompletion(lower string, rules config.AssessRules) Verdict {
	for _, phrase := range rules.Affirmatives {
		if strings.Contains(lower, phrase) {
			return ok()
		}
	}
	return no("Review the blueprint and confirm it, or say \"go back\" to revise an earlier stage.")
}

// splitSegments splits on newlines, or on commas when the text is a single
// line. This mirrors the capturer's item boundaries so the assessor stays a
// superset of what extraction might accept.
func splitSegments(text string) []string {
	var raw []string
	if strings.Contains(text, "\n") {
		raw = strings.Split(text, "\n")
	} else {
		raw = strings.Split(text, ",")
	}
	var out []string
	for _, seg := range raw {
		if s := strings.TrimSpace(seg); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAnyWord(lower string, words []string) bool {
	for _, w := range words {
		if w == "" {
			continue
		}
		if containsWord(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// containsWord matches on word boundaries so "board" does not match
// "snowboarding" backwards, and "make" does not match "remake".
func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(haystack[start-1])
		afterOK := end == len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(haystack) {
			return false
		}
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '\''
}
