package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models alfcoach.yml. It is stored in the workspace DB and seeded
// from the default template on first use.
type Config struct {
	Coach struct {
		Name string `yaml:"name" json:"name"`
	} `yaml:"coach" json:"coach"`
	Gates    Gates       `yaml:"gates" json:"gates"`
	Assess   AssessRules `yaml:"assess" json:"assess"`
	Webhooks []Webhook   `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

// Gates are the minimum-completeness bars a stage must clear to be exited.
type Gates struct {
	BigIdeaMinLen           int `yaml:"big_idea_min_len" json:"big_idea_min_len"`
	EssentialQuestionMinLen int `yaml:"essential_question_min_len" json:"essential_question_min_len"`
	ChallengeMinLen         int `yaml:"challenge_min_len" json:"challenge_min_len"`
	MinPhases               int `yaml:"min_phases" json:"min_phases"`
	MinMilestones           int `yaml:"min_milestones" json:"min_milestones"`
	MinArtifacts            int `yaml:"min_artifacts" json:"min_artifacts"`
	MinRubricCriteria       int `yaml:"min_rubric_criteria" json:"min_rubric_criteria"`
}

// AssessRules tune the pre-capture plausibility checks. These thresholds are
// intentionally independent of Gates: assessment screens raw text, gates
// measure the captured record.
type AssessRules struct {
	BigIdeaMinWords         int      `yaml:"big_idea_min_words" json:"big_idea_min_words"`
	BigIdeaMinLen           int      `yaml:"big_idea_min_len" json:"big_idea_min_len"`
	EssentialQuestionMinLen int      `yaml:"essential_question_min_len" json:"essential_question_min_len"`
	ChallengeMinLen         int      `yaml:"challenge_min_len" json:"challenge_min_len"`
	MinJourneySegments      int      `yaml:"min_journey_segments" json:"min_journey_segments"`
	UncertaintyPhrases      []string `yaml:"uncertainty_phrases" json:"uncertainty_phrases"`
	YesNoStarters           []string `yaml:"yes_no_starters" json:"yes_no_starters"`
	ActionVerbs             []string `yaml:"action_verbs" json:"action_verbs"`
	AudienceNouns           []string `yaml:"audience_nouns" json:"audience_nouns"`
	DeliverableMarkers      []string `yaml:"deliverable_markers" json:"deliverable_markers"`
	Affirmatives            []string `yaml:"affirmatives" json:"affirmatives"`
}

// Webhook describes an event log subscriber (the excluded UI/sync layer).
type Webhook struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Coach.Name == "" {
		return fmt.Errorf("config.coach.name is required")
	}
	g := c.Gates
	for _, check := range []struct {
		name  string
		value int
	}{
		{"gates.big_idea_min_len", g.BigIdeaMinLen},
		{"gates.essential_question_min_len", g.EssentialQuestionMinLen},
		{"gates.challenge_min_len", g.ChallengeMinLen},
		{"gates.min_phases", g.MinPhases},
		{"gates.min_milestones", g.MinMilestones},
		{"gates.min_artifacts", g.MinArtifacts},
		{"gates.min_rubric_criteria", g.MinRubricCriteria},
	} {
		if check.value <= 0 {
			return fmt.Errorf("config.%s must be positive", check.name)
		}
	}
	a := c.Assess
	if a.BigIdeaMinWords <= 0 || a.BigIdeaMinLen <= 0 || a.EssentialQuestionMinLen <= 0 || a.ChallengeMinLen <= 0 {
		return fmt.Errorf("config.assess length thresholds must be positive")
	}
	if a.MinJourneySegments <= 0 {
		return fmt.Errorf("config.assess.min_journey_segments must be positive")
	}
	if len(a.ActionVerbs) == 0 {
		return fmt.Errorf("config.assess.action_verbs is required")
	}
	if len(a.AudienceNouns) == 0 {
		return fmt.Errorf("config.assess.audience_nouns is required")
	}
	if len(a.YesNoStarters) == 0 {
		return fmt.Errorf("config.assess.yes_no_starters is required")
	}
	if len(a.Affirmatives) == 0 {
		return fmt.Errorf("config.assess.affirmatives is required")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
	}
	return nil
}

// Default returns the default Config struct for a coach workspace.
func Default(name string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, name))).Decode(&cfg)
	cfg.Coach.Name = name
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(name string) string {
	return fmt.Sprintf(defaultTemplate, name)
}

const defaultTemplate = `coach:
  name: %s

gates:
  big_idea_min_len: 10
  essential_question_min_len: 10
  challenge_min_len: 15
  min_phases: 3
  min_milestones: 3
  min_artifacts: 1
  min_rubric_criteria: 3

assess:
  big_idea_min_words: 3
  big_idea_min_len: 12
  essential_question_min_len: 12
  challenge_min_len: 15
  min_journey_segments: 3

  uncertainty_phrases:
    - i don't know
    - i dont know
    - not sure
    - no idea
    - idk
    - unsure
    - maybe something

  yes_no_starters: [is, are, do, does, can, will, was, were, did, should]

  action_verbs:
    - design
    - create
    - build
    - develop
    - propose
    - produce
    - launch
    - organize
    - plan
    - make
    - write
    - present

  audience_nouns:
    - community
    - peers
    - families
    - family
    - board
    - city
    - neighborhood
    - school
    - students
    - residents
    - council
    - stakeholders
    - public
    - parents

  deliverable_markers:
    - milestone
    - checkpoint
    - draft
    - artifact
    - prototype
    - portfolio
    - exhibit
    - presentation
    - rubric
    - criteria

  affirmatives:
    - "yes"
    - looks good
    - looks great
    - publish
    - done
    - confirm
    - confirmed
    - ship it
    - perfect
    - approve
`
