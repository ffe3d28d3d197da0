package config_test

import (
	"testing"

	"alfcoach/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default("alf")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Coach.Name != "alf" {
		t.Fatalf("coach name: %q", cfg.Coach.Name)
	}
	if cfg.Gates.MinPhases != 3 || cfg.Gates.MinArtifacts != 1 {
		t.Fatalf("gates: %+v", cfg.Gates)
	}
	if cfg.Assess.BigIdeaMinWords != 3 || len(cfg.Assess.ActionVerbs) == 0 {
		t.Fatalf("assess rules: %+v", cfg.Assess)
	}
}

func TestFromYAMLRejectsBadGates(t *testing.T) {
	_, err := config.FromYAML([]byte(`
coach:
  name: alf
gates:
  big_idea_min_len: 0
`))
	if err == nil {
		t.Fatalf("expected validation error for zero gate")
	}
}

func TestFromYAMLRejectsMalformed(t *testing.T) {
	_, err := config.FromYAML([]byte("gates: [not a map"))
	if err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	yaml := config.GenerateDefault("my-coach")
	cfg, err := config.FromYAML([]byte(yaml))
	if err != nil {
		t.Fatalf("parse generated default: %v", err)
	}
	if cfg.Coach.Name != "my-coach" {
		t.Fatalf("coach name: %q", cfg.Coach.Name)
	}
}

func TestWebhookValidation(t *testing.T) {
	cfg := config.Default("alf")
	cfg.Webhooks = append(cfg.Webhooks, config.Webhook{URL: ""})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty webhook url")
	}
}
