package config

import "testing"

func TestParsePolicyOverridesSections(t *testing.T) {
	raw := []byte(`
reputation:
  seller:
    starting_score: 60
    ceiling: 120
    priority_threshold: 4
    tiers:
      - {name: top, min_score: 100}
      - {name: rest, min_score: 0}
manual_points:
  ban_user: 40
escalation_rules:
  - violation_type: spam
    severity: 3
    threshold: 3
    consequence: timeout
    duration_minutes: 1440
    points: 10
`)

	policy, err := ParsePolicy(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := policy.Reputation["seller"].Ceiling; got != 120 {
		t.Fatalf("expected seller ceiling 120, got %d", got)
	}
	if got := policy.Reputation["user"].StartingScore; got != 100 {
		t.Fatalf("expected default user starting score, got %d", got)
	}
	if policy.ManualPoints["ban_user"] != 40 || policy.ManualPoints["warn"] != 5 {
		t.Fatalf("unexpected manual points %v", policy.ManualPoints)
	}
	if len(policy.EscalationRules) != 1 || *policy.EscalationRules[0].DurationMinutes != 1440 {
		t.Fatalf("unexpected rules %+v", policy.EscalationRules)
	}
}

func TestLoadPolicyWithoutFileReturnsDefaults(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policy.Reputation) != 3 {
		t.Fatalf("expected three actor classes, got %d", len(policy.Reputation))
	}
}
