package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunable constants of the moderation engine.
type Policy struct {
	Reputation      map[string]ClassPolicy `yaml:"reputation"`
	ManualPoints    map[string]int         `yaml:"manual_points"`
	EscalationRules []RuleSeed             `yaml:"escalation_rules"`
}

// ClassPolicy configures the reputation scale of one actor class
type ClassPolicy struct {
	StartingScore     int          `yaml:"starting_score"`
	Ceiling           int          `yaml:"ceiling"`
	PriorityThreshold int          `yaml:"priority_threshold"`
	Tiers             []TierCutoff `yaml:"tiers"`
	// EventPoints is the default delta of workflow events such as
	// case_handled or order_cancelled
	EventPoints map[string]int `yaml:"event_points"`
}

// TierCutoff is the lowest score that still earns a tier
type TierCutoff struct {
	Name     string `yaml:"name"`
	MinScore int    `yaml:"min_score"`
}

// RuleSeed is an escalation rule imported from the policy file
type RuleSeed struct {
	ViolationType   string `yaml:"violation_type"`
	Severity        int    `yaml:"severity"`
	Threshold       int    `yaml:"threshold"`
	TimeWindowDays  int    `yaml:"time_window_days"`
	Consequence     string `yaml:"consequence"`
	DurationMinutes *int   `yaml:"duration_minutes"`
	CourtRequired   bool   `yaml:"court_required"`
	AutoEscalate    *bool  `yaml:"auto_escalate"`
	Points          int    `yaml:"points"`
}

// DefaultPolicy returns the built-in constants used when no file is set.
func DefaultPolicy() *Policy {
	return &Policy{
		Reputation: map[string]ClassPolicy{
			"user": {
				StartingScore: 100, Ceiling: 100, PriorityThreshold: 3,
				Tiers: []TierCutoff{
					{"excellent", 95}, {"good", 75}, {"warning", 50}, {"poor", 25}, {"banned", 0},
				},
			},
			"officer": {
				StartingScore: 500, Ceiling: 1000, PriorityThreshold: 2,
				Tiers: []TierCutoff{
					{"elite", 900}, {"senior", 700}, {"standard", 400}, {"probation", 200}, {"needs_improvement", 0},
				},
				EventPoints: map[string]int{"case_handled": 1, "case_resolved": 2},
			},
			"seller": {
				StartingScore: 50, Ceiling: 100, PriorityThreshold: 3,
				Tiers: []TierCutoff{
					{"platinum", 90}, {"gold", 75}, {"silver", 50}, {"standard", 20}, {"suspended", 0},
				},
				EventPoints: map[string]int{"order_fulfilled": 1, "order_cancelled": -3},
			},
		},
		ManualPoints: map[string]int{
			"warn":           5,
			"mute_user":      10,
			"suspend_stream": 15,
			"ban_user":       30,
			"unban_user":     0,
		},
		EscalationRules: defaultRules(),
	}
}

func minutes(m int) *int { return &m }

func defaultRules() []RuleSeed {
	return []RuleSeed{
		{ViolationType: "spam", Severity: 1, Threshold: 1, TimeWindowDays: 30, Consequence: "warning", Points: 5},
		{ViolationType: "spam", Severity: 3, Threshold: 3, TimeWindowDays: 30, Consequence: "timeout", DurationMinutes: minutes(1440), Points: 10},
		{ViolationType: "spam", Severity: 5, Threshold: 5, TimeWindowDays: 30, Consequence: "ban", DurationMinutes: minutes(10080), Points: 30},
		{ViolationType: "harassment", Severity: 2, Threshold: 1, TimeWindowDays: 30, Consequence: "warning", Points: 10},
		{ViolationType: "harassment", Severity: 4, Threshold: 3, TimeWindowDays: 60, Consequence: "ban", DurationMinutes: minutes(1440), Points: 25},
		{ViolationType: "bullying", Severity: 2, Threshold: 1, TimeWindowDays: 30, Consequence: "warning", Points: 10},
		{ViolationType: "bullying", Severity: 4, Threshold: 3, TimeWindowDays: 60, Consequence: "timeout", DurationMinutes: minutes(4320), Points: 20},
		{ViolationType: "hate_speech", Severity: 4, Threshold: 1, TimeWindowDays: 0, Consequence: "ban", DurationMinutes: minutes(4320), Points: 30},
		{ViolationType: "hate_speech", Severity: 5, Threshold: 3, TimeWindowDays: 0, Consequence: "court_session", CourtRequired: true, Points: 50},
		{ViolationType: "scam", Severity: 5, Threshold: 1, TimeWindowDays: 0, Consequence: "court_session", CourtRequired: true, Points: 40},
		{ViolationType: "illegal_content", Severity: 5, Threshold: 1, TimeWindowDays: 0, Consequence: "permanent_ban", Points: 100},
		{ViolationType: "inappropriate_content", Severity: 2, Threshold: 2, TimeWindowDays: 30, Consequence: "timeout", DurationMinutes: minutes(60), Points: 5},
	}
}

// LoadPolicy reads a YAML policy file. Sections missing from the file keep
// their defaults. An empty path returns the defaults.
func LoadPolicy(path string) (*Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes YAML on top of the defaults
func ParsePolicy(raw []byte) (*Policy, error) {
	var file Policy
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	policy := DefaultPolicy()
	for class, cp := range file.Reputation {
		policy.Reputation[class] = cp
	}
	for actionType, points := range file.ManualPoints {
		policy.ManualPoints[actionType] = points
	}
	if len(file.EscalationRules) > 0 {
		policy.EscalationRules = file.EscalationRules
	}
	return policy, nil
}
