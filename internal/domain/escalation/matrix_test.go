package escalation

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var asOf = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func spamRule(severity, threshold, windowDays int, consequence Consequence, duration *int, points int) *Rule {
	return &Rule{
		ID:              uuid.New(),
		ViolationType:   "spam",
		Severity:        severity,
		Threshold:       threshold,
		TimeWindowDays:  windowDays,
		Consequence:     consequence,
		DurationMinutes: duration,
		AutoEscalate:    true,
		Points:          points,
		Active:          true,
	}
}

func history(n int, violationType string, spacing time.Duration) []Violation {
	out := make([]Violation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Violation{
			ID:            uuid.New(),
			ViolationType: violationType,
			OccurredAt:    asOf.Add(-time.Duration(i) * spacing),
		})
	}
	return out
}

func TestEvaluateSelectsHighestMatchingSeverity(t *testing.T) {
	warn := spamRule(1, 1, 30, ConsequenceWarning, nil, 5)
	timeout := spamRule(3, 3, 30, ConsequenceTimeout, intPtr(1440), 10)
	ban := spamRule(5, 5, 30, ConsequenceBan, intPtr(10080), 30)

	d := Evaluate([]*Rule{warn, timeout, ban}, history(4, "spam", 24*time.Hour), "spam", asOf)

	if d.MatchedRuleID == nil || *d.MatchedRuleID != timeout.ID {
		t.Fatalf("expected timeout rule to match, got %+v", d)
	}
	if d.Consequence != ConsequenceTimeout || d.DurationMinutes == nil || *d.DurationMinutes != 1440 {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.Points != 10 || d.ViolationCount != 4 {
		t.Fatalf("unexpected points/count %+v", d)
	}
}

func TestEvaluateTieBreaksOnThreshold(t *testing.T) {
	low := spamRule(3, 2, 0, ConsequenceWarning, nil, 1)
	high := spamRule(3, 4, 0, ConsequenceTimeout, intPtr(60), 2)

	d := Evaluate([]*Rule{low, high}, history(5, "spam", time.Hour), "spam", asOf)
	if d.MatchedRuleID == nil || *d.MatchedRuleID != high.ID {
		t.Fatalf("expected the harder-to-reach rule, got %+v", d)
	}
}

func TestEvaluateTieBreaksOnIDWhenRulesAreEqual(t *testing.T) {
	a := spamRule(2, 2, 0, ConsequenceWarning, nil, 1)
	b := spamRule(2, 2, 0, ConsequenceWarning, nil, 1)
	a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	for _, rules := range [][]*Rule{{a, b}, {b, a}} {
		d := Evaluate(rules, history(2, "spam", time.Hour), "spam", asOf)
		if *d.MatchedRuleID != a.ID {
			t.Fatalf("expected lowest id to win, got %s", d.MatchedRuleID)
		}
	}
}

func TestEvaluateRespectsTimeWindow(t *testing.T) {
	rule := spamRule(3, 3, 7, ConsequenceTimeout, intPtr(60), 10)

	// Three violations spaced five days apart: only two fall in the window
	d := Evaluate([]*Rule{rule}, history(3, "spam", 5*24*time.Hour), "spam", asOf)
	if d.MatchedRuleID != nil {
		t.Fatalf("expected no match outside the window, got %+v", d)
	}
	if d.Consequence != ConsequenceWarning || !d.AutoEscalate || d.Points != 0 {
		t.Fatalf("expected default decision, got %+v", d)
	}

	allTime := spamRule(3, 3, 0, ConsequenceTimeout, intPtr(60), 10)
	d = Evaluate([]*Rule{allTime}, history(3, "spam", 5*24*time.Hour), "spam", asOf)
	if d.MatchedRuleID == nil {
		t.Fatalf("expected all-time rule to match")
	}
}

func TestEvaluateWindowIncludesCutoff(t *testing.T) {
	rule := spamRule(1, 2, 7, ConsequenceWarning, nil, 1)
	h := []Violation{
		{ViolationType: "spam", OccurredAt: asOf},
		{ViolationType: "spam", OccurredAt: asOf.AddDate(0, 0, -7)},
	}
	if d := Evaluate([]*Rule{rule}, h, "spam", asOf); d.MatchedRuleID == nil {
		t.Fatalf("expected violation at the cutoff to count")
	}
}

func TestEvaluateIgnoresVoidedFutureAndOtherTypes(t *testing.T) {
	rule := spamRule(2, 2, 0, ConsequenceTimeout, intPtr(30), 5)
	voided := asOf.Add(-time.Minute)
	h := []Violation{
		{ViolationType: "spam", OccurredAt: asOf},
		{ViolationType: "spam", OccurredAt: asOf.Add(-time.Hour), VoidedAt: &voided},
		{ViolationType: "spam", OccurredAt: asOf.Add(time.Hour)},
		{ViolationType: "scam", OccurredAt: asOf.Add(-time.Hour)},
	}

	d := Evaluate([]*Rule{rule}, h, "spam", asOf)
	if d.MatchedRuleID != nil || d.ViolationCount != 1 {
		t.Fatalf("expected a single countable violation, got %+v", d)
	}
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	inactive := spamRule(5, 1, 0, ConsequenceBan, nil, 50)
	inactive.Active = false
	warn := spamRule(1, 1, 0, ConsequenceWarning, nil, 5)

	d := Evaluate([]*Rule{inactive, warn}, history(1, "spam", time.Hour), "spam", asOf)
	if d.MatchedRuleID == nil || *d.MatchedRuleID != warn.ID {
		t.Fatalf("expected inactive rule to be skipped, got %+v", d)
	}
}

func TestEvaluateCourtSessionForcesCourtRequired(t *testing.T) {
	rule := spamRule(5, 1, 0, ConsequenceCourtSession, nil, 40)
	d := Evaluate([]*Rule{rule}, history(1, "spam", time.Hour), "spam", asOf)
	if !d.CourtRequired {
		t.Fatalf("expected court referral for court_session consequence")
	}
}

func TestEvaluateDecisionDoesNotAliasRule(t *testing.T) {
	rule := spamRule(3, 1, 0, ConsequenceTimeout, intPtr(60), 10)
	d := Evaluate([]*Rule{rule}, history(1, "spam", time.Hour), "spam", asOf)
	*d.DurationMinutes = 1
	if *rule.DurationMinutes != 60 {
		t.Fatalf("decision must not share duration with the rule")
	}
}
