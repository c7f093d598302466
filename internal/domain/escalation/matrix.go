package escalation

import (
	"bytes"
	"errors"
	"time"

	"github.com/samber/lo"
)

// Evaluate selects the decision for violationType. history must already
// include the violation being evaluated. The result depends only on its
// arguments.
func Evaluate(rules []*Rule, history []Violation, violationType string, asOf time.Time) Decision {
	d, err := evaluate(rules, history, violationType, asOf)
	if errors.Is(err, errNoMatchingRule) {
		return DefaultDecision(countWithin(history, violationType, asOf, 0))
	}
	return d
}

func evaluate(rules []*Rule, history []Violation, violationType string, asOf time.Time) (Decision, error) {
	var best *Rule
	bestCount := 0

	for _, rule := range rules {
		if rule == nil || !rule.Active || rule.ViolationType != violationType {
			continue
		}
		count := countWithin(history, violationType, asOf, rule.TimeWindowDays)
		if count < rule.Threshold {
			continue
		}
		if best == nil || outranks(rule, best) {
			best = rule
			bestCount = count
		}
	}

	if best == nil {
		return Decision{}, errNoMatchingRule
	}

	id := best.ID
	return Decision{
		Consequence:     best.Consequence,
		DurationMinutes: copyInt(best.DurationMinutes),
		CourtRequired:   best.CourtRequired || best.Consequence == ConsequenceCourtSession,
		AutoEscalate:    best.AutoEscalate,
		Points:          best.Points,
		MatchedRuleID:   &id,
		ViolationCount:  bestCount,
	}, nil
}

// outranks orders matching rules: higher severity, then higher threshold,
// then the lower id so equal rules still resolve the same way every time.
func outranks(a, b *Rule) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.Threshold != b.Threshold {
		return a.Threshold > b.Threshold
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// countWithin counts non-voided violations of violationType that occurred
// in the window ending at asOf. windowDays 0 means all time.
func countWithin(history []Violation, violationType string, asOf time.Time, windowDays int) int {
	var cutoff time.Time
	if windowDays > 0 {
		cutoff = asOf.AddDate(0, 0, -windowDays)
	}

	return lo.CountBy(history, func(v Violation) bool {
		if v.ViolationType != violationType || v.VoidedAt != nil || v.OccurredAt.After(asOf) {
			return false
		}
		return windowDays <= 0 || !v.OccurredAt.Before(cutoff)
	})
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
