package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/domain/audit"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
)

var (
	lead    = access.Principal{ID: uuid.New(), Role: access.RoleLeadOfficer}
	officer = access.Principal{ID: uuid.New(), Role: access.RoleOfficer}
)

type fixture struct {
	svc   *Service
	repo  Repository
	audit audit.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	auditRepo := audit.NewMemRepository()
	repo := NewMemRepository()
	svc := NewService(repo, NewMemRuleCache(16, time.Minute), audit.NewService(auditRepo, nil, nil), database.NewMemTransactor())
	svc.now = func() time.Time { return asOf }
	return fixture{svc: svc, repo: repo, audit: auditRepo}
}

func ruleRequest(severity, threshold int, consequence string, duration *int, points int) *RuleRequest {
	return &RuleRequest{
		ViolationType:   "spam",
		Severity:        severity,
		Threshold:       threshold,
		TimeWindowDays:  30,
		Consequence:     consequence,
		DurationMinutes: duration,
		Points:          points,
	}
}

func TestDecideCountsTriggeringViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	for _, req := range []*RuleRequest{
		ruleRequest(1, 1, "warning", nil, 5),
		ruleRequest(3, 3, "timeout", intPtr(1440), 10),
		ruleRequest(5, 5, "ban", intPtr(10080), 30),
	} {
		if _, err := f.svc.CreateRule(ctx, lead, req); err != nil {
			t.Fatalf("create rule: %v", err)
		}
	}

	// Three confirmed violations plus the one being evaluated
	for i := 0; i < 3; i++ {
		if err := f.svc.RecordViolation(ctx, actor, "spam", uuid.New(), asOf.Add(-time.Duration(i+1)*time.Hour)); err != nil {
			t.Fatalf("record violation: %v", err)
		}
	}

	d, err := f.svc.Evaluate(ctx, officer, actor, "spam", asOf)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Consequence != ConsequenceTimeout || *d.DurationMinutes != 1440 || d.ViolationCount != 4 {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestDecideIgnoresVoidedViolations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	if _, err := f.svc.CreateRule(ctx, lead, ruleRequest(3, 2, "timeout", intPtr(60), 10)); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	actionID := uuid.New()
	if err := f.svc.RecordViolation(ctx, actor, "spam", actionID, asOf.Add(-time.Hour)); err != nil {
		t.Fatalf("record violation: %v", err)
	}
	if n, err := f.svc.VoidViolationsForAction(ctx, actionID, asOf); err != nil || n != 1 {
		t.Fatalf("void: n=%d err=%v", n, err)
	}

	d, err := f.svc.Decide(ctx, actor, "spam", asOf)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.MatchedRuleID != nil {
		t.Fatalf("voided violation must not count, got %+v", d)
	}
}

func TestRuleEditsInvalidateCacheAndAreAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rule, err := f.svc.CreateRule(ctx, lead, ruleRequest(2, 1, "warning", nil, 5))
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if rules, _ := f.svc.ActiveRules(ctx, "spam"); len(rules) != 1 {
		t.Fatalf("expected one cached rule, got %d", len(rules))
	}

	inactive := false
	req := ruleRequest(2, 1, "warning", nil, 5)
	req.Active = &inactive
	if _, err := f.svc.UpdateRule(ctx, lead, rule.ID, req); err != nil {
		t.Fatalf("update rule: %v", err)
	}
	if rules, _ := f.svc.ActiveRules(ctx, "spam"); len(rules) != 0 {
		t.Fatalf("expected cache purge after update, got %d rules", len(rules))
	}

	if err := f.svc.DeleteRule(ctx, lead, rule.ID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	if err := f.svc.DeleteRule(ctx, lead, rule.ID); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	entries, err := f.audit.List(ctx, &audit.ListFilter{ActionType: audit.EntryRuleChange, Limit: 10})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected three rule_change entries, got %d", len(entries))
	}
}

// editingRepository runs onRead once, after ListRules has read its rows
type editingRepository struct {
	Repository
	onRead func()
}

func (r *editingRepository) ListRules(ctx context.Context, filter RuleFilter) ([]*Rule, error) {
	rules, err := r.Repository.ListRules(ctx, filter)
	if r.onRead != nil {
		fn := r.onRead
		r.onRead = nil
		fn()
	}
	return rules, err
}

func TestCacheFillRacingAnEditIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rule, err := f.svc.CreateRule(ctx, lead, ruleRequest(2, 1, "warning", nil, 5))
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	repo := &editingRepository{Repository: f.repo}
	f.svc.repo = repo
	inactive := false
	repo.onRead = func() {
		req := ruleRequest(2, 1, "warning", nil, 5)
		req.Active = &inactive
		if _, err := f.svc.UpdateRule(ctx, lead, rule.ID, req); err != nil {
			t.Errorf("update rule: %v", err)
		}
	}

	stale, err := f.svc.ActiveRules(ctx, "spam")
	if err != nil {
		t.Fatalf("active rules: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected the read that raced the edit to see one rule, got %d", len(stale))
	}
	if _, ok, _ := f.svc.cache.Get(ctx, "spam"); ok {
		t.Fatalf("expected the racing fill to be dropped from the cache")
	}
	if rules, _ := f.svc.ActiveRules(ctx, "spam"); len(rules) != 0 {
		t.Fatalf("expected the edit to be visible, got %d rules", len(rules))
	}
}

func TestRuleEditsRequireLeadOfficer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateRule(context.Background(), officer, ruleRequest(1, 1, "warning", nil, 0))
	if !errors.Is(err, apperror.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestCreateRuleValidatesDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []*RuleRequest{
		ruleRequest(3, 1, "timeout", nil, 0),
		ruleRequest(1, 1, "warning", intPtr(10), 0),
		ruleRequest(5, 1, "permanent_ban", intPtr(10), 0),
		ruleRequest(6, 1, "ban", nil, 0),
		ruleRequest(1, 0, "warning", nil, 0),
		ruleRequest(1, 1, "exile", nil, 0),
	}
	for i, req := range cases {
		if _, err := f.svc.CreateRule(ctx, lead, req); !errors.Is(err, apperror.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestImportRulesOnlyIfEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeds := config.DefaultPolicy().EscalationRules

	n, err := f.svc.ImportRules(ctx, access.System(), seeds, true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != len(seeds) {
		t.Fatalf("expected %d rules, got %d", len(seeds), n)
	}

	n, err = f.svc.ImportRules(ctx, access.System(), seeds, true)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op second import, got n=%d err=%v", n, err)
	}
}
