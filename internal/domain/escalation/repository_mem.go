package escalation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepository struct {
	mu         sync.RWMutex
	rules      map[uuid.UUID]*Rule
	violations []*Violation
}

// NewMemRepository creates an in-memory escalation repository
func NewMemRepository() Repository {
	return &memRepository{rules: make(map[uuid.UUID]*Rule)}
}

func (r *memRepository) CreateRule(_ context.Context, rule *Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rule
	r.rules[rule.ID] = &cp
	return nil
}

func (r *memRepository) GetRule(_ context.Context, id uuid.UUID) (*Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	cp := *rule
	return &cp, nil
}

func (r *memRepository) UpdateRule(_ context.Context, rule *Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rules[rule.ID]
	if !ok {
		return ErrRuleNotFound
	}
	cp := *rule
	cp.CreatedAt = existing.CreatedAt
	r.rules[rule.ID] = &cp
	return nil
}

func (r *memRepository) DeleteRule(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *memRepository) ListRules(_ context.Context, filter RuleFilter) ([]*Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Rule
	for _, rule := range r.rules {
		if filter.ViolationType != "" && rule.ViolationType != filter.ViolationType {
			continue
		}
		if filter.ActiveOnly && !rule.Active {
			continue
		}
		cp := *rule
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ViolationType != b.ViolationType {
			return a.ViolationType < b.ViolationType
		}
		return outranks(a, b)
	})
	return out, nil
}

func (r *memRepository) CountRules(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules), nil
}

func (r *memRepository) InsertViolation(_ context.Context, v *Violation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.violations = append(r.violations, &cp)
	return nil
}

func (r *memRepository) ListViolations(_ context.Context, actorID uuid.UUID, violationType string) ([]Violation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Violation
	for _, v := range r.violations {
		if v.ActorID == actorID && v.ViolationType == violationType && v.VoidedAt == nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *memRepository) VoidViolationsByAction(_ context.Context, actionID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, v := range r.violations {
		if v.ActionID != nil && *v.ActionID == actionID && v.VoidedAt == nil {
			t := at
			v.VoidedAt = &t
			n++
		}
	}
	return n, nil
}
