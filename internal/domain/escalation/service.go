package escalation

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/domain/audit"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

// Service owns the rule matrix and the confirmed violation history
type Service struct {
	repo  Repository
	cache RuleCache
	audit *audit.Service
	tx    database.Transactor
	now   func() time.Time

	// generations counts purges per violation type. A cache fill that saw
	// a purge while reading is dropped.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewService creates escalation service. cache may be nil.
func NewService(repo Repository, cache RuleCache, auditSvc *audit.Service, tx database.Transactor) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		audit: auditSvc,
		tx:    tx,
		now:   time.Now,

		generations: make(map[string]uint64),
	}
}

// Evaluate previews the decision the matrix would make if actorID committed
// one more violation of violationType at asOf.
func (s *Service) Evaluate(ctx context.Context, p access.Principal, actorID uuid.UUID, violationType string, asOf time.Time) (Decision, error) {
	if err := access.Require(p, access.PermEvaluate); err != nil {
		return Decision{}, err
	}
	return s.Decide(ctx, actorID, violationType, asOf)
}

// Decide evaluates the matrix counting the triggering violation at asOf.
// Used by the executor; callers are responsible for permissions.
func (s *Service) Decide(ctx context.Context, actorID uuid.UUID, violationType string, asOf time.Time) (Decision, error) {
	if violationType == "" {
		return Decision{}, ErrViolationTypeBlank
	}
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}

	rules, err := s.ActiveRules(ctx, violationType)
	if err != nil {
		return Decision{}, err
	}
	history, err := s.repo.ListViolations(ctx, actorID, violationType)
	if err != nil {
		return Decision{}, err
	}
	history = append(history, Violation{
		ActorID:       actorID,
		ViolationType: violationType,
		OccurredAt:    asOf,
	})

	d := Evaluate(rules, history, violationType, asOf)
	metrics.EscalationDecisions.WithLabelValues(string(d.Consequence), strconv.FormatBool(d.MatchedRuleID != nil)).Inc()
	return d, nil
}

// ActiveRules returns the active rules of one violation type, cached
func (s *Service) ActiveRules(ctx context.Context, violationType string) ([]*Rule, error) {
	if s.cache != nil {
		rules, ok, err := s.cache.Get(ctx, violationType)
		if err != nil {
			log.Warn().Err(err).Str("violation_type", violationType).Msg("Rule cache read failed")
		} else if ok {
			metrics.RuleCacheLookups.WithLabelValues("hit").Inc()
			return rules, nil
		}
		metrics.RuleCacheLookups.WithLabelValues("miss").Inc()
	}

	gen := s.generation(violationType)
	rules, err := s.repo.ListRules(ctx, RuleFilter{ViolationType: violationType, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.generation(violationType) == gen {
		if err := s.cache.Set(ctx, violationType, rules); err != nil {
			log.Warn().Err(err).Str("violation_type", violationType).Msg("Rule cache write failed")
		}
	}
	return rules, nil
}

// ListRules returns rules for staff tooling
func (s *Service) ListRules(ctx context.Context, p access.Principal, filter RuleFilter) ([]*Rule, error) {
	if err := access.Require(p, access.PermEvaluate); err != nil {
		return nil, err
	}
	return s.repo.ListRules(ctx, filter)
}

// GetRule returns rule by ID
func (s *Service) GetRule(ctx context.Context, p access.Principal, id uuid.UUID) (*Rule, error) {
	if err := access.Require(p, access.PermEvaluate); err != nil {
		return nil, err
	}
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, ErrRuleNotFound
	}
	return rule, nil
}

// CreateRule adds a rule to the matrix
func (s *Service) CreateRule(ctx context.Context, p access.Principal, req *RuleRequest) (*Rule, error) {
	if err := access.Require(p, access.PermManageRules); err != nil {
		return nil, err
	}
	if err := req.check(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rule := req.toRule()
	rule.ID = uuid.New()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	s.purge(ctx, rule.ViolationType)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateRule(ctx, rule); err != nil {
			return err
		}
		return s.recordRuleChange(ctx, p, rule, audit.RuleOpCreate)
	})
	if err != nil {
		return nil, err
	}

	s.purge(ctx, rule.ViolationType)
	return rule, nil
}

// UpdateRule replaces every editable field of a rule. Last writer wins.
func (s *Service) UpdateRule(ctx context.Context, p access.Principal, id uuid.UUID, req *RuleRequest) (*Rule, error) {
	if err := access.Require(p, access.PermManageRules); err != nil {
		return nil, err
	}
	if err := req.check(); err != nil {
		return nil, err
	}

	var previousType string
	var updated *Rule
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetRule(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrRuleNotFound
		}
		previousType = existing.ViolationType
		s.purge(ctx, previousType)
		s.purge(ctx, req.ViolationType)

		rule := req.toRule()
		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
		rule.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateRule(ctx, rule); err != nil {
			return err
		}
		updated = rule
		return s.recordRuleChange(ctx, p, rule, audit.RuleOpUpdate)
	})
	if err != nil {
		return nil, err
	}

	s.purge(ctx, previousType)
	if updated.ViolationType != previousType {
		s.purge(ctx, updated.ViolationType)
	}
	return updated, nil
}

// DeleteRule removes a rule from the matrix
func (s *Service) DeleteRule(ctx context.Context, p access.Principal, id uuid.UUID) error {
	if err := access.Require(p, access.PermManageRules); err != nil {
		return err
	}

	var violationType string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetRule(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrRuleNotFound
		}
		violationType = existing.ViolationType
		s.purge(ctx, violationType)
		if err := s.repo.DeleteRule(ctx, id); err != nil {
			return err
		}
		return s.recordRuleChange(ctx, p, existing, audit.RuleOpDelete)
	})
	if err != nil {
		return err
	}

	s.purge(ctx, violationType)
	return nil
}

// ImportRules loads seed rules. With onlyIfEmpty set nothing is imported
// once any rule exists. Returns the number of rules created.
func (s *Service) ImportRules(ctx context.Context, p access.Principal, seeds []config.RuleSeed, onlyIfEmpty bool) (int, error) {
	if err := access.Require(p, access.PermManageRules); err != nil {
		return 0, err
	}
	if onlyIfEmpty {
		count, err := s.repo.CountRules(ctx)
		if err != nil {
			return 0, err
		}
		if count > 0 {
			return 0, nil
		}
	}

	reqs := make([]*RuleRequest, 0, len(seeds))
	for i := range seeds {
		req := requestFromSeed(seeds[i])
		if err := req.check(); err != nil {
			return 0, apperror.Wrapf(err, "seed rule %d (%s)", i, seeds[i].ViolationType)
		}
		reqs = append(reqs, req)
	}

	created := 0
	for _, req := range reqs {
		if _, err := s.CreateRule(ctx, p, req); err != nil {
			return created, err
		}
		created++
	}
	log.Info().Int("rules", created).Msg("Escalation rules imported")
	return created, nil
}

// RecordViolation stores a confirmed violation linked to the action that
// confirmed it.
func (s *Service) RecordViolation(ctx context.Context, actorID uuid.UUID, violationType string, actionID uuid.UUID, at time.Time) error {
	if violationType == "" {
		return ErrViolationTypeBlank
	}
	id := actionID
	return s.repo.InsertViolation(ctx, &Violation{
		ID:            uuid.New(),
		ActorID:       actorID,
		ViolationType: violationType,
		ActionID:      &id,
		OccurredAt:    at,
	})
}

// VoidViolationsForAction stops the violations confirmed by actionID from
// counting toward escalation.
func (s *Service) VoidViolationsForAction(ctx context.Context, actionID uuid.UUID, at time.Time) (int64, error) {
	return s.repo.VoidViolationsByAction(ctx, actionID, at)
}

func (s *Service) recordRuleChange(ctx context.Context, p access.Principal, rule *Rule, op string) error {
	return s.audit.Record(ctx, &audit.Entry{
		ActionType: audit.EntryRuleChange,
		TargetID:   rule.ID.String(),
		ActorID:    p.ID,
		Reason:     op + " escalation rule for " + rule.ViolationType,
		Payload: audit.Payload{Rule: &audit.RulePayload{
			RuleID:        rule.ID,
			Operation:     op,
			ViolationType: rule.ViolationType,
		}},
	})
}

func (s *Service) generation(violationType string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[violationType]
}

// purge drops the cached rules of violationType. Edits purge before they
// write and again after commit.
func (s *Service) purge(ctx context.Context, violationType string) {
	s.genMu.Lock()
	s.generations[violationType]++
	s.genMu.Unlock()

	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(ctx, violationType); err != nil {
		log.Error().Err(err).Str("violation_type", violationType).Msg("Failed to purge rule cache")
	}
}
