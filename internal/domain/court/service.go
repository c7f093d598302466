package court

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/domain/enforcement"
	"github.com/citywatch/citywatch-api/internal/domain/escalation"
	"github.com/citywatch/citywatch-api/internal/domain/moderation"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
	"github.com/citywatch/citywatch-api/internal/pkg/eventbus"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

const (
	maxPendingPage = 100
	sweepBatch     = 100
)

// Options configures referral timeouts
type Options struct {
	// TTL of zero means referrals never expire
	TTL           time.Duration
	TimeoutPolicy string
}

// Service is the court referral bridge
type Service struct {
	repo    Repository
	actions *enforcement.Service
	reports *moderation.Service
	bus     eventbus.Bus
	tx      database.Transactor
	opts    Options
	now     func() time.Time
}

// NewService creates the bridge and registers it with the executor. bus
// may be nil.
func NewService(repo Repository, actions *enforcement.Service, reports *moderation.Service, bus eventbus.Bus, tx database.Transactor, opts Options) *Service {
	if opts.TimeoutPolicy == "" {
		opts.TimeoutPolicy = TimeoutNone
	}
	s := &Service{
		repo:    repo,
		actions: actions,
		reports: reports,
		bus:     bus,
		tx:      tx,
		opts:    opts,
		now:     time.Now,
	}
	actions.SetReferrer(s)
	return s
}

// Refer parks a decision for the court. A second referral of the same
// actor and report returns the pending one.
func (s *Service) Refer(ctx context.Context, req enforcement.ReferralRequest) (uuid.UUID, error) {
	var out *Referral
	created := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindPending(ctx, req.ActorID, req.ReportID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		now := s.now().UTC()
		ref := &Referral{
			ID:        uuid.New(),
			ReportID:  req.ReportID,
			ActorID:   req.ActorID,
			StreamID:  req.StreamID,
			Plan:      Plan{Decision: req.Decision, Draft: req.Draft},
			Status:    StatusPending,
			CreatedAt: now,
		}
		if s.opts.TTL > 0 {
			expires := now.Add(s.opts.TTL)
			ref.ExpiresAt = &expires
		}
		if err := s.repo.Create(ctx, ref); err != nil {
			return err
		}
		out = ref
		created = true
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	if created {
		metrics.Referrals.WithLabelValues("opened").Inc()
		s.publish(eventbus.NewReferralOpened(eventbus.ReferralOpened{
			ReferralID: out.ID,
			ReportID:   out.ReportID,
			ActorID:    out.ActorID,
			ExpiresAt:  out.ExpiresAt,
		}))
		log.Info().
			Str("referral_id", out.ID.String()).
			Str("actor_id", out.ActorID.String()).
			Msg("Case referred to court")
	}
	return out.ID, nil
}

// GetPendingReferrals returns pending referrals, oldest first. A nil
// actorID lists all of them.
func (s *Service) GetPendingReferrals(ctx context.Context, p access.Principal, actorID *uuid.UUID, limit int) ([]*Referral, error) {
	if err := access.Require(p, access.PermViewReferrals); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPendingPage {
		limit = maxPendingPage
	}
	return s.repo.ListPending(ctx, actorID, limit)
}

// Get returns a referral by id
func (s *Service) Get(ctx context.Context, p access.Principal, id uuid.UUID) (*Referral, error) {
	if err := access.Require(p, access.PermViewReferrals); err != nil {
		return nil, err
	}
	return s.lookup(ctx, id)
}

func (s *Service) lookup(ctx context.Context, id uuid.UUID) (*Referral, error) {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, ErrReferralNotFound
	}
	return ref, nil
}

// SubmitVerdict resumes a parked case. Guilty applies the verdict's
// consequence, or the referral's when the verdict names none. Not guilty
// and dismissed reject the report. A granted appeal resolves it without
// action.
func (s *Service) SubmitVerdict(ctx context.Context, id uuid.UUID, v *Verdict) (*Referral, error) {
	if !v.Ruling.Valid() {
		return nil, ErrInvalidRuling
	}
	if v.Consequence != "" && !v.Consequence.Valid() {
		return nil, ErrInvalidConsequence
	}
	judge := access.System()
	if v.JudgeID != nil {
		judge.ID = *v.JudgeID
	}

	var out *Referral
	reportClosed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ref, err := s.lookup(ctx, id)
		if err != nil {
			return err
		}
		if ref.Status != StatusPending {
			return apperror.Wrapf(ErrReferralClosed, "referral is %s", ref.Status)
		}

		// Staff may have closed the report while the case was parked. The
		// referral is retired so it stops showing as pending.
		if ref.ReportID != nil {
			report, err := s.reports.Lookup(ctx, *ref.ReportID)
			if err != nil {
				return err
			}
			if report.Status.IsTerminal() {
				reportClosed = true
				return s.retire(ctx, ref, "report_closed")
			}
		}

		var actionID *uuid.UUID
		switch v.Ruling {
		case RulingGuilty:
			in, err := s.sentence(ref, v)
			if err != nil {
				return err
			}
			action, err := s.actions.ApplyAction(ctx, judge, in)
			if err != nil {
				return err
			}
			actionID = &action.ID
		case RulingNotGuilty, RulingDismissed:
			if ref.ReportID != nil {
				if _, err := s.reports.Reject(ctx, judge, *ref.ReportID); err != nil {
					return err
				}
			}
		case RulingAppealGranted:
			if ref.ReportID != nil {
				if _, err := s.reports.ResolveWithoutAction(ctx, judge, *ref.ReportID); err != nil {
					return err
				}
			}
		}

		now := s.now().UTC()
		ok, err := s.repo.Resolve(ctx, id, v.Ruling, actionID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrReferralClosed
		}

		ruling := v.Ruling
		ref.Status = StatusResolved
		ref.Ruling = &ruling
		ref.ActionID = actionID
		ref.ResolvedAt = &now
		out = ref

		database.AfterCommit(ctx, func() {
			metrics.Referrals.WithLabelValues(string(ruling)).Inc()
			s.publish(eventbus.NewReferralResolved(eventbus.ReferralResolved{
				ReferralID: ref.ID,
				ActorID:    ref.ActorID,
				Outcome:    string(ruling),
			}))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reportClosed {
		return nil, ErrReportClosed
	}

	log.Info().Str("referral_id", id.String()).Str("ruling", string(v.Ruling)).Msg("Court verdict applied")
	return out, nil
}

// sentence builds the action for a guilty verdict
func (s *Service) sentence(ref *Referral, v *Verdict) (*enforcement.ApplyInput, error) {
	d := ref.Plan.Decision
	if v.Consequence != "" {
		d.Consequence = v.Consequence
		d.DurationMinutes = v.DurationMinutes
	} else if v.DurationMinutes != nil {
		d.DurationMinutes = v.DurationMinutes
	}
	if d.Consequence == escalation.ConsequenceCourtSession {
		return nil, ErrConsequenceNeeded
	}

	in, err := enforcement.PlanFor(d, ref.ActorID, ref.StreamID)
	if err != nil {
		return nil, err
	}
	in.ReportID = ref.ReportID
	in.Reason = "court verdict: guilty"
	if v.Notes != "" {
		notes := v.Notes
		in.Details = &notes
	}
	if ref.Plan.Draft != nil {
		in.ViolationType = ref.Plan.Draft.ViolationType
	}
	in.Source = enforcement.SourceCourt
	return in, nil
}

// Sweep expires overdue referrals and applies the timeout policy. It
// returns how many referrals expired.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.opts.TTL <= 0 {
		return 0, nil
	}
	overdue, err := s.repo.ListOverdue(ctx, s.now().UTC(), sweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, ref := range overdue {
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			dismiss := s.opts.TimeoutPolicy == TimeoutDismiss && ref.ReportID != nil
			if dismiss {
				report, err := s.reports.Lookup(ctx, *ref.ReportID)
				if err != nil {
					return err
				}
				dismiss = !report.Status.IsTerminal()
			}

			if err := s.retire(ctx, ref, "expired"); err != nil {
				if errors.Is(err, ErrReferralClosed) {
					return nil
				}
				return err
			}
			if dismiss {
				if _, err := s.reports.Reject(ctx, access.System(), *ref.ReportID); err != nil {
					return err
				}
			}
			expired++
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("referral_id", ref.ID.String()).Msg("Failed to expire court referral")
		}
	}

	if expired > 0 {
		log.Info().Int("count", expired).Str("policy", s.opts.TimeoutPolicy).Msg("Expired court referrals")
	}
	return expired, nil
}

// retire expires a pending referral without a verdict
func (s *Service) retire(ctx context.Context, ref *Referral, outcome string) error {
	ok, err := s.repo.Expire(ctx, ref.ID, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrReferralClosed
	}

	snapshot := *ref
	database.AfterCommit(ctx, func() {
		metrics.Referrals.WithLabelValues(outcome).Inc()
		s.publish(eventbus.NewReferralResolved(eventbus.ReferralResolved{
			ReferralID: snapshot.ID,
			ActorID:    snapshot.ActorID,
			Outcome:    outcome,
		}))
	})
	log.Info().Str("referral_id", ref.ID.String()).Str("outcome", outcome).Msg("Court referral retired")
	return nil
}

func (s *Service) publish(evt eventbus.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), evt); err != nil {
		log.Warn().Err(err).Str("topic", string(evt.Topic)).Msg("Failed to publish event")
	}
}
