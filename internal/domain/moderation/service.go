package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
	"github.com/citywatch/citywatch-api/internal/pkg/eventbus"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CaseRecorder credits the reviewer who closes a report. resolved is set
// when the report was upheld.
type CaseRecorder interface {
	RecordCase(ctx context.Context, reviewerID, reportID uuid.UUID, resolved bool) error
}

// Service is the report lifecycle manager
type Service struct {
	repo  Repository
	bus   eventbus.Bus
	tx    database.Transactor
	cases CaseRecorder
	now   func() time.Time
}

// NewService creates moderation service. bus may be nil.
func NewService(repo Repository, bus eventbus.Bus, tx database.Transactor) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		tx:   tx,
		now:  time.Now,
	}
}

// SetCaseRecorder registers the reviewer credit hook
func (s *Service) SetCaseRecorder(c CaseRecorder) {
	s.cases = c
}

// SubmitInput is a new report from the calling principal
type SubmitInput struct {
	Target      Target
	Reason      ReportReason
	Description string
}

// Submit creates a pending report filed by p
func (s *Service) Submit(ctx context.Context, p access.Principal, in *SubmitInput) (*Report, error) {
	if err := access.Require(p, access.PermSubmitReports); err != nil {
		return nil, err
	}
	if err := checkTarget(p.ID, in.Target); err != nil {
		return nil, err
	}
	if !in.Reason.Valid() {
		return nil, ErrInvalidReason
	}

	report := &Report{
		ID:           uuid.New(),
		ReporterID:   p.ID,
		TargetType:   in.Target.Type,
		TargetUserID: in.Target.UserID,
		StreamID:     in.Target.StreamID,
		Reason:       in.Reason,
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		report.Description = &d
	}

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, err
	}

	metrics.ReportsSubmitted.WithLabelValues(string(report.Reason), string(report.TargetType)).Inc()
	s.publish(eventbus.NewReportSubmitted(eventbus.ReportSubmitted{
		ReportID:     report.ID,
		ReporterID:   report.ReporterID,
		TargetType:   string(report.TargetType),
		TargetUserID: report.TargetUserID,
		StreamID:     report.StreamID,
		Reason:       string(report.Reason),
	}))

	log.Info().
		Str("report_id", report.ID.String()).
		Str("reason", string(report.Reason)).
		Str("target_type", string(report.TargetType)).
		Msg("Report submitted")
	return report, nil
}

func checkTarget(reporterID uuid.UUID, t Target) error {
	switch t.Type {
	case TargetUser:
		if t.UserID == nil || *t.UserID == uuid.Nil || t.StreamID != nil {
			return ErrUserTargetShape
		}
		if *t.UserID == reporterID {
			return ErrCannotReportSelf
		}
	case TargetStream:
		if t.StreamID == nil || *t.StreamID == uuid.Nil || t.UserID != nil {
			return ErrStreamTargetShape
		}
	default:
		return ErrInvalidTarget
	}
	return nil
}

// Get returns a report visible to p: staff see every report, reporters
// see their own.
func (s *Service) Get(ctx context.Context, p access.Principal, id uuid.UUID) (*Report, error) {
	report, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.ReporterID != p.ID {
		if err := access.Require(p, access.PermViewReports); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Lookup returns a report without a permission check
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Report, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// List returns reports newest first together with the total count
func (s *Service) List(ctx context.Context, p access.Principal, filter *ListFilter) ([]*Report, int, error) {
	if err := access.Require(p, access.PermViewReports); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.list(ctx, filter)
}

// ListMine returns reports filed by p
func (s *Service) ListMine(ctx context.Context, p access.Principal, limit, offset int) ([]*Report, int, error) {
	reporter := p.ID
	return s.list(ctx, &ListFilter{ReporterID: &reporter, Limit: limit, Offset: offset})
}

func (s *Service) list(ctx context.Context, filter *ListFilter) ([]*Report, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	reports, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// BeginReview moves a pending report to reviewing
func (s *Service) BeginReview(ctx context.Context, p access.Principal, id uuid.UUID) (*Report, error) {
	if err := access.Require(p, access.PermReviewReports); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusReviewing, p.ID, "begin_review")
}

// Reject closes a pending or reviewing report without action
func (s *Service) Reject(ctx context.Context, p access.Principal, id uuid.UUID) (*Report, error) {
	if err := access.Require(p, access.PermReviewReports); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusRejected, p.ID, "reject")
}

// ResolveWithoutAction closes a reviewing report as handled
func (s *Service) ResolveWithoutAction(ctx context.Context, p access.Principal, id uuid.UUID) (*Report, error) {
	if err := access.Require(p, access.PermReviewReports); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusResolved, p.ID, "resolve")
}

// MarkActionTaken links an applied action to its report. The executor
// calls it inside the unit of work that persists the action.
func (s *Service) MarkActionTaken(ctx context.Context, id uuid.UUID, reviewer uuid.UUID) (*Report, error) {
	return s.transition(ctx, id, StatusActionTaken, reviewer, "action_taken")
}

// EnsureReviewing starts review if the report is still pending. A report
// already under review is returned unchanged.
func (s *Service) EnsureReviewing(ctx context.Context, p access.Principal, id uuid.UUID) (*Report, error) {
	if err := access.Require(p, access.PermReviewReports); err != nil {
		return nil, err
	}
	report, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Status == StatusReviewing {
		return report, nil
	}
	return s.transition(ctx, id, StatusReviewing, p.ID, "begin_review")
}

// transition applies one compare-and-swap status change, retried once
// against a fresh read when it loses a race.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to ReportStatus, reviewer uuid.UUID, op string) (*Report, error) {
	from := transitions[to]

	var out *Report
	err := apperror.RetryOnConflict(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			report, err := s.Lookup(ctx, id)
			if err != nil {
				return err
			}
			if !statusIn(report.Status, from) {
				return apperror.Wrapf(ErrStatusConflict, "report is %s, cannot move to %s", report.Status, to)
			}

			at := s.now().UTC()
			var rv *uuid.UUID
			if reviewer != uuid.Nil {
				rv = &reviewer
			}
			ok, err := s.repo.TransitionStatus(ctx, id, []ReportStatus{report.Status}, to, rv, at)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.Wrapf(ErrStatusConflict, "report left %s concurrently", report.Status)
			}

			if to.IsTerminal() && rv != nil && s.cases != nil {
				upheld := to == StatusActionTaken || to == StatusResolved
				if err := s.cases.RecordCase(ctx, *rv, id, upheld); err != nil {
					return err
				}
			}

			previous := report.Status
			report.Status = to
			if rv != nil {
				report.ReviewedBy = rv
			}
			if to.IsTerminal() {
				report.ResolvedAt = &at
			}
			out = report

			database.AfterCommit(ctx, func() {
				metrics.ReportTransitions.WithLabelValues(string(to)).Inc()
				s.publish(eventbus.NewReportStatusChanged(eventbus.ReportStatusChanged{
					ReportID:   id,
					From:       string(previous),
					To:         string(to),
					ReviewerID: rv,
				}))
			})
			return nil
		})
	})
	if err != nil {
		if apperror.Kind(err) == apperror.ErrConflict {
			metrics.StatusConflicts.WithLabelValues(op).Inc()
		}
		return nil, err
	}
	return out, nil
}

func statusIn(s ReportStatus, set []ReportStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func (s *Service) publish(evt eventbus.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), evt); err != nil {
		log.Warn().Err(err).Str("topic", string(evt.Topic)).Msg("Failed to publish event")
	}
}
