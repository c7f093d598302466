package moderation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepository struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*Report
}

// NewMemRepository creates an in-memory report repository
func NewMemRepository() Repository {
	return &memRepository{reports: make(map[uuid.UUID]*Report)}
}

func (r *memRepository) Create(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *report
	r.reports[report.ID] = &cp
	return nil
}

func (r *memRepository) GetByID(_ context.Context, id uuid.UUID) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, nil
	}
	cp := *report
	return &cp, nil
}

func (r *memRepository) matching(filter *ListFilter) []*Report {
	var out []*Report
	for _, report := range r.reports {
		if filter != nil {
			if filter.Status != "" && report.Status != filter.Status {
				continue
			}
			if filter.ReporterID != nil && report.ReporterID != *filter.ReporterID {
				continue
			}
			if filter.TargetUserID != nil && (report.TargetUserID == nil || *report.TargetUserID != *filter.TargetUserID) {
				continue
			}
		}
		cp := *report
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *memRepository) List(_ context.Context, filter *ListFilter) ([]*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.matching(filter)
	if filter == nil {
		return all, nil
	}
	if filter.Offset >= len(all) {
		return nil, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (r *memRepository) Count(_ context.Context, filter *ListFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matching(filter)), nil
}

func (r *memRepository) TransitionStatus(_ context.Context, id uuid.UUID, from []ReportStatus, to ReportStatus, reviewer *uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if report.Status != s {
			continue
		}
		report.Status = to
		if reviewer != nil {
			rv := *reviewer
			report.ReviewedBy = &rv
		}
		if to.IsTerminal() {
			t := at
			report.ResolvedAt = &t
		}
		return true, nil
	}
	return false, nil
}
