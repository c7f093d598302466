package enforcement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepository struct {
	mu      sync.RWMutex
	actions map[uuid.UUID]*Action
	jobs    map[uuid.UUID]*Job
}

// NewMemRepository creates an in-memory enforcement repository
func NewMemRepository() Repository {
	return &memRepository{
		actions: make(map[uuid.UUID]*Action),
		jobs:    make(map[uuid.UUID]*Job),
	}
}

func (r *memRepository) InsertAction(_ context.Context, a *Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.actions[a.ID] = &cp
	return nil
}

func (r *memRepository) GetAction(_ context.Context, id uuid.UUID) (*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func sameID(a *uuid.UUID, b uuid.UUID) bool {
	return a != nil && *a == b
}

func (r *memRepository) matching(filter *ActionFilter) []*Action {
	var out []*Action
	for _, a := range r.actions {
		if filter != nil {
			if filter.ActionType != "" && a.ActionType != filter.ActionType {
				continue
			}
			if filter.TargetUserID != nil && !sameID(a.TargetUserID, *filter.TargetUserID) {
				continue
			}
			if filter.StreamID != nil && !sameID(a.StreamID, *filter.StreamID) {
				continue
			}
			if filter.ReportID != nil && !sameID(a.ReportID, *filter.ReportID) {
				continue
			}
			if filter.ActiveAt != nil && !a.ActiveAt(*filter.ActiveAt) {
				continue
			}
		}
		cp := *a
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

func (r *memRepository) ListActions(_ context.Context, filter *ActionFilter) ([]*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.matching(filter)
	if filter == nil {
		return out, nil
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memRepository) CountActions(_ context.Context, filter *ActionFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matching(filter)), nil
}

func (r *memRepository) RevokeAction(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actions[id]
	if !ok || a.RevokedAt != nil || a.LiftedAt != nil {
		return false, nil
	}
	t := at
	a.RevokedAt = &t
	return true, nil
}

func (r *memRepository) LiftActiveBans(_ context.Context, userID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lifted []uuid.UUID
	for _, a := range r.actions {
		if a.ActionType != ActionBanUser || !sameID(a.TargetUserID, userID) || !a.ActiveAt(at) {
			continue
		}
		t := at
		a.LiftedAt = &t
		lifted = append(lifted, a.ID)
	}
	return lifted, nil
}

func (r *memRepository) InsertJob(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *memRepository) GetJob(_ context.Context, id uuid.UUID) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (r *memRepository) ListJobs(_ context.Context, status JobStatus, limit, offset int) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Job
	for _, j := range r.jobs {
		if status != "" && j.Status != status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID.String() < out[k].ID.String()
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepository) ClaimDue(_ context.Context, now, leaseUntil time.Time, limit int) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*Job
	for _, j := range r.jobs {
		if j.Status == JobPending && !j.NextAttemptAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].NextAttemptAt.Before(due[k].NextAttemptAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]*Job, 0, len(due))
	for _, j := range due {
		j.NextAttemptAt = leaseUntil
		j.UpdatedAt = now
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRepository) UpdateJob(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; !ok {
		return nil
	}
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *memRepository) RequeueFailed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != JobFailed {
		return false, nil
	}
	j.Status = JobPending
	j.Attempts = 0
	j.NextAttemptAt = at
	j.UpdatedAt = at
	return true, nil
}
