package court

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepository struct {
	mu        sync.RWMutex
	referrals map[uuid.UUID]*Referral
}

// NewMemRepository creates an in-memory referral repository
func NewMemRepository() Repository {
	return &memRepository{referrals: make(map[uuid.UUID]*Referral)}
}

func (r *memRepository) Create(_ context.Context, ref *Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ref
	r.referrals[ref.ID] = &cp
	return nil
}

func (r *memRepository) GetByID(_ context.Context, id uuid.UUID) (*Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.referrals[id]
	if !ok {
		return nil, nil
	}
	cp := *ref
	return &cp, nil
}

func sameReport(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *memRepository) FindPending(_ context.Context, actorID uuid.UUID, reportID *uuid.UUID) (*Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ref := range r.referrals {
		if ref.Status == StatusPending && ref.ActorID == actorID && sameReport(ref.ReportID, reportID) {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepository) pending(keep func(*Referral) bool, less func(a, b *Referral) bool, limit int) []*Referral {
	var out []*Referral
	for _, ref := range r.referrals {
		if ref.Status == StatusPending && keep(ref) {
			cp := *ref
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memRepository) ListPending(_ context.Context, actorID *uuid.UUID, limit int) ([]*Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending(
		func(ref *Referral) bool { return actorID == nil || ref.ActorID == *actorID },
		func(a, b *Referral) bool { return a.CreatedAt.Before(b.CreatedAt) },
		limit,
	), nil
}

func (r *memRepository) ListOverdue(_ context.Context, now time.Time, limit int) ([]*Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending(
		func(ref *Referral) bool { return ref.ExpiresAt != nil && !ref.ExpiresAt.After(now) },
		func(a, b *Referral) bool { return a.ExpiresAt.Before(*b.ExpiresAt) },
		limit,
	), nil
}

func (r *memRepository) Resolve(_ context.Context, id uuid.UUID, ruling Ruling, actionID *uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.referrals[id]
	if !ok || ref.Status != StatusPending {
		return false, nil
	}
	ref.Status = StatusResolved
	ref.Ruling = &ruling
	ref.ActionID = actionID
	ref.ResolvedAt = &at
	return true, nil
}

func (r *memRepository) Expire(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.referrals[id]
	if !ok || ref.Status != StatusPending {
		return false, nil
	}
	ref.Status = StatusExpired
	ref.ResolvedAt = &at
	return true, nil
}
