package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	seq     int64
}

// NewMemRepository creates an in-memory audit repository
func NewMemRepository() Repository {
	return &memRepository{entries: make(map[string]*Entry)}
}

func (r *memRepository) Append(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.TxID = 0
	e.Seq = r.seq
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *memRepository) GetByID(_ context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *memRepository) MarkReversed(_ context.Context, id string, by uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.ReversedAt != nil {
		return false, nil
	}
	e.ReversedAt = &at
	e.ReversedBy = &by
	return true, nil
}

func (r *memRepository) matching(filter *ListFilter) []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if filter != nil {
			if filter.ActionType != "" && e.ActionType != filter.ActionType {
				continue
			}
			if filter.TargetID != "" && e.TargetID != filter.TargetID {
				continue
			}
			if filter.ActorID != nil && e.ActorID != *filter.ActorID {
				continue
			}
			if filter.Reversed != nil && e.IsReversed() != *filter.Reversed {
				continue
			}
			if filter.From != nil && e.CreatedAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && !e.CreatedAt.Before(*filter.To) {
				continue
			}
		}
		cp := *e
		out = append(out, &cp)
	}
	return out
}

func (r *memRepository) List(_ context.Context, filter *ListFilter) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.matching(filter)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	limit, offset := 50, 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		offset = filter.Offset
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepository) Count(_ context.Context, filter *ListFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matching(filter)), nil
}

func (r *memRepository) Since(_ context.Context, cursor Cursor, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, e := range r.entries {
		if cursor.After(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
