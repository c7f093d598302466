package reputation

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type recordKey struct {
	actorID uuid.UUID
	class   ActorClass
}

type memRepository struct {
	mu      sync.RWMutex
	records map[recordKey]*Record
	events  []*Event
}

// NewMemRepository creates an in-memory reputation repository
func NewMemRepository() Repository {
	return &memRepository{records: make(map[recordKey]*Record)}
}

func (r *memRepository) Lock(_ context.Context, start *Record) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey{start.ActorID, start.ActorClass}
	rec, ok := r.records[key]
	if !ok {
		cp := *start
		cp.UpdatedAt = cp.CreatedAt
		r.records[key] = &cp
		rec = &cp
	}
	out := *rec
	return &out, nil
}

func (r *memRepository) Get(_ context.Context, actorID uuid.UUID, class ActorClass) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[recordKey{actorID, class}]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (r *memRepository) Save(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records[recordKey{rec.ActorID, rec.ActorClass}] = &cp
	return nil
}

func (r *memRepository) HasEvent(_ context.Context, actorID uuid.UUID, class ActorClass, eventType EventType, referenceID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events {
		if e.ActorID == actorID && e.ActorClass == class && e.EventType == eventType &&
			e.ReferenceID != nil && *e.ReferenceID == referenceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepository) InsertEvent(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

func (r *memRepository) matching(actorID uuid.UUID, class ActorClass) []*Event {
	var out []*Event
	for _, e := range r.events {
		if e.ActorID == actorID && e.ActorClass == class {
			cp := *e
			out = append(out, &cp)
		}
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memRepository) ListEvents(_ context.Context, actorID uuid.UUID, class ActorClass, limit, offset int) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.matching(actorID, class)
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *memRepository) CountEvents(_ context.Context, actorID uuid.UUID, class ActorClass) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matching(actorID, class)), nil
}
