package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/eventbus"
	"github.com/citywatch/citywatch-api/internal/pkg/ids"
)

// Archive receives exported ledger batches
type Archive interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
}

const (
	maxChangesBatch = 200
	maxChangesWait  = 60 * time.Second
	exportPageSize  = 500
)

// Service is the audit and rollback ledger
type Service struct {
	repo    Repository
	bus     eventbus.Bus
	archive Archive
	now     func() time.Time
}

// NewService creates the audit service. bus and archive may be nil.
func NewService(repo Repository, bus eventbus.Bus, archive Archive) *Service {
	return &Service{
		repo:    repo,
		bus:     bus,
		archive: archive,
		now:     time.Now,
	}
}

// Record appends an entry. ID and CreatedAt are assigned when empty.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if err := e.Payload.validate(e.ActionType); err != nil {
		return apperror.Wrapf(ErrInvalidPayload, "%s", e.ActionType)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if e.ID == "" {
		e.ID = ids.At(e.CreatedAt)
	}
	return s.repo.Append(ctx, e)
}

// Lookup returns the entry without a permission check. Used by the executor.
func (s *Service) Lookup(ctx context.Context, id string) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

// Get returns an entry by id
func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*Entry, error) {
	if err := access.Require(p, access.PermViewAudit); err != nil {
		return nil, err
	}
	return s.Lookup(ctx, id)
}

// MarkReversed sets the reversal fields exactly once.
func (s *Service) MarkReversed(ctx context.Context, id string, by uuid.UUID, at time.Time) error {
	ok, err := s.repo.MarkReversed(ctx, id, by, at)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrEntryNotFound
	}
	return ErrAlreadyReversed
}

// List returns entries newest first together with the total count
func (s *Service) List(ctx context.Context, p access.Principal, filter *ListFilter) ([]*Entry, int, error) {
	if err := access.Require(p, access.PermViewAudit); err != nil {
		return nil, 0, err
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Changes returns entries committed after cursor. When none exist yet and
// wait is positive it blocks until an engine event arrives or wait elapses.
// The returned cursor follows the last entry, or is the input cursor.
func (s *Service) Changes(ctx context.Context, p access.Principal, raw string, wait time.Duration, limit int) ([]*Entry, string, error) {
	if err := access.Require(p, access.PermViewAudit); err != nil {
		return nil, "", err
	}
	cursor, err := ParseCursor(raw)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 || limit > maxChangesBatch {
		limit = maxChangesBatch
	}
	if wait > maxChangesWait {
		wait = maxChangesWait
	}

	var wake <-chan eventbus.Event
	if wait > 0 && s.bus != nil {
		subCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		ch, err := s.bus.Subscribe(subCtx)
		if err == nil {
			wake = ch
		}
	}

	entries, err := s.repo.Since(ctx, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	if len(entries) > 0 || wake == nil {
		return entries, nextCursor(entries, cursor), nil
	}

	select {
	case <-ctx.Done():
		return nil, raw, nil
	case _, ok := <-wake:
		if !ok {
			return nil, raw, nil
		}
	}

	entries, err = s.repo.Since(ctx, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	return entries, nextCursor(entries, cursor), nil
}

func nextCursor(entries []*Entry, cursor Cursor) string {
	if len(entries) == 0 {
		return cursor.String()
	}
	return entries[len(entries)-1].Cursor().String()
}

// Export writes entries created in [from, to) as JSON lines to the archive
// and returns the object key and number of entries written.
func (s *Service) Export(ctx context.Context, p access.Principal, from, to time.Time) (string, int, error) {
	if err := access.Require(p, access.PermExportAudit); err != nil {
		return "", 0, err
	}
	if s.archive == nil {
		return "", 0, ErrArchiveDisabled
	}
	if !from.Before(to) {
		return "", 0, apperror.Validation(map[string]string{"to": "must be after from"})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0
	filter := &ListFilter{From: &from, To: &to, Limit: exportPageSize}
	for {
		page, err := s.repo.List(ctx, filter)
		if err != nil {
			return "", 0, err
		}
		for _, e := range page {
			if err := enc.Encode(e); err != nil {
				return "", 0, err
			}
		}
		count += len(page)
		if len(page) < exportPageSize {
			break
		}
		filter.Offset += exportPageSize
	}

	key := fmt.Sprintf("audit/%s_%s.jsonl", from.UTC().Format("20060102T150405Z"), to.UTC().Format("20060102T150405Z"))
	if err := s.archive.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return "", 0, fmt.Errorf("archive put: %w", err)
	}

	log.Info().Str("key", key).Int("entries", count).Msg("Audit ledger exported")
	return key, count, nil
}
