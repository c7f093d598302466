package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/errorhandler"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
	"github.com/citywatch/citywatch-api/internal/pkg/validator"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler handles audit ledger HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates audit handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List returns ledger entries
// GET /moderation/audit?action_type=&target_id=&actor_id=&reversed=&from=&to=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r, defaultPageSize, maxPageSize)
	q := r.URL.Query()
	filter := &ListFilter{
		ActionType: EntryType(q.Get("action_type")),
		TargetID:   q.Get("target_id"),
		Limit:      limit,
		Offset:     offset,
	}
	if actor := q.Get("actor_id"); actor != "" {
		id, err := uuid.Parse(actor)
		if err != nil {
			response.BadRequest(w, "Invalid actor_id")
			return
		}
		filter.ActorID = &id
	}
	if reversed := q.Get("reversed"); reversed != "" {
		v, err := strconv.ParseBool(reversed)
		if err != nil {
			response.BadRequest(w, "Invalid reversed flag")
			return
		}
		filter.Reversed = &v
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid "+name+" timestamp")
			return
		}
		*dst = &t
	}

	entries, total, err := h.service.List(r.Context(), middleware.GetPrincipal(r.Context()), filter)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}

	response.WithMeta(w, entries, response.Page(total, limit, offset))
}

// Get returns one entry
// GET /moderation/audit/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), middleware.GetPrincipal(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, entry)
}

// Changes long-polls for entries after a cursor
// GET /moderation/audit/changes?cursor=&wait=30s&limit=
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var wait time.Duration
	if raw := q.Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			response.BadRequest(w, "Invalid wait duration")
			return
		}
		wait = d
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, cursor, err := h.service.Changes(r.Context(), middleware.GetPrincipal(r.Context()), q.Get("cursor"), wait, limit)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}

	response.OK(w, ChangesResponse{Entries: entries, Cursor: cursor})
}

// Export archives a window of the ledger
// POST /moderation/audit/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	key, count, err := h.service.Export(r.Context(), middleware.GetPrincipal(r.Context()), req.From, req.To)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, ExportResponse{Key: key, Entries: count})
}
