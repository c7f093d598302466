package court

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/password"
)

func requestAs(method, target, body string, p access.Principal) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, p.ID)
	ctx = context.WithValue(ctx, middleware.RoleKey, p.Role)
	return req.WithContext(ctx)
}

func passthrough(next http.Handler) http.Handler { return next }

func TestCourtCallbackRequiresKey(t *testing.T) {
	f := newFixture(t, Options{})
	_, _, referralID := f.refer(t)
	hash, err := password.Hash("court-secret")
	require.NoError(t, err)
	router := NewHandler(f.svc).CourtRoutes(middleware.CourtKey(hash))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pending", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/pending", nil)
	req.Header.Set("X-Court-Key", "court-secret")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var listed struct {
		Data []Referral `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, referralID, listed.Data[0].ID)
}

func TestVerdictOverHTTP(t *testing.T) {
	f := newFixture(t, Options{})
	_, _, referralID := f.refer(t)
	router := NewHandler(f.svc).CourtRoutes(passthrough)
	target := "/" + referralID.String() + "/verdict"

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"ruling":"maybe"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"ruling":"guilty"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "a court session needs a sentence")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target,
		strings.NewReader(`{"ruling":"guilty","consequence_type":"timeout","duration_minutes":60}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resolved struct {
		Data Referral `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resolved))
	assert.Equal(t, StatusResolved, resolved.Data.Status)
	assert.NotNil(t, resolved.Data.ActionID)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"ruling":"dismissed"}`)))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/"+uuid.NewString()+"/verdict", strings.NewReader(`{"ruling":"dismissed"}`)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminReferralRoutes(t *testing.T) {
	f := newFixture(t, Options{})
	actor, _, referralID := f.refer(t)
	router := NewHandler(f.svc).AdminRoutes(passthrough)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodGet, "/pending?actor_id="+actor.String(), "", citizen))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodGet, "/pending?actor_id=nope", "", officer))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(http.MethodGet, "/"+referralID.String(), "", officer))
	assert.Equal(t, http.StatusOK, rr.Code)
}
