package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/jwt"
	"github.com/citywatch/citywatch-api/internal/pkg/password"
)

func TestAuthPutsPrincipalInContext(t *testing.T) {
	svc := jwt.NewService("test-secret", time.Minute)
	userID := uuid.New()
	token, err := svc.GenerateAccessToken(userID, "officer", false)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	var got access.Principal
	h := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.ID != userID || got.Role != access.RoleOfficer {
		t.Fatalf("unexpected principal %+v", got)
	}
}

func TestAuthRejectsBannedUser(t *testing.T) {
	svc := jwt.NewService("test-secret", time.Minute)
	token, _ := svc.GenerateAccessToken(uuid.New(), "user", true)

	h := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireStaffBlocksUsers(t *testing.T) {
	h := RequireStaff()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req.WithContext(withPrincipal(req, access.RoleUser)))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req.WithContext(withPrincipal(req, access.RoleLeadOfficer)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for lead officer, got %d", rr.Code)
	}
}

func TestCourtKey(t *testing.T) {
	password.Cost = bcrypt.MinCost
	hash, err := password.Hash("court-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h := CourtKey(hash)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for key, want := range map[string]int{"court-secret": http.StatusOK, "wrong": http.StatusUnauthorized, "": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if key != "" {
			req.Header.Set("X-Court-Key", key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("key %q: expected %d, got %d", key, want, rr.Code)
		}
	}
}
