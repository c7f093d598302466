package errorhandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
)

func TestRespondMapsKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperror.Validation(map[string]string{"reason": "required"}), http.StatusUnprocessableEntity},
		{"not found", apperror.New(apperror.ErrNotFound, "report not found"), http.StatusNotFound},
		{"conflict", apperror.Wrapf(apperror.New(apperror.ErrConflict, "stale"), "report"), http.StatusConflict},
		{"permission", apperror.New(apperror.ErrPermission, "nope"), http.StatusForbidden},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Respond(context.Background(), rr, tt.err)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}
