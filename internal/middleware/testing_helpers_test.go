package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/pkg/access"
)

func withPrincipal(r *http.Request, role access.Role) context.Context {
	ctx := context.WithValue(r.Context(), UserIDKey, uuid.New())
	return context.WithValue(ctx, RoleKey, role)
}
