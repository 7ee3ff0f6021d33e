package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/arenazl/munify-sub001/utils"
)

type contextKey string

// Context keys carrying the authenticated staff identity.
const (
	ContextKeyEmployeeID contextKey = "employee_id"
	ContextKeyTenantID   contextKey = "tenant_id"
	ContextKeyRole       contextKey = "role"
)

// StaffAuthMiddleware validates staff JWTs and injects the employee identity
// into the request context. Lifecycle mutations require a staff actor.
type StaffAuthMiddleware struct {
	secret []byte
}

// NewStaffAuthMiddleware creates a staff auth middleware.
func NewStaffAuthMiddleware(secret string) *StaffAuthMiddleware {
	return &StaffAuthMiddleware{secret: []byte(secret)}
}

// RequireStaffAuth rejects requests without a valid staff token.
func (m *StaffAuthMiddleware) RequireStaffAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Authorization header required")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(w, "Invalid authorization format")
			return
		}

		claims, err := utils.ParseStaffJWT(parts[1], m.secret)
		if err != nil {
			unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyEmployeeID, claims.EmployeeID)
		ctx = context.WithValue(ctx, ContextKeyTenantID, claims.TenantID)
		ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EmployeeIDFromContext returns the authenticated employee ID, if any.
func EmployeeIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyEmployeeID).(int64)
	return id, ok
}

// TenantIDFromContext returns the authenticated tenant ID, if any.
func TenantIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyTenantID).(int64)
	return id, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "message": message})
}
