package middleware

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
)

// RequireAdminAuth validates the env-based static token (ADMIN_TOKEN) only.
// Rule administration and manual pass triggers are operator actions; a single
// token for the trusted internal operator, no role framework.
// Missing or mismatched token yields 403.
func RequireAdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminToken := os.Getenv("ADMIN_TOKEN")
		if adminToken == "" {
			forbid(w, "Admin access not configured")
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			forbid(w, "Authorization header required")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			forbid(w, "Invalid authorization format")
			return
		}
		if parts[1] != adminToken {
			forbid(w, "Invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func forbid(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{"error": "Forbidden", "message": message})
}
