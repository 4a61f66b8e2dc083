package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/property-booking/backend/internal/auth"
)

// PermissionLoader resolves the permission names granted to a user.
type PermissionLoader interface {
	PermissionNames(ctx context.Context, userID int64) ([]string, error)
}

// Authenticate requires a valid bearer token and stores the caller, with
// their permissions loaded once, in the request context.
func Authenticate(tokens *auth.Tokens, perms PermissionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Authorization header required")
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Invalid authorization header format")
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, err.Error())
				return
			}

			names, err := perms.PermissionNames(r.Context(), claims.UserID)
			if err != nil {
				log.Printf("[%s] Error loading permissions for user %d: %v", RequestID(r.Context()), claims.UserID, err)
				WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to load permissions")
				return
			}

			principal := &auth.Principal{
				UserID:      claims.UserID,
				RoleID:      claims.RoleID,
				Permissions: make(map[string]bool, len(names)),
			}
			for _, name := range names {
				principal.Permissions[name] = true
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequirePermission rejects callers lacking the named permission. It must
// run after Authenticate.
func RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.FromContext(r.Context())
			if p == nil {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Authentication required")
				return
			}
			if !p.Can(name) {
				WriteError(w, http.StatusForbidden, ErrForbidden, "Missing permission "+name)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
