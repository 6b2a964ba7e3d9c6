package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// Headers set by the authenticating proxy in front of the server.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// RoleAdmin may read every user's runs.
const RoleAdmin = "admin"

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller has the admin role.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// CanRead reports whether the caller may read a run owned by ownerID.
func (id Identity) CanRead(ownerID string) bool {
	return id.IsAdmin() || id.UserID == ownerID
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller stored by identityMiddleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// identityMiddleware attaches the caller named by the identity headers.
// Requests without a user header pass through anonymously; handlers that
// need a caller use requireIdentity.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if user != "" {
			id := Identity{
				UserID: user,
				Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
			}
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// requireIdentity rejects anonymous requests with 401.
func requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}
