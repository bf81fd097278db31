package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// Authentication happens at the gateway in front of this service; the
// gateway verifies the caller's token and forwards the resolved identity
// in headers. The service trusts those headers verbatim.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	RoleAdmin = "admin"
)

type Identity struct {
	UserID string
	Role   string
}

type identityContextKey struct{}

// IdentityMiddleware extracts the forwarded identity and rejects API
// requests that arrive without one. Health and metrics endpoints stay open.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity", nil)
			return
		}
		identity := Identity{
			UserID: userID,
			Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole))),
		}
		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
