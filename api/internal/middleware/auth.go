package middleware

import (
	"net/http"
	"strings"

	"collab-workspace-system/shared/actorx"
	"collab-workspace-system/shared/authx"
	"collab-workspace-system/shared/httpx"
)

const HeaderUserID = "X-User-ID"

type AuthMiddleware struct {
	// Verifier checks bearer tokens. When nil the caller is taken from the
	// X-User-ID header, which is only meant for local development.
	Verifier *authx.JWTVerifier
	Skip     func(*http.Request) bool
}

func (m AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip != nil && m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		if m.Verifier == nil {
			if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
				r = r.WithContext(actorx.WithActor(r.Context(), actorx.Actor{ID: id, Source: "header"}))
			}
			next.ServeHTTP(w, r)
			return
		}

		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token", nil)
			return
		}
		token := strings.TrimSpace(authHeader[len("bearer "):])
		actor, err := m.Verifier.Verify(r.Context(), token)
		if err != nil {
			httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(actorx.WithActor(r.Context(), actor)))
	})
}
