package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"flatconnect/internal/engine"
)

type principalKey struct{}

var publicPaths = map[string]bool{
	"/health/":                           true,
	"/openapi.json":                      true,
	"/api/auth/login/":                   true,
	"/api/auth/registration/":            true,
	"/api/auth/social/google/login-url/": true,
}

func isPublic(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/media/")
}

func withPrincipal(ctx context.Context, p engine.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (engine.Principal, huma.StatusError) {
	if p, ok := ctx.Value(principalKey{}).(engine.Principal); ok && p.UserID != 0 {
		return p, nil
	}
	return engine.Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided.", nil)
}

// sessionToken accepts "Token <key>" and "Bearer <key>".
func sessionToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "token") && !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(e engine.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if isPublic(req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided.", nil))
				return
			}
			token, ok := sessionToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_token", "Invalid token header.", nil))
				return
			}
			p, err := e.PrincipalFromToken(req.Context(), token)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_token", "Invalid token.", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), p)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
