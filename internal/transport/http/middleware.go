package http

import (
	"context"
	"net/http"
	"strings"

	"quizzz-service/internal/app"
	"quizzz-service/internal/domain"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	tokenKey
)

// authenticate attaches an AuthSession to every request. A missing or invalid token yields a
// signed-out session; routes that need an identity check it themselves.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		var identity *domain.Identity
		if token != "" {
			if id, err := s.identity.Identify(r.Context(), token); err == nil {
				identity = &id
			}
		}
		ctx := context.WithValue(r.Context(), sessionKey, app.NewAuthSession(identity))
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := sessionFrom(r.Context()).Require(); err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFrom(ctx context.Context) *app.AuthSession {
	session, _ := ctx.Value(sessionKey).(*app.AuthSession)
	return session
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// bearerToken reads the Authorization header, falling back to the token query parameter
// browsers have to use for WebSocket upgrades.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
