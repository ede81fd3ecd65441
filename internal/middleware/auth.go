package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"imgshare-backend/internal/models"
	"imgshare-backend/internal/token"
	"imgshare-backend/utils/response"
)

type contextKey string

const SessionContextKey contextKey = "session"

// AuthMiddleware guards routes with the signed-session cookie. It only
// reads the token; identity lookups stay in the handlers so that an
// expired cookie never touches storage.
type AuthMiddleware struct {
	codec      *token.Codec
	cookieName string
	log        *zap.Logger
}

func NewAuthMiddleware(codec *token.Codec, cookieName string, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{codec: codec, cookieName: cookieName, log: log}
}

// Session extracts and verifies the token cookie. ok=false for a missing,
// malformed, tampered or expired token alike.
func (m *AuthMiddleware) Session(r *http.Request) (token.Payload, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return token.Payload{}, false
	}
	return m.codec.Verify(cookie.Value)
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := m.Session(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Not authenticated")
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, &session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r.Context())
		if session == nil || session.Role != models.UserRoleAdmin {
			response.Error(w, http.StatusForbidden, response.CodeForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// Gate runs in front of the whole mux, before any handler can touch
// storage. Paths on the allow-list pass through; unauthenticated browser
// requests are redirected to the login page with the original path as the
// return target, while unauthenticated API requests get a 401 envelope.
// Non-admins asking for admin pages are sent back to the root.
func (m *AuthMiddleware) Gate(publicPaths []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		for _, public := range publicPaths {
			if path == public || strings.HasPrefix(path, public+"/") {
				next.ServeHTTP(w, r)
				return
			}
		}

		session, ok := m.Session(r)
		if !ok {
			if strings.HasPrefix(path, "/api/") {
				response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Not authenticated")
				return
			}
			m.log.Debug("redirecting unauthenticated request", zap.String("path", path))
			http.Redirect(w, r, "/login?redirect="+url.QueryEscape(path), http.StatusFound)
			return
		}

		if strings.HasPrefix(path, "/admin") && session.Role != models.UserRoleAdmin {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, &session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetSessionFromContext(ctx context.Context) *token.Payload {
	session, ok := ctx.Value(SessionContextKey).(*token.Payload)
	if !ok {
		return nil
	}
	return session
}
