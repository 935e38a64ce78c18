package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/httputil"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/metrics"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey    ContextKey = "user_id"
	UserEmailContextKey ContextKey = "user_email"
	SessionContextKey   ContextKey = "session"
)

var errMalformedHeader = errors.New("malformed authorization header")

// Middleware authenticates web sessions and mobile bearer tokens.
type Middleware struct {
	sessions SessionTokenService
	mobile   MobileTokenIssuer
}

func NewMiddleware(sessions SessionTokenService, mobile MobileTokenIssuer) *Middleware {
	return &Middleware{sessions: sessions, mobile: mobile}
}

// RequireSession validates the web session token from the Authorization
// header or, failing that, the session cookie.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if errors.Is(err, errMalformedHeader) {
			reject(w, r, "web", "invalid authorization header format", httputil.CodeInvalidAuthHeader)
			return
		}
		if token == "" {
			cookieToken, err := GetSessionTokenFromCookie(r)
			if err != nil || cookieToken == "" {
				reject(w, r, "web", "missing authentication", httputil.CodeMissingAuth)
				return
			}
			token = cookieToken
		}

		claims, err := m.sessions.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				reject(w, r, "web", "token has expired", httputil.CodeTokenExpired)
				return
			}
			reject(w, r, "web", "invalid token", httputil.CodeInvalidToken)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims)))
	})
}

// RequireMobileAuth validates the mobile bearer token. Only the header is
// accepted; the app never uses cookies.
func (m *Middleware) RequireMobileAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if errors.Is(err, errMalformedHeader) {
			reject(w, r, "mobile", "invalid authorization header format", httputil.CodeInvalidAuthHeader)
			return
		}
		if token == "" {
			reject(w, r, "mobile", "missing authentication", httputil.CodeMissingAuth)
			return
		}

		claims, userID, err := m.mobile.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				reject(w, r, "mobile", "token has expired", httputil.CodeTokenExpired)
				return
			}
			reject(w, r, "mobile", "invalid token", httputil.CodeInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
		ctx = context.WithValue(ctx, UserEmailContextKey, claims.Email)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMalformedHeader
	}
	return strings.TrimSpace(token), nil
}

func reject(w http.ResponseWriter, r *http.Request, surface, message, code string) {
	logging.GetLoggerFromContext(r.Context()).Debug("request not authenticated", "surface", surface, "code", code)
	metrics.AuthFailuresTotal.WithLabelValues(surface, code).Inc()
	httputil.RespondErrorWithCode(w, message, code, http.StatusUnauthorized)
}

// WithSession stores verified session claims and the identity they carry.
func WithSession(ctx context.Context, claims *SessionClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, claims.UserID)
	ctx = context.WithValue(ctx, UserEmailContextKey, claims.Email)
	return context.WithValue(ctx, SessionContextKey, claims)
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	return userID, ok
}

// GetUserEmailFromContext extracts the user email from the request context
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailContextKey).(string)
	return email, ok
}

// GetSessionFromContext returns the web session claims set by RequireSession.
func GetSessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(SessionContextKey).(*SessionClaims)
	return claims, ok
}
