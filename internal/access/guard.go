// Package access redirects page navigations that lack a session or an
// entitlement. API routes answer with status codes instead and are not guarded.
package access

import (
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/redmonkez12/fitcoach-api/internal/auth"
	"github.com/redmonkez12/fitcoach-api/internal/entitlement"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/metrics"
)

const (
	LoginPath   = "/login"
	PaywallPath = "/paywall"
)

var defaultPrefixes = []string{
	"/api/",
	"/auth/",
	"/onboarding/",
	"/static/",
	"/_next/",
	"/swagger/",
}

var defaultExact = []string{
	LoginPath,
	"/register",
	"/forgot-password",
	"/reset-password",
	PaywallPath,
	"/favicon.ico",
	"/robots.txt",
	"/health",
	"/metrics",
}

var assetExtensions = map[string]bool{
	".js": true, ".css": true, ".map": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".ico": true, ".webp": true, ".woff": true, ".woff2": true,
	".ttf": true, ".txt": true, ".webmanifest": true,
}

// Matcher decides which paths skip the guard.
type Matcher struct {
	prefixes []string
	exact    map[string]bool
}

// NewMatcher builds the default exclusion set plus any extra prefixes.
func NewMatcher(extraPrefixes ...string) *Matcher {
	m := &Matcher{
		prefixes: append(append([]string{}, defaultPrefixes...), extraPrefixes...),
		exact:    make(map[string]bool, len(defaultExact)),
	}
	for _, p := range defaultExact {
		m.exact[p] = true
	}
	return m
}

// Excluded reports whether p is served without a session.
func (m *Matcher) Excluded(p string) bool {
	if m.exact[p] || m.exact[strings.TrimSuffix(p, "/")] {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/") {
			return true
		}
	}
	return assetExtensions[strings.ToLower(path.Ext(p))]
}

// Guard checks the session snapshot on protected navigations. It never reads
// storage; the snapshot is as fresh as the last session issue or refresh.
type Guard struct {
	sessions auth.SessionTokenService
	matcher  *Matcher
	now      func() time.Time
}

func NewGuard(sessions auth.SessionTokenService, matcher *Matcher) *Guard {
	if matcher == nil {
		matcher = NewMatcher()
	}
	return &Guard{sessions: sessions, matcher: matcher, now: time.Now}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.matcher.Excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		logger := logging.GetLoggerFromContext(r.Context())

		claims, err := g.session(r)
		if err != nil {
			logger.Debug("guard: no valid session", "path", r.URL.Path, "error", err.Error())
			metrics.AccessGuardRedirectsTotal.WithLabelValues("login").Inc()
			http.Redirect(w, r, loginURL(r), http.StatusSeeOther)
			return
		}

		if !entitlement.Resolve(claims.Entitlement(), g.now()).HasAccess {
			logger.Debug("guard: no access", "path", r.URL.Path, "user_id", claims.UserID)
			metrics.AccessGuardRedirectsTotal.WithLabelValues("paywall").Inc()
			http.Redirect(w, r, PaywallPath, http.StatusSeeOther)
			return
		}

		ctx := auth.WithSession(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) session(r *http.Request) (*auth.SessionClaims, error) {
	token, err := auth.GetSessionTokenFromCookie(r)
	if err != nil {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else {
			return nil, err
		}
	}
	return g.sessions.VerifyToken(token)
}

func loginURL(r *http.Request) string {
	next := r.URL.Path
	if r.URL.RawQuery != "" {
		next += "?" + r.URL.RawQuery
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}
