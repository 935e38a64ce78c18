package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	SessionCookieName = "session"
	RefreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

// SetAuthCookies writes the session and refresh cookies.
func SetAuthCookies(w http.ResponseWriter, sessionToken, refreshToken string, secure bool, sessionDuration, refreshDuration time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		MaxAge:   int(sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		MaxAge:   int(refreshDuration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearAuthCookies expires both cookies.
func ClearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: "", Path: refreshCookiePath, MaxAge: -1, HttpOnly: true})
}

func GetSessionTokenFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

func GetRefreshTokenFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// ShouldUseCookies reports whether the caller is a browser. API clients
// opt out with X-Client-Type: api or by sending an Authorization header.
func ShouldUseCookies(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Client-Type"), "api") {
		return false
	}
	if r.Header.Get("Authorization") != "" {
		return false
	}
	return r.Header.Get("Origin") != "" || strings.Contains(r.Header.Get("Accept"), "text/html") || hasCookie(r)
}

func hasCookie(r *http.Request) bool {
	_, err := r.Cookie(SessionCookieName)
	if err == nil {
		return true
	}
	_, err = r.Cookie(RefreshCookieName)
	return err == nil
}
