package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AuthCookie is the cookie the web client sets once a wallet is connected.
const AuthCookie = "tonconnect_auth"

// LoginRedirect is where unauthenticated visits to protected pages land.
const LoginRedirect = "/?login=required"

var (
	publicPrefixes    = []string{"/login", "/api/", "/_next/", "/favicon.ico", "/ChatPay-Go-1.png", "/manifest.json"}
	protectedPrefixes = []string{"/dashboard", "/profile", "/settings"}
)

// Gate decides a page request. It returns the redirect target, or "" when
// the request may pass. The check is advisory: it only looks for the
// presence of credentials, the API enforces them.
func Gate(path string, hasAuthHeader, hasAuthCookie bool) string {
	if path == "/" {
		return ""
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return ""
		}
	}
	for _, p := range protectedPrefixes {
		if strings.HasPrefix(path, p) {
			if hasAuthHeader || hasAuthCookie {
				return ""
			}
			return LoginRedirect
		}
	}
	return ""
}

// PathGate applies Gate to page requests. Either the web client's
// AuthCookie or the server's own session cookie counts as a credential.
func PathGate(sessionCookie string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			if target := Gate(r.URL.Path, r.Header.Get(echo.HeaderAuthorization) != "", hasCookie(r, AuthCookie, sessionCookie)); target != "" {
				return c.Redirect(http.StatusFound, target)
			}
			return next(c)
		}
	}
}

func hasCookie(r *http.Request, names ...string) bool {
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, err := r.Cookie(n); err == nil {
			return true
		}
	}
	return false
}
