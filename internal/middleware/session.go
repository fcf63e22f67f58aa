package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/chatpay/internal/screen"
)

type TokenParser interface {
	Parse(token string) (string, error)
}

type SessionLookup interface {
	Get(id string) (*screen.Session, bool)
}

// SessionJWT authenticates the request against a live session. The token
// comes from the Authorization header, then the session cookie, and for
// websocket upgrades also from the token query parameter.
//
// On success it sets "session", "session_id", "wallet_address" and "role".
func SessionJWT(tokens TokenParser, sessions SessionLookup, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				if ck, err := c.Cookie(cookieName); err == nil {
					token = ck.Value
				}
			}
			if token == "" && isWebSocket(c.Request()) {
				token = c.QueryParam("token")
			}
			if token == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing session token"})
			}

			sid, err := tokens.Parse(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			s, ok := sessions.Get(sid)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
			}

			c.Set(screen.ContextKey, s)
			c.Set("session_id", sid)
			c.Set("wallet_address", s.WalletAddress())
			c.Set("role", string(s.Role()))
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func isWebSocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(echo.HeaderUpgrade), "websocket")
}
