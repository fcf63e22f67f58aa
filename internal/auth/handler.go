// Package auth starts browser sessions and hands out the token that binds
// later requests and the wallet relay socket to them.
package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/screen"
)

type Handler struct {
	sessions   *screen.Manager
	tokens     *Tokens
	cookieName string
	log        logrus.FieldLogger
}

func NewHandler(sessions *screen.Manager, tokens *Tokens, cookieName string, log logrus.FieldLogger) *Handler {
	return &Handler{sessions: sessions, tokens: tokens, cookieName: cookieName, log: log.WithField("component", "auth")}
}

type StartSessionResponse struct {
	SessionID string      `json:"session_id"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	View      screen.View `json:"view"`
}

// StartSession creates a session on the login screen and returns its token,
// also set as an HttpOnly cookie.
func (h *Handler) StartSession(c echo.Context) error {
	s := h.sessions.Create()
	token, err := h.tokens.Issue(s.ID())
	if err != nil {
		h.sessions.Remove(s.ID())
		h.log.WithError(err).Error("issue session token")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not start session"})
	}
	expires := time.Now().Add(h.tokens.TTL())

	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.IsTLS(),
	})
	return c.JSON(http.StatusCreated, StartSessionResponse{
		SessionID: s.ID(),
		Token:     token,
		ExpiresAt: expires,
		View:      s.View(),
	})
}

// GetSession returns the current view of the caller's session.
func (h *Handler) GetSession(c echo.Context) error {
	s, ok := screen.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, s.View())
}

// EndSession drops the session entirely and clears the cookie.
func (h *Handler) EndSession(c echo.Context) error {
	s, ok := screen.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	_ = s.Logout(c.Request().Context())
	h.sessions.Remove(s.ID())
	c.SetCookie(&http.Cookie{Name: h.cookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	return c.NoContent(http.StatusNoContent)
}
