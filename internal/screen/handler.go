package screen

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

// ContextKey is where the session middleware stores the *Session.
const ContextKey = "session"

// FromContext returns the session bound to the request.
func FromContext(c echo.Context) (*Session, bool) {
	s, ok := c.Get(ContextKey).(*Session)
	return s, ok && s != nil
}

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Register(g *echo.Group) {
	g.POST("/user-type", h.SelectUserType)
	g.POST("/back", h.Back)
	g.POST("/search", h.Search)
	g.POST("/navigate", h.Navigate)
	g.POST("/dashboard", h.Dashboard)
	g.POST("/logout", h.Logout)
}

func sessionOr401(c echo.Context) (*Session, error) {
	s, ok := FromContext(c)
	if !ok {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return s, nil
}

func (h *Handler) SelectUserType(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	var body struct {
		UserType string `json:"user_type"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
	}
	if err := s.SelectUserType(records.Role(body.UserType)); err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *Handler) Back(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	s.GoBackToUserTypeSelection()
	return c.JSON(http.StatusOK, s.View())
}

func (h *Handler) Search(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	if err := s.GoToSearch(); err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *Handler) Navigate(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	var body struct {
		Screen Screen `json:"screen"`
	}
	if err := c.Bind(&body); err != nil || !body.Screen.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screen"})
	}
	if err := s.Navigate(body.Screen); err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *Handler) Dashboard(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	s.ReturnToDashboard()
	return c.JSON(http.StatusOK, s.View())
}

func (h *Handler) Logout(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	if err := s.Logout(c.Request().Context()); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error(), "view": s.View()})
	}
	return c.JSON(http.StatusOK, s.View())
}

func actionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidUserType):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, ErrNotConnected), errors.Is(err, wallet.ErrNotConnected):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, ErrNavigation):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
