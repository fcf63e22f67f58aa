package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/screen"
)

// GET /users/me
func (h *Handler) Me(c echo.Context) error {
	s, ok := screen.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	addr := s.WalletAddress()
	ctx := c.Request().Context()

	switch s.Role() {
	case records.RoleClient:
		cl, err := h.clients.FindByID(ctx, addr)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"role": records.RoleClient, "user": cl})
	case records.RoleProvider:
		p, err := h.providers.FindByID(ctx, addr)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"role": records.RoleProvider, "user": p})
	}
	return c.JSON(http.StatusNotFound, echo.Map{"error": "wallet is not registered"})
}
