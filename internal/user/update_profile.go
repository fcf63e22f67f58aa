package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/screen"
)

// PATCH /users/me
// Only the fields present in the body change.
func (h *Handler) UpdateProfile(c echo.Context) error {
	s, ok := screen.FromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	addr := s.WalletAddress()
	ctx := c.Request().Context()

	switch s.Role() {
	case records.RoleClient:
		var patch ClientPatch
		if err := c.Bind(&patch); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
		}
		if err := c.Validate(&patch); err != nil {
			return validationFailed(c, err)
		}
		cl, err := h.clients.Update(ctx, addr, patch.update())
		if err != nil {
			return storeError(c, err)
		}
		s.RefreshRecord(cl)
		return c.JSON(http.StatusOK, echo.Map{"message": "profile updated", "user": cl})

	case records.RoleProvider:
		var patch ProviderPatch
		if err := c.Bind(&patch); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
		}
		if err := c.Validate(&patch); err != nil {
			return validationFailed(c, err)
		}
		p, err := h.providers.Update(ctx, addr, patch.update())
		if err != nil {
			return storeError(c, err)
		}
		s.RefreshRecord(p)
		return c.JSON(http.StatusOK, echo.Map{"message": "profile updated", "user": p})
	}
	return c.JSON(http.StatusNotFound, echo.Map{"error": "wallet is not registered"})
}
