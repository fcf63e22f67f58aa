package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireWallet rejects requests from sessions without a connected wallet.
func RequireWallet(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		addr, ok := c.Get("wallet_address").(string)
		if !ok || addr == "" {
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": "wallet not connected",
			})
		}
		return next(c)
	}
}
