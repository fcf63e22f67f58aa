package marketplace

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/records"
)

// POST /contracts/:id/confirm
// The party confirming is taken from the session, so a client can only set
// the client flag and a provider only the provider flag.
func (h *Contracts) Confirm(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	ct, err := h.participantContract(c, s)
	if ct == nil {
		return err
	}

	role := s.Role()
	addr := s.WalletAddress()
	if (role == records.RoleClient && ct.ClientID != addr) || (role == records.RoleProvider && ct.ProviderID != addr) || role == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your side of this contract"})
	}

	updated, err := h.escrow.Confirm(c.Request().Context(), ct.ID, role)
	if err != nil {
		return lifecycleError(c, h.log.WithField("contract_id", ct.ID), err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "confirmation recorded", "contract": updated})
}

// POST /contracts/:id/cancel
func (h *Contracts) Cancel(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	ct, err := h.participantContract(c, s)
	if ct == nil {
		return err
	}

	updated, err := h.escrow.Cancel(c.Request().Context(), ct.ID)
	if err != nil {
		return lifecycleError(c, h.log.WithField("contract_id", ct.ID), err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "contract cancelled", "contract": updated})
}

func lifecycleError(c echo.Context, log logrus.FieldLogger, err error) error {
	switch {
	case errors.Is(err, records.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "contract not found"})
	case errors.Is(err, records.ErrContractClosed), errors.Is(err, records.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	log.WithError(err).Error("contract update failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update contract"})
}
