package marketplace

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/escrow"
	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/screen"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

type ContractFinder interface {
	FindByID(ctx context.Context, id string) (*records.Contract, error)
	FindByClient(ctx context.Context, clientID string) ([]records.Contract, error)
	FindByProvider(ctx context.Context, providerID string) ([]records.Contract, error)
}

type ProviderLookup interface {
	FindByID(ctx context.Context, id string) (*records.Provider, error)
}

// Escrow is the contract lifecycle. Implemented by *escrow.Service.
type Escrow interface {
	Contract(ctx context.Context, conn wallet.Connector, userAddress string, provider *records.Provider) (*escrow.Result, error)
	Confirm(ctx context.Context, contractID string, role records.Role) (*records.Contract, error)
	Cancel(ctx context.Context, contractID string) (*records.Contract, error)
}

type Contracts struct {
	contracts ContractFinder
	providers ProviderLookup
	escrow    Escrow
	log       logrus.FieldLogger
}

func NewContracts(contracts ContractFinder, providers ProviderLookup, esc Escrow, log logrus.FieldLogger) *Contracts {
	return &Contracts{contracts: contracts, providers: providers, escrow: esc, log: log}
}

// Register mounts the contract routes. create is wrapped with the extra
// middleware, typically a client-only role check.
func (h *Contracts) Register(g *echo.Group, create ...echo.MiddlewareFunc) {
	g.POST("/contracts", h.Create, create...)
	g.GET("/contracts", h.List)
	g.GET("/contracts/:id", h.Get)
	g.POST("/contracts/:id/confirm", h.Confirm)
	g.POST("/contracts/:id/cancel", h.Cancel)
}

func sessionOr401(c echo.Context) (*screen.Session, error) {
	s, ok := screen.FromContext(c)
	if !ok {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return s, nil
}

// =========================
// Create - client opens an escrow with a provider
// =========================
func (h *Contracts) Create(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	if s.Role() != records.RoleClient {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only clients can create contracts"})
	}

	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if err := c.Bind(&req); err != nil || req.ProviderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider_id"})
	}

	ctx := c.Request().Context()
	p, err := h.providers.FindByID(ctx, req.ProviderID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		h.log.WithError(err).WithField("provider_id", req.ProviderID).Error("fetch provider failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch provider"})
	}
	if !p.IsActive {
		return c.JSON(http.StatusConflict, echo.Map{"error": "provider is not accepting contracts"})
	}

	res, err := h.escrow.Contract(ctx, s.Connector(), s.WalletAddress(), p)
	if err != nil {
		return escrowError(c, err)
	}
	s.ReturnToDashboard()

	msg := "escrow contract created"
	if !res.Persisted {
		msg = "escrow submitted; the contract record will appear shortly"
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg, "escrow": res, "view": s.View()})
}

func escrowError(c echo.Context, err error) error {
	var serr *escrow.SubmissionError
	switch {
	case errors.Is(err, escrow.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, wallet.ErrNotConnected):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &serr) && serr.Rejected():
		return c.JSON(http.StatusConflict, echo.Map{"error": "transaction rejected in wallet"})
	case errors.As(err, &serr):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": serr.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// =========================
// List - contracts for the session's role
// =========================
func (h *Contracts) List(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}

	var status records.Status
	if raw := c.QueryParam("status"); raw != "" {
		status = records.Status(raw)
		if !status.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": records.ErrInvalidStatus.Error()})
		}
	}

	ctx := c.Request().Context()
	addr := s.WalletAddress()
	var list []records.Contract
	switch s.Role() {
	case records.RoleClient:
		list, err = h.contracts.FindByClient(ctx, addr)
	case records.RoleProvider:
		list, err = h.contracts.FindByProvider(ctx, addr)
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "wallet is not registered"})
	}
	if err != nil {
		h.log.WithError(err).WithField("wallet", addr).Error("list contracts failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch contracts"})
	}

	if status != "" {
		kept := list[:0]
		for _, ct := range list {
			if ct.Status == status {
				kept = append(kept, ct)
			}
		}
		list = kept
	}
	if list == nil {
		list = []records.Contract{}
	}
	return c.JSON(http.StatusOK, echo.Map{"contracts": list, "count": len(list)})
}

// participantContract loads :id and checks that the session is a party to
// it. Non-participants get the same 404 as a missing contract.
// Contract ids embed a base64 BOC, so clients send them path-escaped.
func (h *Contracts) participantContract(c echo.Context, s *screen.Session) (*records.Contract, error) {
	id, err := url.PathUnescape(c.Param("id"))
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed contract id"})
	}
	if id == "" {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "missing contract id"})
	}
	ct, err := h.contracts.FindByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "contract not found"})
		}
		h.log.WithError(err).WithField("contract_id", id).Error("fetch contract failed")
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch contract"})
	}
	if !ct.HasParticipant(s.WalletAddress()) {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "contract not found"})
	}
	return ct, nil
}

// GET /contracts/:id
func (h *Contracts) Get(c echo.Context) error {
	s, err := sessionOr401(c)
	if s == nil {
		return err
	}
	ct, err := h.participantContract(c, s)
	if ct == nil {
		return err
	}
	return c.JSON(http.StatusOK, ct)
}
