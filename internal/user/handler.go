package user

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/screen"
)

type ClientStore interface {
	Create(ctx context.Context, in records.NewClient) (*records.Client, error)
	FindByID(ctx context.Context, id string) (*records.Client, error)
	Update(ctx context.Context, id string, u records.ClientUpdate) (*records.Client, error)
}

type ProviderStore interface {
	Create(ctx context.Context, in records.NewProvider) (*records.Provider, error)
	FindByID(ctx context.Context, id string) (*records.Provider, error)
	Update(ctx context.Context, id string, u records.ProviderUpdate) (*records.Provider, error)
}

// WelcomeSender queues the welcome email for a new registration.
type WelcomeSender interface {
	EnqueueWelcome(ctx context.Context, role records.Role, wallet, name, email string) error
}

type Handler struct {
	clients   ClientStore
	providers ProviderStore
	welcome   WelcomeSender
	log       logrus.FieldLogger
}

func NewHandler(clients ClientStore, providers ProviderStore, welcome WelcomeSender, log logrus.FieldLogger) *Handler {
	return &Handler{clients: clients, providers: providers, welcome: welcome, log: log}
}

// Register mounts the session-bound routes, each wrapped with m.
// PublicProvider is mounted separately since it needs no session.
func (h *Handler) Register(g *echo.Group, m ...echo.MiddlewareFunc) {
	g.POST("/users/clients", h.RegisterClient, m...)
	g.POST("/users/providers", h.RegisterProvider, m...)
	g.GET("/users/me", h.Me, m...)
	g.PATCH("/users/me", h.UpdateProfile, m...)
}

// registrant returns the session and wallet a registration runs for, or
// writes the refusal.
func registrant(c echo.Context, role records.Role) (*screen.Session, string, error) {
	s, ok := screen.FromContext(c)
	if !ok {
		return nil, "", c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	addr := s.WalletAddress()
	if addr == "" {
		return nil, "", c.JSON(http.StatusForbidden, echo.Map{"error": "wallet not connected"})
	}
	if s.Role() != "" {
		return nil, "", c.JSON(http.StatusConflict, echo.Map{"error": records.ErrRoleTaken.Error()})
	}
	if s.SelectedUserType() != role {
		return nil, "", c.JSON(http.StatusConflict, echo.Map{"error": "select user type " + string(role) + " first"})
	}
	return s, addr, nil
}

func storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, records.ErrRoleTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, records.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "a profile with these details already exists"})
	case errors.Is(err, records.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// POST /users/clients
func (h *Handler) RegisterClient(c echo.Context) error {
	s, addr, err := registrant(c, records.RoleClient)
	if s == nil {
		return err
	}
	var form ClientForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
	}
	form.normalize()
	if err := c.Validate(&form); err != nil {
		return validationFailed(c, err)
	}

	ctx := c.Request().Context()
	cl, err := h.clients.Create(ctx, form.record(addr))
	if err != nil {
		h.log.WithError(err).WithField("wallet", addr).Error("client registration failed")
		return storeError(c, err)
	}
	if err := s.CompleteRegistration(cl); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	h.sendWelcome(ctx, records.RoleClient, addr, cl.Name, cl.Email)

	h.log.WithField("wallet", addr).Info("client registered")
	return c.JSON(http.StatusCreated, echo.Map{"user": cl, "view": s.View()})
}

// POST /users/providers
func (h *Handler) RegisterProvider(c echo.Context) error {
	s, addr, err := registrant(c, records.RoleProvider)
	if s == nil {
		return err
	}
	var form ProviderForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
	}
	form.normalize()
	if err := c.Validate(&form); err != nil {
		return validationFailed(c, err)
	}

	ctx := c.Request().Context()
	p, err := h.providers.Create(ctx, form.record(addr))
	if err != nil {
		h.log.WithError(err).WithField("wallet", addr).Error("provider registration failed")
		return storeError(c, err)
	}
	if err := s.CompleteRegistration(p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	h.sendWelcome(ctx, records.RoleProvider, addr, p.Name, p.Email)

	h.log.WithFields(logrus.Fields{"wallet": addr, "category": p.Category}).Info("provider registered")
	return c.JSON(http.StatusCreated, echo.Map{"user": p, "view": s.View()})
}

func (h *Handler) sendWelcome(ctx context.Context, role records.Role, addr, name, email string) {
	if h.welcome == nil {
		return
	}
	if err := h.welcome.EnqueueWelcome(context.WithoutCancel(ctx), role, addr, name, email); err != nil {
		h.log.WithError(err).WithField("wallet", addr).Warn("failed to queue welcome email")
	}
}
