package marketplace

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/user"
)

type ProviderFinder interface {
	FindAll(ctx context.Context) ([]records.Provider, error)
	FindByID(ctx context.Context, id string) (*records.Provider, error)
	FindByCategory(ctx context.Context, category string) ([]records.Provider, error)
}

// Providers serves the public provider directory.
type Providers struct {
	store ProviderFinder
	log   logrus.FieldLogger
}

func NewProviders(store ProviderFinder, log logrus.FieldLogger) *Providers {
	return &Providers{store: store, log: log}
}

// Register mounts the listing routes. /providers/:id belongs to the user
// handler and must be mounted after these.
func (h *Providers) Register(g *echo.Group) {
	g.GET("/providers", h.List)
	g.GET("/providers/search", h.Search)
	g.GET("/providers/category/:category", h.ByCategory)
}

func profiles(ps []records.Provider) []user.PublicProfile {
	out := make([]user.PublicProfile, 0, len(ps))
	for i := range ps {
		out = append(out, user.NewPublicProfile(&ps[i]))
	}
	return out
}

// GET /providers
func (h *Providers) List(c echo.Context) error {
	ps, err := h.store.FindAll(c.Request().Context())
	if err != nil {
		h.log.WithError(err).Error("list providers failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch providers"})
	}
	return c.JSON(http.StatusOK, echo.Map{"providers": profiles(ps), "count": len(ps)})
}

// GET /providers/search?q=&category=&location=&min_price=&max_price=&min_rating=&availability=
func (h *Providers) Search(c echo.Context) error {
	f, err := ParseFilters(c.QueryParams())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ps, err := h.store.FindAll(c.Request().Context())
	if err != nil {
		h.log.WithError(err).Error("search providers failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch providers"})
	}
	found := Filter(ps, f)
	return c.JSON(http.StatusOK, echo.Map{"providers": profiles(found), "count": len(found), "filters": f})
}

// GET /providers/category/:category
func (h *Providers) ByCategory(c echo.Context) error {
	category := c.Param("category")
	if category == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing category"})
	}
	ps, err := h.store.FindByCategory(c.Request().Context(), category)
	if err != nil {
		h.log.WithError(err).WithField("category", category).Error("list providers by category failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch providers"})
	}
	return c.JSON(http.StatusOK, echo.Map{"providers": profiles(ps), "count": len(ps)})
}
