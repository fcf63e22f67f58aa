package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/chatpay/internal/auth"
	"github.com/sudo-init-do/chatpay/internal/catalog"
	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/logging"
	"github.com/sudo-init-do/chatpay/internal/marketplace"
	"github.com/sudo-init-do/chatpay/internal/metrics"
	mware "github.com/sudo-init-do/chatpay/internal/middleware"
	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/screen"
	"github.com/sudo-init-do/chatpay/internal/user"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	ready     pinger
	metrics   *metrics.Registry
	catalog   *catalog.Catalog
	relay     *wallet.Relay
	sessions  *screen.Manager
	tokens    *auth.Tokens
	auth      *auth.Handler
	screen    *screen.Handler
	users     *user.Handler
	providers *marketplace.Providers
	contracts *marketplace.Contracts
	cookie    string
}

func newServer(cfg config.HTTPConfig, log logrus.FieldLogger, h handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = user.NewValidator(h.catalog)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logging.RequestLogger(log))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.ready.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	e.GET("/catalog", h.catalog.Handler)

	api := e.Group("/api")

	// Session creation is the only unauthenticated write, so it carries a
	// per-IP limit.
	limit := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.AuthRateLimit)))
	api.POST("/session", h.auth.StartSession, limit)

	h.providers.Register(api)
	api.GET("/providers/:id", h.users.PublicProvider)

	authed := mware.SessionJWT(h.tokens, h.sessions, h.cookie)
	sess := api.Group("", authed)

	sess.GET("/session", h.auth.GetSession)
	sess.DELETE("/session", h.auth.EndSession)
	h.screen.Register(sess.Group("/session"))

	sess.GET("/wallet/ws", h.relay.Serve)
	sess.POST("/wallet/events", h.relay.Events)

	h.users.Register(sess, mware.RequireWallet)
	h.contracts.Register(sess, mware.RequireWallet, mware.RequireRoles(string(records.RoleClient)))

	if cfg.WebDir != "" {
		e.Use(mware.PathGate(h.cookie))
		e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
			Root:  cfg.WebDir,
			HTML5: true,
		}))
	}
	return e
}
