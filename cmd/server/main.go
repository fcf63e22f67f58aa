package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/chatpay/internal/auth"
	"github.com/sudo-init-do/chatpay/internal/catalog"
	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/db"
	"github.com/sudo-init-do/chatpay/internal/escrow"
	"github.com/sudo-init-do/chatpay/internal/identity"
	"github.com/sudo-init-do/chatpay/internal/jobs"
	"github.com/sudo-init-do/chatpay/internal/logging"
	"github.com/sudo-init-do/chatpay/internal/marketplace"
	"github.com/sudo-init-do/chatpay/internal/metrics"
	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/screen"
	"github.com/sudo-init-do/chatpay/internal/user"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logging.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.Database.EnsureSchema {
		if err := db.EnsureSchema(ctx, pool, log); err != nil {
			return err
		}
	}

	m := metrics.New()
	clients := records.NewClientStore(pool)
	providers := records.NewProviderStore(pool)
	contracts := records.NewContractStore(pool)

	queue := asynq.NewClient(jobs.RedisOpt(cfg.Redis))
	defer queue.Close()
	tasks := jobs.NewClient(queue, cfg.Mail, cfg.Escrow)

	esc, err := escrow.NewService(cfg.Escrow, contracts, tasks, log, m)
	if err != nil {
		return err
	}

	relay := wallet.NewRelay(log, m)
	sessions := screen.NewManager(identity.NewResolver(clients, providers, log, m), relay, log, m, cfg.Session)
	tokens := auth.NewTokens(cfg.Session.Secret, cfg.Session.TTL)

	e := newServer(cfg.HTTP, log, handlers{
		ready:     pool,
		metrics:   m,
		catalog:   catalog.Default(),
		relay:     relay,
		sessions:  sessions,
		tokens:    tokens,
		auth:      auth.NewHandler(sessions, tokens, cfg.Session.CookieName, log),
		screen:    screen.NewHandler(),
		users:     user.NewHandler(clients, providers, tasks, log),
		providers: marketplace.NewProviders(providers, log),
		contracts: marketplace.NewContracts(contracts, providers, esc, log),
		cookie:    cfg.Session.CookieName,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("port", cfg.HTTP.Port).Info("http server listening")
		if err := e.Start(":" + cfg.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return e.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})

	if cfg.Worker.Inline {
		p := jobs.NewProcessor(contracts, clients, providers, jobs.NewMailer(cfg.Mail, log), tasks, log)
		srv := jobs.NewServer(cfg.Redis, cfg.Worker, p, log)
		g.Go(func() error {
			if err := srv.Start(p.Mux()); err != nil {
				return err
			}
			log.Info("inline job worker started")
			<-gctx.Done()
			srv.Shutdown()
			return nil
		})
	}

	return g.Wait()
}
