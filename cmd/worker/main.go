package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/db"
	"github.com/sudo-init-do/chatpay/internal/jobs"
	"github.com/sudo-init-do/chatpay/internal/logging"
	"github.com/sudo-init-do/chatpay/internal/records"
)

// worker drains the contract reconciliation and e-mail queues.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer pool.Close()

	queue := asynq.NewClient(jobs.RedisOpt(cfg.Redis))
	defer queue.Close()

	p := jobs.NewProcessor(
		records.NewContractStore(pool),
		records.NewClientStore(pool),
		records.NewProviderStore(pool),
		jobs.NewMailer(cfg.Mail, log),
		jobs.NewClient(queue, cfg.Mail, cfg.Escrow),
		log,
	)
	srv := jobs.NewServer(cfg.Redis, cfg.Worker, p, log)
	if err := srv.Start(p.Mux()); err != nil {
		log.WithError(err).Fatal("job worker failed to start")
	}
	log.WithField("redis", cfg.Redis.Address()).Info("job worker started")

	<-ctx.Done()
	log.Info("shutting down job worker")
	srv.Shutdown()
}
