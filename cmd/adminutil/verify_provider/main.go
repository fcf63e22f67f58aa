package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/db"
	"github.com/sudo-init-do/chatpay/internal/logging"
	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/ton"
)

// verify_provider marks a provider as vetted, or clears the mark.
// Usage:
//
//	go run ./cmd/adminutil/verify_provider --wallet EQ... [--revoke]
func main() {
	wallet := flag.String("wallet", "", "wallet address of the provider")
	revoke := flag.Bool("revoke", false, "clear the verified mark instead of setting it")
	flag.Parse()

	if *wallet == "" {
		fmt.Fprintln(os.Stderr, "usage: verify_provider --wallet <address> [--revoke]")
		os.Exit(2)
	}
	if !ton.ValidAddress(*wallet) {
		logrus.Fatalf("not a TON address: %s", *wallet)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logging.New(cfg.Log)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer pool.Close()

	err = records.NewProviderStore(pool).SetVerified(ctx, *wallet, !*revoke)
	if errors.Is(err, records.ErrNotFound) {
		log.Fatalf("no provider registered for wallet %s", *wallet)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to update provider")
	}

	if *revoke {
		fmt.Printf("Provider %s is no longer verified.\n", *wallet)
		return
	}
	fmt.Printf("Provider %s verified.\n", *wallet)
}
