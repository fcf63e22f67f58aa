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
)

// provider_status pauses or resumes a provider. Paused providers stay listed
// but cannot be contracted.
// Usage:
//
//	go run ./cmd/adminutil/provider_status --wallet EQ... --active=false
func main() {
	wallet := flag.String("wallet", "", "wallet address of the provider")
	active := flag.Bool("active", true, "whether the provider accepts new contracts")
	flag.Parse()

	if *wallet == "" || !flag.CommandLine.Changed("active") {
		fmt.Fprintln(os.Stderr, "usage: provider_status --wallet <address> --active=<true|false>")
		os.Exit(2)
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

	err = records.NewProviderStore(pool).SetActive(ctx, *wallet, *active)
	if errors.Is(err, records.ErrNotFound) {
		log.Fatalf("no provider registered for wallet %s", *wallet)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to update provider")
	}
	fmt.Printf("Provider %s active=%t.\n", *wallet, *active)
}
