package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/chatpay/internal/config"
)

func TestEnsureSchemaIdempotent(t *testing.T) {
	dsn := os.Getenv("CHATPAY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CHATPAY_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 2})
	require.NoError(t, err)
	defer pool.Close()

	log, _ := test.NewNullLogger()
	require.NoError(t, EnsureSchema(ctx, pool, log))
	require.NoError(t, EnsureSchema(ctx, pool, log))

	for _, table := range []string{"service_providers", "clients", "provider_availability", "service_contracts", "wallet_identities"} {
		ok, err := tableExists(ctx, pool, table)
		require.NoError(t, err)
		require.True(t, ok, table)
	}
}
