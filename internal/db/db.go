package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/config"
)

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates or upgrades every table the service reads and writes.
// Each step is idempotent; the first failing step aborts the run.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger) error {
	steps := []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"service_providers", ensureProvidersTable},
		{"clients", ensureClientsTable},
		{"provider_availability", ensureAvailabilityTable},
		{"service_contracts", ensureContractsTable},
		{"service_contracts columns", ensureContractColumns},
		{"service_contracts status", ensureContractStatusConstraint},
		{"wallet_identities", ensureIdentitiesTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx, pool); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
		log.WithField("step", s.name).Debug("schema ensured")
	}
	log.Info("database schema ready")
	return nil
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, table string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_schema = 'public' AND table_name = $1
        )`, table).Scan(&exists)
	return exists, err
}

func ensureProvidersTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS service_providers (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT UNIQUE NOT NULL,
            phone TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL,
            wallet_address TEXT UNIQUE NOT NULL,
            hourly_rate DOUBLE PRECISION NOT NULL CHECK (hourly_rate > 0),
            city TEXT NOT NULL,
            state CHAR(2) NOT NULL,
            country TEXT NOT NULL,
            experience TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            rating DOUBLE PRECISION NOT NULL DEFAULT 0,
            completed_jobs INTEGER NOT NULL DEFAULT 0,
            verified BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_service_providers_category ON service_providers(category);
    `)
	return err
}

func ensureClientsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS clients (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT UNIQUE NOT NULL,
            phone TEXT NOT NULL,
            wallet_address TEXT UNIQUE NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
    `)
	return err
}

func ensureAvailabilityTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS provider_availability (
            provider_id TEXT NOT NULL REFERENCES service_providers(id) ON DELETE CASCADE,
            day_of_week TEXT NOT NULL,
            PRIMARY KEY (provider_id, day_of_week)
        );
    `)
	return err
}

// ensureContractsTable creates service_contracts, renaming the legacy
// contracted_services table in place when an older deployment still has it.
func ensureContractsTable(ctx context.Context, pool *pgxpool.Pool) error {
	exists, err := tableExists(ctx, pool, "service_contracts")
	if err != nil {
		return err
	}
	if !exists {
		legacy, err := tableExists(ctx, pool, "contracted_services")
		if err != nil {
			return err
		}
		if legacy {
			_, err = pool.Exec(ctx, `ALTER TABLE contracted_services RENAME TO service_contracts`)
			return err
		}
	}
	_, err = pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS service_contracts (
            id TEXT PRIMARY KEY,
            client_id TEXT NOT NULL,
            provider_id TEXT NOT NULL,
            provider_category TEXT NOT NULL DEFAULT '',
            total_amount DOUBLE PRECISION NOT NULL,
            amount_nano BIGINT NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'created',
            transaction_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_service_contracts_client ON service_contracts(client_id);
        CREATE INDEX IF NOT EXISTS idx_service_contracts_provider ON service_contracts(provider_id);
        CREATE INDEX IF NOT EXISTS idx_service_contracts_status ON service_contracts(status);
    `)
	return err
}

// ensureContractColumns adds the per-party confirmation flags and any
// column an older contracted_services table may lack.
func ensureContractColumns(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        ALTER TABLE service_contracts ADD COLUMN IF NOT EXISTS provider_category TEXT NOT NULL DEFAULT '';
        ALTER TABLE service_contracts ADD COLUMN IF NOT EXISTS amount_nano BIGINT NOT NULL DEFAULT 0;
        ALTER TABLE service_contracts ADD COLUMN IF NOT EXISTS confirmed_by_client BOOLEAN NOT NULL DEFAULT FALSE;
        ALTER TABLE service_contracts ADD COLUMN IF NOT EXISTS confirmed_by_provider BOOLEAN NOT NULL DEFAULT FALSE;
        ALTER TABLE service_contracts ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW();
    `)
	return err
}

func ensureContractStatusConstraint(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `ALTER TABLE service_contracts DROP CONSTRAINT IF EXISTS service_contracts_status_check`); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, `
        ALTER TABLE service_contracts
        ADD CONSTRAINT service_contracts_status_check
        CHECK (status IN (
            'created', 'deposited', 'client_confirmed', 'provider_confirmed', 'completed', 'cancelled'
        ))`)
	return err
}

// ensureIdentitiesTable creates the one-role-per-wallet table and backfills it
// from existing rows. Clients win when a legacy wallet appears in both tables.
func ensureIdentitiesTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wallet_identities (
            wallet_address TEXT PRIMARY KEY,
            role TEXT NOT NULL CHECK (role IN ('client', 'provider')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        INSERT INTO wallet_identities (wallet_address, role)
            SELECT wallet_address, 'client' FROM clients
            ON CONFLICT (wallet_address) DO NOTHING;
        INSERT INTO wallet_identities (wallet_address, role)
            SELECT wallet_address, 'provider' FROM service_providers
            ON CONFLICT (wallet_address) DO NOTHING;
    `)
	return err
}
