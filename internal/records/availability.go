package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// AvailabilityStore manages the weekday tags of providers.
type AvailabilityStore struct {
	db DBTX
}

func NewAvailabilityStore(db DBTX) *AvailabilityStore {
	return &AvailabilityStore{db: db}
}

func normalizeDay(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}

func insertDays(ctx context.Context, q execer, providerID string, days []string) error {
	for _, d := range days {
		d = normalizeDay(d)
		if d == "" {
			continue
		}
		_, err := q.Exec(ctx,
			`INSERT INTO provider_availability (provider_id, day_of_week) VALUES ($1, $2)
             ON CONFLICT (provider_id, day_of_week) DO NOTHING`,
			providerID, d,
		)
		if err != nil {
			return fmt.Errorf("insert availability %q: %w", d, mapError(err))
		}
	}
	return nil
}

func replaceDays(ctx context.Context, q execer, providerID string, days []string) error {
	if _, err := q.Exec(ctx, `DELETE FROM provider_availability WHERE provider_id = $1`, providerID); err != nil {
		return err
	}
	return insertDays(ctx, q, providerID, days)
}

func (s *AvailabilityStore) Add(ctx context.Context, providerID, day string) error {
	return insertDays(ctx, s.db, providerID, []string{day})
}

func (s *AvailabilityStore) ListByProvider(ctx context.Context, providerID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT day_of_week FROM provider_availability WHERE provider_id = $1 ORDER BY day_of_week`,
		providerID,
	)
	if err != nil {
		return nil, err
	}
	days, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return days, nil
}

// Replace swaps the provider's whole day set atomically.
func (s *AvailabilityStore) Replace(ctx context.Context, providerID string, days []string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := replaceDays(ctx, tx, providerID, days); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *AvailabilityStore) Remove(ctx context.Context, providerID, day string) (bool, error) {
	ct, err := s.db.Exec(ctx,
		`DELETE FROM provider_availability WHERE provider_id = $1 AND day_of_week = $2`,
		providerID, normalizeDay(day),
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
