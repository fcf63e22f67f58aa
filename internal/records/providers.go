package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

const providerColumns = `p.id, p.name, p.email, p.phone, p.description, p.category, p.wallet_address,
        p.hourly_rate, p.city, p.state, p.country, p.experience, p.is_active, p.rating,
        p.completed_jobs, p.verified, p.created_at, p.updated_at`

// providerSelect joins availability back as a comma-joined day list.
const providerSelect = `
        SELECT ` + providerColumns + `,
            COALESCE(STRING_AGG(a.day_of_week, ',' ORDER BY a.day_of_week), '') AS days_of_week
        FROM service_providers p
        LEFT JOIN provider_availability a ON a.provider_id = p.id`

const providerGroup = ` GROUP BY p.id`

type ProviderStore struct {
	db DBTX
}

func NewProviderStore(db DBTX) *ProviderStore {
	return &ProviderStore{db: db}
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.Description, &p.Category, &p.WalletAddress,
		&p.HourlyRate, &p.City, &p.State, &p.Country, &p.Experience, &p.IsActive, &p.Rating,
		&p.CompletedJobs, &p.Verified, &p.CreatedAt, &p.UpdatedAt, &p.DaysOfWeek,
	)
	if err != nil {
		return nil, mapError(err)
	}
	p.Availability = SplitDays(p.DaysOfWeek)
	return &p, nil
}

// SplitDays turns a comma-joined day list into its parts, dropping blanks.
func SplitDays(joined string) []string {
	days := []string{}
	for _, d := range strings.Split(joined, ",") {
		if d = strings.TrimSpace(d); d != "" {
			days = append(days, d)
		}
	}
	return days
}

func (s *ProviderStore) list(ctx context.Context, q DBTX, where string, args ...any) ([]Provider, error) {
	rows, err := q.Query(ctx, providerSelect+" "+where+providerGroup+" ORDER BY p.created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *ProviderStore) one(ctx context.Context, q DBTX, where string, args ...any) (*Provider, error) {
	return scanProvider(q.QueryRow(ctx, providerSelect+" "+where+providerGroup, args...))
}

// Create inserts the provider row and one availability row per day in a
// single transaction. The wallet must not hold any role yet.
func (s *ProviderStore) Create(ctx context.Context, in NewProvider) (*Provider, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := claimRole(ctx, tx, in.WalletAddress, RoleProvider); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO service_providers
            (id, name, email, phone, description, category, wallet_address,
             hourly_rate, city, state, country, experience)
        VALUES ($1, $2, $3, $4, $5, $6, $1, $7, $8, $9, $10, $11)`,
		in.WalletAddress, in.Name, in.Email, in.Phone, in.Description, in.Category,
		in.HourlyRate, in.City, strings.ToUpper(in.State), in.Country, in.Experience,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if err := insertDays(ctx, tx, in.WalletAddress, in.Availability); err != nil {
		return nil, err
	}

	p, err := s.one(ctx, tx, "WHERE p.id = $1", in.WalletAddress)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (s *ProviderStore) FindByID(ctx context.Context, id string) (*Provider, error) {
	return s.one(ctx, s.db, "WHERE p.id = $1", id)
}

func (s *ProviderStore) FindByWalletAddress(ctx context.Context, addr string) (*Provider, error) {
	return s.one(ctx, s.db, "WHERE p.wallet_address = $1", addr)
}

// FindAll lists active providers, newest first.
func (s *ProviderStore) FindAll(ctx context.Context) ([]Provider, error) {
	return s.list(ctx, s.db, "WHERE p.is_active = TRUE")
}

func (s *ProviderStore) FindByCategory(ctx context.Context, category string) ([]Provider, error) {
	return s.list(ctx, s.db, "WHERE p.is_active = TRUE AND p.category = $1", category)
}

func providerSet(u ProviderUpdate) *setBuilder {
	var b setBuilder
	if u.Name != nil {
		b.add("name", *u.Name)
	}
	if u.Email != nil {
		b.add("email", *u.Email)
	}
	if u.Phone != nil {
		b.add("phone", *u.Phone)
	}
	if u.Description != nil {
		b.add("description", *u.Description)
	}
	if u.Category != nil {
		b.add("category", *u.Category)
	}
	if u.HourlyRate != nil {
		b.add("hourly_rate", *u.HourlyRate)
	}
	if u.City != nil {
		b.add("city", *u.City)
	}
	if u.State != nil {
		b.add("state", strings.ToUpper(*u.State))
	}
	if u.Country != nil {
		b.add("country", *u.Country)
	}
	if u.Experience != nil {
		b.add("experience", *u.Experience)
	}
	if u.IsActive != nil {
		b.add("is_active", *u.IsActive)
	}
	return &b
}

// Update applies a partial update. When Availability is non-nil the stored
// days are replaced in the same transaction.
func (s *ProviderStore) Update(ctx context.Context, id string, u ProviderUpdate) (*Provider, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	b := providerSet(u)
	if b.empty() {
		_, err = tx.Exec(ctx, `UPDATE service_providers SET updated_at = NOW() WHERE id = $1`, id)
	} else {
		sql, args := b.statement("service_providers", id)
		_, err = tx.Exec(ctx, sql, args...)
	}
	if err != nil {
		return nil, mapError(err)
	}

	if u.Availability != nil {
		if err := replaceDays(ctx, tx, id, u.Availability); err != nil {
			return nil, err
		}
	}

	p, err := s.one(ctx, tx, "WHERE p.id = $1", id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// Delete removes the provider, its availability and its wallet role.
func (s *ProviderStore) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var wallet string
	err = tx.QueryRow(ctx, `DELETE FROM service_providers WHERE id = $1 RETURNING wallet_address`, id).Scan(&wallet)
	if err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := releaseRole(ctx, tx, wallet, RoleProvider); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// SetActive toggles whether the provider accepts new contracts.
func (s *ProviderStore) SetActive(ctx context.Context, wallet string, active bool) error {
	return s.setFlag(ctx, "is_active", wallet, active)
}

// SetVerified marks the provider as vetted.
func (s *ProviderStore) SetVerified(ctx context.Context, wallet string, verified bool) error {
	return s.setFlag(ctx, "verified", wallet, verified)
}

func (s *ProviderStore) setFlag(ctx context.Context, col, wallet string, v bool) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE service_providers SET `+col+` = $1, updated_at = NOW() WHERE wallet_address = $2`,
		v, wallet,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
