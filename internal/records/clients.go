package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const clientColumns = `id, name, email, phone, wallet_address, created_at, updated_at`

type ClientStore struct {
	db DBTX
}

func NewClientStore(db DBTX) *ClientStore {
	return &ClientStore{db: db}
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.WalletAddress, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// Create registers a client under its wallet address. The wallet must not
// hold any role yet.
func (s *ClientStore) Create(ctx context.Context, in NewClient) (*Client, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := claimRole(ctx, tx, in.WalletAddress, RoleClient); err != nil {
		return nil, err
	}
	c, err := scanClient(tx.QueryRow(ctx, `
        INSERT INTO clients (id, name, email, phone, wallet_address)
        VALUES ($1, $2, $3, $4, $1)
        RETURNING `+clientColumns,
		in.WalletAddress, in.Name, in.Email, in.Phone,
	))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

func (s *ClientStore) FindByID(ctx context.Context, id string) (*Client, error) {
	return scanClient(s.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

func (s *ClientStore) FindByWalletAddress(ctx context.Context, addr string) (*Client, error) {
	return scanClient(s.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE wallet_address = $1`, addr))
}

func (s *ClientStore) FindAll(ctx context.Context) ([]Client, error) {
	rows, err := s.db.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *ClientStore) Update(ctx context.Context, id string, u ClientUpdate) (*Client, error) {
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
	if b.empty() {
		return s.FindByID(ctx, id)
	}
	sql, args := b.statement("clients", id)
	return scanClient(s.db.QueryRow(ctx, sql+` RETURNING `+clientColumns, args...))
}

// Delete removes the client and frees its wallet for another registration.
func (s *ClientStore) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var wallet string
	err = tx.QueryRow(ctx, `DELETE FROM clients WHERE id = $1 RETURNING wallet_address`, id).Scan(&wallet)
	if err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := releaseRole(ctx, tx, wallet, RoleClient); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
