package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const contractColumns = `id, client_id, provider_id, provider_category, total_amount, amount_nano, status,
        confirmed_by_client, confirmed_by_provider, transaction_hash, created_at, updated_at`

type ContractStore struct {
	db DBTX
}

func NewContractStore(db DBTX) *ContractStore {
	return &ContractStore{db: db}
}

func scanContract(row pgx.Row) (*Contract, error) {
	var c Contract
	var status string
	err := row.Scan(
		&c.ID, &c.ClientID, &c.ProviderID, &c.ProviderCategory, &c.TotalAmount, &c.AmountNano, &status,
		&c.ConfirmedByClient, &c.ConfirmedByProvider, &c.TransactionHash, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	c.Status = Status(status)
	return &c, nil
}

func (s *ContractStore) list(ctx context.Context, where string, args ...any) ([]Contract, error) {
	rows, err := s.db.Query(ctx, `SELECT `+contractColumns+` FROM service_contracts `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a new contract in status created. Re-inserting the same
// escrow returns the stored row unchanged, so retries are safe. An id that
// is already held by a different escrow is ErrDuplicate.
func (s *ContractStore) Create(ctx context.Context, in NewContract) (*Contract, error) {
	c, err := scanContract(s.db.QueryRow(ctx, `
        INSERT INTO service_contracts
            (id, client_id, provider_id, provider_category, total_amount, amount_nano, status, transaction_hash)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET updated_at = service_contracts.updated_at
        WHERE service_contracts.client_id = EXCLUDED.client_id
          AND service_contracts.provider_id = EXCLUDED.provider_id
          AND service_contracts.transaction_hash = EXCLUDED.transaction_hash
        RETURNING `+contractColumns,
		in.ID, in.ClientID, in.ProviderID, in.ProviderCategory, in.TotalAmount, in.AmountNano,
		string(StatusCreated), in.TransactionHash,
	))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: contract %s belongs to another escrow", ErrDuplicate, in.ID)
	}
	return c, err
}

func (s *ContractStore) FindByID(ctx context.Context, id string) (*Contract, error) {
	return scanContract(s.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM service_contracts WHERE id = $1`, id))
}

func (s *ContractStore) FindByClient(ctx context.Context, clientID string) ([]Contract, error) {
	return s.list(ctx, "WHERE client_id = $1", clientID)
}

func (s *ContractStore) FindByProvider(ctx context.Context, providerID string) ([]Contract, error) {
	return s.list(ctx, "WHERE provider_id = $1", providerID)
}

func (s *ContractStore) FindByStatus(ctx context.Context, status Status) ([]Contract, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.list(ctx, "WHERE status = $1", string(status))
}

func (s *ContractStore) FindAll(ctx context.Context) ([]Contract, error) {
	return s.list(ctx, "")
}

// Update applies a partial update. Status changes are checked against the
// current row under a lock.
func (s *ContractStore) Update(ctx context.Context, id string, u ContractUpdate) (*Contract, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	cur, err := scanContract(tx.QueryRow(ctx, `SELECT `+contractColumns+` FROM service_contracts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	var b setBuilder
	if u.Status != nil {
		if err := CheckTransition(cur.Status, *u.Status, cur.ConfirmedByClient, cur.ConfirmedByProvider); err != nil {
			return nil, err
		}
		b.add("status", string(*u.Status))
	}
	if u.TransactionHash != nil {
		b.add("transaction_hash", *u.TransactionHash)
	}
	if u.TotalAmount != nil {
		b.add("total_amount", *u.TotalAmount)
		b.add("amount_nano", decimal.NewFromFloat(*u.TotalAmount).Shift(9).IntPart())
	}
	if b.empty() {
		return cur, nil
	}

	sql, args := b.statement("service_contracts", id)
	updated, err := scanContract(tx.QueryRow(ctx, sql+` RETURNING `+contractColumns, args...))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (s *ContractStore) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := s.db.Exec(ctx, `DELETE FROM service_contracts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Confirm records one party's confirmation and merges both flags into the
// status. The returned bool is true only on the call that completed the contract.
func (s *ContractStore) Confirm(ctx context.Context, id string, role Role) (*Contract, bool, error) {
	if !role.Valid() {
		return nil, false, fmt.Errorf("invalid role %q", role)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	cur, err := scanContract(tx.QueryRow(ctx, `SELECT `+contractColumns+` FROM service_contracts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, false, err
	}
	switch cur.Status {
	case StatusCancelled:
		return nil, false, ErrContractClosed
	case StatusCompleted:
		return cur, false, nil
	}

	client, provider := cur.ConfirmedByClient, cur.ConfirmedByProvider
	if role == RoleClient {
		client = true
	} else {
		provider = true
	}
	next := StatusAfterConfirm(cur.Status, client, provider)

	updated, err := scanContract(tx.QueryRow(ctx, `
        UPDATE service_contracts
        SET confirmed_by_client = $2, confirmed_by_provider = $3, status = $4, updated_at = NOW()
        WHERE id = $1
        RETURNING `+contractColumns,
		id, client, provider, string(next),
	))
	if err != nil {
		return nil, false, err
	}

	completed := next == StatusCompleted
	if completed {
		_, err = tx.Exec(ctx,
			`UPDATE service_providers SET completed_jobs = completed_jobs + 1, updated_at = NOW() WHERE id = $1`,
			cur.ProviderID,
		)
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return updated, completed, nil
}

// Cancel moves a non-terminal contract to cancelled.
func (s *ContractStore) Cancel(ctx context.Context, id string) (*Contract, error) {
	c, err := scanContract(s.db.QueryRow(ctx, `
        UPDATE service_contracts SET status = $2, updated_at = NOW()
        WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
        RETURNING `+contractColumns,
		id, string(StatusCancelled),
	))
	if errors.Is(err, ErrNotFound) {
		if _, ferr := s.FindByID(ctx, id); ferr != nil {
			return nil, ferr
		}
		return nil, ErrContractClosed
	}
	return c, err
}
