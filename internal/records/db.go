package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// setBuilder accumulates "col = $n" fragments for partial updates.
type setBuilder struct {
	parts []string
	args  []any
}

func (b *setBuilder) add(col string, v any) {
	b.args = append(b.args, v)
	b.parts = append(b.parts, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (b *setBuilder) empty() bool { return len(b.parts) == 0 }

// statement renders "UPDATE table SET ..., updated_at = NOW() WHERE id = $n".
func (b *setBuilder) statement(table, id string) (string, []any) {
	args := append(append([]any{}, b.args...), id)
	sql := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d",
		table, strings.Join(b.parts, ", "), len(args))
	return sql, args
}

func claimRole(ctx context.Context, tx pgx.Tx, wallet string, role Role) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO wallet_identities (wallet_address, role) VALUES ($1, $2)`,
		wallet, string(role),
	)
	return mapError(err)
}

func releaseRole(ctx context.Context, tx pgx.Tx, wallet string, role Role) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM wallet_identities WHERE wallet_address = $1 AND role = $2`,
		wallet, string(role),
	)
	return err
}
