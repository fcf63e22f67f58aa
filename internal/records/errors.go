package records

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrRoleTaken         = errors.New("wallet is already registered")
	ErrContractClosed    = errors.New("contract is already completed or cancelled")
	ErrInvalidStatus     = errors.New("invalid contract status")
	ErrInvalidTransition = errors.New("invalid contract status transition")
)

const uniqueViolation = "23505"

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == "wallet_identities_pkey" {
			return ErrRoleTaken
		}
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
