package escrow

import (
	"errors"
	"fmt"

	"github.com/sudo-init-do/chatpay/internal/wallet"
)

// ErrValidation is the parent of every precondition failure except a
// missing wallet connection.
var ErrValidation = errors.New("escrow request invalid")

var (
	ErrNotConnected           = fmt.Errorf("%w: connect a wallet before creating a contract", wallet.ErrNotConnected)
	ErrProviderAddressMissing = fmt.Errorf("%w: provider has no wallet address", ErrValidation)
	ErrInvalidProviderAddress = fmt.Errorf("%w: provider wallet address is not a valid TON address", ErrValidation)
	ErrSelfContracting        = fmt.Errorf("%w: cannot create a contract with yourself", ErrValidation)
	ErrInvalidAmount          = fmt.Errorf("%w: hourly rate must be greater than zero", ErrValidation)
	ErrInvalidClientAddress   = fmt.Errorf("%w: connected wallet address is not a valid TON address", ErrValidation)
)

// SubmissionError is a failed or rejected wallet transaction. Nothing was
// sent on-chain; the caller may simply try again.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "escrow submission failed: " + e.Err.Error() }
func (e *SubmissionError) Unwrap() error { return e.Err }

// Rejected reports whether the user declined the transaction in the wallet.
func (e *SubmissionError) Rejected() bool { return errors.Is(e.Err, wallet.ErrRejected) }

// PersistenceError is a local write that failed after the transaction went
// out. The contract exists on-chain and is reconciled in the background.
type PersistenceError struct {
	ContractID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist contract %s: %v", e.ContractID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
