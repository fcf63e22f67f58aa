package records

import "fmt"

// Status is the lifecycle state of a contract.
type Status string

const (
	StatusCreated           Status = "created"
	StatusDeposited         Status = "deposited"
	StatusClientConfirmed   Status = "client_confirmed"
	StatusProviderConfirmed Status = "provider_confirmed"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusDeposited, StatusClientConfirmed,
		StatusProviderConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// BothConfirmed is the only way a contract reaches completed.
func BothConfirmed(client, provider bool) bool {
	return client && provider
}

// StatusAfterConfirm derives the status from the confirmation flags. It does
// not depend on the order the flags were set in, and terminal states never move.
func StatusAfterConfirm(current Status, client, provider bool) Status {
	if current.Terminal() {
		return current
	}
	switch {
	case BothConfirmed(client, provider):
		return StatusCompleted
	case client:
		return StatusClientConfirmed
	case provider:
		return StatusProviderConfirmed
	default:
		return current
	}
}

// CheckTransition validates a direct status update. Confirmation states are
// reached through Confirm only.
func CheckTransition(from, to Status, client, provider bool) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return ErrContractClosed
	}
	switch to {
	case StatusCreated, StatusDeposited, StatusCancelled:
		return nil
	case StatusCompleted:
		if BothConfirmed(client, provider) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
