package changesource

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation targets a change-source ID
	// that was never created.
	ErrNotFound = errors.New("change source not found")

	// ErrAlreadyClaimed is returned when the store rejected a claim because
	// some master already owns the change source.
	ErrAlreadyClaimed = errors.New("change source already claimed")

	// ErrStoreUnavailable wraps transport and connection failures from the
	// persistence layer.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidName is returned for names that normalize to the empty string.
	ErrInvalidName = errors.New("invalid change source name")
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeNotFound maps to ErrNotFound.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeAlreadyClaimed maps to ErrAlreadyClaimed.
	ErrCodeAlreadyClaimed ErrorCode = "ALREADY_CLAIMED"

	// ErrCodeStoreUnavailable maps to ErrStoreUnavailable.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// LedgerError carries the change source and master an error refers to.
type LedgerError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description of the failed operation.
	Message string

	// ChangeSourceID identifies the affected change source, if any.
	ChangeSourceID ID

	// MasterID identifies the master that issued the operation, if any.
	MasterID MasterID

	// Err is the underlying driver error, if any.
	Err error
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ChangeSourceID != 0 {
		msg += fmt.Sprintf(" (changesource=%d", e.ChangeSourceID)
		if e.MasterID != "" {
			msg += fmt.Sprintf(", master=%s", e.MasterID)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying driver error.
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the code.
func (e *LedgerError) Is(target error) bool {
	switch e.Code {
	case ErrCodeNotFound:
		return target == ErrNotFound
	case ErrCodeAlreadyClaimed:
		return target == ErrAlreadyClaimed
	case ErrCodeStoreUnavailable:
		return target == ErrStoreUnavailable
	}
	return false
}

// NewNotFoundError creates a LedgerError for a missing change source.
func NewNotFoundError(op string, id ID, master MasterID) *LedgerError {
	return &LedgerError{
		Code:           ErrCodeNotFound,
		Message:        op + ": no such change source",
		ChangeSourceID: id,
		MasterID:       master,
	}
}

// NewAlreadyClaimedError creates a LedgerError for a refused claim.
// owner is the master holding the claim, when known.
func NewAlreadyClaimedError(id ID, owner MasterID) *LedgerError {
	return &LedgerError{
		Code:           ErrCodeAlreadyClaimed,
		Message:        "claim: owned by another master",
		ChangeSourceID: id,
		MasterID:       owner,
	}
}

// NewStoreError creates a LedgerError wrapping a persistence failure.
func NewStoreError(op string, id ID, err error) *LedgerError {
	return &LedgerError{
		Code:           ErrCodeStoreUnavailable,
		Message:        op,
		ChangeSourceID: id,
		Err:            err,
	}
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyClaimed reports whether err is, or wraps, ErrAlreadyClaimed.
func IsAlreadyClaimed(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed)
}

// IsStoreUnavailable reports whether err is, or wraps, ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
