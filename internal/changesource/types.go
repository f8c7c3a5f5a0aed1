package changesource

import (
	"fmt"
	"strconv"
)

// ID is the stable integer handle of a change source.
type ID int64

// String returns the decimal form of the ID.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal change-source ID.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return ID(n), nil
}

// MasterID identifies one master process. Its format is opaque to the ledger.
type MasterID string

// Identity is a persisted change-source identity row.
type Identity struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Fingerprint string `json:"name_fingerprint"`
}

// View is the read-side projection of a change source and its current owner.
// Owner is empty when no master owns the source.
type View struct {
	ID    ID       `json:"id"`
	Name  string   `json:"name"`
	Owner MasterID `json:"owner,omitempty"`
}

// Active reports whether some master currently owns the change source.
func (v View) Active() bool {
	return v.Owner != ""
}

// ClaimResult is the outcome of a claim that reached the store.
type ClaimResult int

const (
	// Claimed means the caller is now the sole owner.
	Claimed ClaimResult = iota + 1

	// AlreadyClaimed means some master (possibly the caller) already owns
	// the change source. It is authoritative and must not be blindly retried.
	AlreadyClaimed
)

// String implements fmt.Stringer.
func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}

// Err converts the result into an error: nil for Claimed, ErrAlreadyClaimed
// for AlreadyClaimed. Any other value, including the zero value returned
// alongside store errors, is not a ledger decision and never matches
// ErrAlreadyClaimed.
func (r ClaimResult) Err() error {
	switch r {
	case Claimed:
		return nil
	case AlreadyClaimed:
		return ErrAlreadyClaimed
	default:
		return fmt.Errorf("unknown claim result %d", int(r))
	}
}
