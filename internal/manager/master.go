package manager

import (
	"github.com/google/uuid"

	"github.com/roach88/csledger/internal/changesource"
)

// NewMasterID returns a fresh time-sortable master identity (UUIDv7).
//
// Panics if UUID generation fails (should never happen in practice).
func NewMasterID() changesource.MasterID {
	return changesource.MasterID(uuid.Must(uuid.NewV7()).String())
}
