package recall

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Now returns the current time in UTC. All timestamps in the data model
// are stored and compared in UTC.
func Now() time.Time {
	return time.Now().UTC()
}
