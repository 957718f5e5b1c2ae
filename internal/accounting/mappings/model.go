package mappings

import (
	"errors"
	"time"
)

// ErrMappingNotFound indicates no explicit mapping exists for the role.
var ErrMappingNotFound = errors.New("mappings: account mapping not found")

// AccountMapping pins a semantic role to a ledger account for one business.
type AccountMapping struct {
	BusinessID int64
	Role       string
	AccountID  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
