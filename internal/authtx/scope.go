package authtx

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Scope is the capability bundle handed to a unit of work. Everything
// the work may touch travels through it explicitly; there are no
// module-level singletons to reach for.
type Scope struct {
	// Tx is the open transaction with the security context installed.
	// All reads and writes of the unit of work must go through it.
	Tx *gorm.DB

	// UserID is nil for principals without an acting user (customer
	// sessions, test overrides).
	UserID   *snowflake.ID
	OrgID    snowflake.ID
	Livemode bool
}
