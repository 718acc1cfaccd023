// Package rls activates the database security context that row-level
// security policies read. All settings use SET LOCAL so they live and
// die with the surrounding transaction; a pooled connection returned
// after commit or rollback carries no residue of the previous tenant.
package rls

import (
	"fmt"

	"gorm.io/gorm"
)

// Roles the database knows how to switch to. Role names are spliced
// into SQL (SET ROLE does not take bind parameters), so anything not in
// this set is rejected.
const (
	RoleMerchant = "merchant"
	RoleCustomer = "customer"
)

// SessionContext is the principal material installed for one transaction.
type SessionContext struct {
	OrgID      int64
	UserID     int64
	Role       string
	Livemode   bool
	ClaimsJSON string
}

var validRoles = map[string]struct{}{
	RoleMerchant: {},
	RoleCustomer: {},
}

// Activate clears any prior security context on the transaction and
// installs sc. It is a no-op on dialects without transaction-scoped
// configuration (sqlite in tests); policy enforcement there is covered
// by the query-level org scoping the repositories apply.
func Activate(tx *gorm.DB, sc SessionContext) error {
	if _, ok := validRoles[sc.Role]; !ok {
		return fmt.Errorf("rls: unknown role %q", sc.Role)
	}
	if tx.Dialector.Name() != "postgres" {
		return nil
	}

	if err := tx.Exec(`SELECT set_config('request.jwt.claims', '', true)`).Error; err != nil {
		return err
	}
	if err := tx.Exec(`SELECT set_config('request.jwt.claims', ?, true)`, sc.ClaimsJSON).Error; err != nil {
		return err
	}
	if err := tx.Exec(`SELECT set_config('app.current_org_id', ?, true)`, fmt.Sprintf("%d", sc.OrgID)).Error; err != nil {
		return err
	}
	if err := tx.Exec(`SELECT set_config('app.current_user_id', ?, true)`, fmt.Sprintf("%d", sc.UserID)).Error; err != nil {
		return err
	}
	livemode := "off"
	if sc.Livemode {
		livemode = "on"
	}
	if err := tx.Exec(`SELECT set_config('app.livemode', ?, true)`, livemode).Error; err != nil {
		return err
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL ROLE %s", sc.Role)).Error
}

// Deactivate resets the role and claims before commit.
func Deactivate(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec(`SELECT set_config('request.jwt.claims', '', true)`).Error; err != nil {
		return err
	}
	return tx.Exec("RESET ROLE").Error
}
