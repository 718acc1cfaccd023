// Package migration brings the database schema up to date at startup.
package migration

import (
	apikeydomain "github.com/smallbiznis/ledgerline/internal/apikey/domain"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	eventdomain "github.com/smallbiznis/ledgerline/internal/event/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	orgdomain "github.com/smallbiznis/ledgerline/internal/organization/domain"
	pricingdomain "github.com/smallbiznis/ledgerline/internal/pricingmodel/domain"
	userdomain "github.com/smallbiznis/ledgerline/internal/user/domain"
	"gorm.io/gorm"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&orgdomain.Organization{},
		&userdomain.User{},
		&orgdomain.Membership{},
		&customerdomain.Customer{},
		&apikeydomain.APIKey{},
		&eventdomain.Event{},
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
		&pricingdomain.PricingModel{},
		&pricingdomain.Feature{},
		&pricingdomain.Product{},
		&pricingdomain.UsageMeter{},
		&pricingdomain.Price{},
		&pricingdomain.Resource{},
		&pricingdomain.ProductFeature{},
	}
}

// Run applies gorm auto-migration for all models.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
