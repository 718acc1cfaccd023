// Package domain contains the customer model used by portal principal
// resolution.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Customer is an org-scoped billing customer. ExternalUserID holds the
// hosted-billing identity a portal session or billing-portal API key
// presents; it is unique per organization, not globally.
type Customer struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID      `gorm:"column:org_id;not null;index;uniqueIndex:ux_customers_org_external,priority:1" json:"org_id"`
	ExternalUserID string            `gorm:"column:external_user_id;type:text;not null;uniqueIndex:ux_customers_org_external,priority:2" json:"external_user_id"`
	Name           string            `gorm:"type:text;not null" json:"name"`
	Email          string            `gorm:"type:text" json:"email"`
	Livemode       bool              `gorm:"not null" json:"livemode"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }
