// Package domain contains the user account model shared by the
// principal resolver.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User represents a system user account. ExternalID carries the
// identity-provider subject for users created through SSO; API keys and
// web sessions reference users by either field.
type User struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	ExternalID  string       `gorm:"column:external_id;type:text;not null;uniqueIndex"`
	Email       string       `gorm:"column:email;type:text;not null;uniqueIndex"`
	DisplayName string       `gorm:"column:display_name;type:text"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
