// Package domain contains API key persistence and verification types.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// KeyType distinguishes merchant secret keys from hosted billing-portal
// keys.
type KeyType string

const (
	KeyTypeSecret        KeyType = "secret"
	KeyTypeBillingPortal KeyType = "billing_portal"
)

// Environment of the key. Secret keys issued for the test environment
// resolve to livemode=false principals.
type Environment string

const (
	EnvironmentLive Environment = "live"
	EnvironmentTest Environment = "test"
)

// APIKey stores hashed API credentials scoped to an organization.
type APIKey struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	OrgID    snowflake.ID `gorm:"column:org_id;not null;index"`
	Type     KeyType      `gorm:"column:key_type;type:text;not null"`
	Name     string       `gorm:"type:text;not null"`
	KeyHash  string       `gorm:"column:key_hash;type:text;not null;uniqueIndex"`
	IsActive bool         `gorm:"column:is_active;not null"`

	Environment Environment `gorm:"column:environment;type:text;not null;default:'live'"`

	// SubjectUserID is the acting user a secret key was issued for,
	// either an internal id string or an external identity.
	SubjectUserID string `gorm:"column:subject_user_id;type:text"`

	// HostedBillingUserID is set on billing-portal keys only.
	HostedBillingUserID *string `gorm:"column:hosted_billing_user_id;type:text"`

	Scopes     pq.StringArray `gorm:"type:text[]"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastUsedAt *time.Time     `gorm:"column:last_used_at"`
	ExpiresAt  *time.Time     `gorm:"column:expires_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// SecretKeyMetadata is the verification result for a merchant secret key.
type SecretKeyMetadata struct {
	OwnerOrgID    snowflake.ID
	SubjectUserID string
	Environment   Environment
}

// PortalKeyMetadata is the verification result for a billing-portal key.
type PortalKeyMetadata struct {
	OrgID               snowflake.ID
	HostedBillingUserID string
}

// Verifier turns a raw API key token into key metadata. Issuance and
// rotation live in a separate service; this layer only consumes
// verification.
type Verifier interface {
	VerifySecret(ctx context.Context, token string) (*SecretKeyMetadata, error)
	VerifyBillingPortal(ctx context.Context, token string) (*PortalKeyMetadata, error)
}

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrWrongType  = errors.New("api key type mismatch")
)
