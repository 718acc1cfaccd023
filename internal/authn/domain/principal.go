package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Role is the database role the transaction switches to.
type Role string

const (
	RoleMerchant Role = "merchant"
	RoleCustomer Role = "customer"
)

// UserMetadata is the nested claims block some policies read. UserID
// always mirrors Claims.Sub.
type UserMetadata struct {
	UserID string `json:"user_id"`
}

// Claims is the bundle installed into the transaction's security
// context for row-level-security predicates.
type Claims struct {
	Sub          string       `json:"sub"`
	Email        string       `json:"email"`
	OrgID        string       `json:"org_id"`
	Role         Role         `json:"role"`
	Livemode     bool         `json:"livemode"`
	CustomerID   string       `json:"customer_id,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// JSON renders the claims for set_config.
func (c Claims) JSON() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Principal is the resolved identity+tenant+role bundle. It is created
// fresh per transaction attempt and never persisted.
type Principal struct {
	UserID   *snowflake.ID
	OrgID    snowflake.ID
	Livemode bool
	Role     Role
	Claims   Claims
}

// IsEmpty reports whether resolution yielded no organization. An empty
// principal is a legal resolver output (a webapp user with zero
// memberships) but must be rejected before any RLS-scoped work opens.
func (p Principal) IsEmpty() bool { return p.OrgID == 0 }

// Resolver turns an authentication source into a principal.
type Resolver interface {
	Resolve(ctx context.Context, source Source) (*Principal, error)
}

var (
	ErrTestOverrideOutsideTest = errors.New("test organization id used outside test environment")
	ErrUnsupportedSource       = errors.New("unsupported authentication source")
	ErrNoMemberships           = errors.New("organization has no memberships")
)
