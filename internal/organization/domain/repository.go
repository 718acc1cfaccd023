package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	// MembershipsByUser returns the user's memberships ordered by
	// created_at ascending, so the first row is the earliest one.
	MembershipsByUser(ctx context.Context, userID snowflake.ID) ([]Membership, error)
	// EarliestMembership returns the earliest-created membership of the
	// organization, or ErrMembershipNotFound when it has none.
	EarliestMembership(ctx context.Context, orgID snowflake.ID) (*Membership, error)
	// MembershipOf returns the membership of userID within orgID, or
	// ErrMembershipNotFound.
	MembershipOf(ctx context.Context, orgID, userID snowflake.ID) (*Membership, error)
}

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMembershipNotFound   = errors.New("membership not found")
)
