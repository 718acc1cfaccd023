package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// FindByExternalUser resolves a customer scoped to orgID. A customer
	// that exists under a different organization reports ErrCustomerNotFound,
	// indistinguishable from true absence.
	FindByExternalUser(ctx context.Context, orgID snowflake.ID, externalUserID string) (*Customer, error)
}

var ErrCustomerNotFound = errors.New("customer not found")
