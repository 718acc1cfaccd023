package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByExternalID(ctx context.Context, externalID string) (*User, error)
	// Resolve accepts either an internal id string or an external
	// identity and returns the matching user.
	Resolve(ctx context.Context, subject string) (*User, error)
}

var ErrUserNotFound = errors.New("user not found")
