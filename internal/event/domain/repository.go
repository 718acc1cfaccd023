package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// BulkInsert stores events, silently skipping any whose hash is
	// already present. It returns the events actually inserted.
	BulkInsert(ctx context.Context, events []Event) ([]Event, error)
}
