package repository

import (
	"context"

	"github.com/smallbiznis/ledgerline/internal/clock"
	"github.com/smallbiznis/ledgerline/internal/event/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db    *gorm.DB
	clock clock.Clock
}

func New(db *gorm.DB, clk clock.Clock) domain.Repository {
	return &repository{db: db, clock: clk}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx, clock: r.clock}
}

func (r *repository) BulkInsert(ctx context.Context, events []domain.Event) ([]domain.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	now := r.clock.Now()
	inserted := make([]domain.Event, 0, len(events))
	for _, evt := range events {
		evt.SubmittedAt = now
		// Inserted per row so RowsAffected tells duplicates apart from
		// fresh inserts.
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "hash"}},
				DoNothing: true,
			}).
			Create(&evt)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected > 0 {
			inserted = append(inserted, evt)
		}
	}
	return inserted, nil
}
