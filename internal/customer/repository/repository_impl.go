package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerline/internal/customer/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) FindByExternalUser(ctx context.Context, orgID snowflake.ID, externalUserID string) (*domain.Customer, error) {
	externalUserID = strings.TrimSpace(externalUserID)
	if orgID == 0 || externalUserID == "" {
		return nil, domain.ErrCustomerNotFound
	}

	var customer domain.Customer
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND external_user_id = ?", orgID, externalUserID).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}
