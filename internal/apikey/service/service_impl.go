package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/smallbiznis/ledgerline/internal/apikey/domain"
	"github.com/smallbiznis/ledgerline/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service verifies raw API key tokens against the api_keys table.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func New(db *gorm.DB, log *zap.Logger, clk clock.Clock) domain.Verifier {
	return &Service{
		db:    db,
		log:   log.Named("apikey.service"),
		clock: clk,
	}
}

func (s *Service) VerifySecret(ctx context.Context, token string) (*domain.SecretKeyMetadata, error) {
	key, err := s.lookup(ctx, token, domain.KeyTypeSecret)
	if err != nil {
		return nil, err
	}
	return &domain.SecretKeyMetadata{
		OwnerOrgID:    key.OrgID,
		SubjectUserID: key.SubjectUserID,
		Environment:   key.Environment,
	}, nil
}

func (s *Service) VerifyBillingPortal(ctx context.Context, token string) (*domain.PortalKeyMetadata, error) {
	key, err := s.lookup(ctx, token, domain.KeyTypeBillingPortal)
	if err != nil {
		return nil, err
	}
	if key.HostedBillingUserID == nil || strings.TrimSpace(*key.HostedBillingUserID) == "" {
		s.log.Warn("billing portal key without hosted billing user", zap.String("key_id", key.ID.String()))
		return nil, domain.ErrInvalidKey
	}
	return &domain.PortalKeyMetadata{
		OrgID:               key.OrgID,
		HostedBillingUserID: *key.HostedBillingUserID,
	}, nil
}

func (s *Service) lookup(ctx context.Context, token string, keyType domain.KeyType) (*domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInvalidKey
	}

	hash := domain.HashAPIKey(token)
	now := s.clock.Now()

	var key domain.APIKey
	err := s.db.WithContext(ctx).
		Where("key_hash = ? AND is_active = ?", hash, true).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidKey
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, domain.ErrInvalidKey
	}
	if key.ExpiresAt != nil && !key.ExpiresAt.After(now) {
		return nil, domain.ErrInvalidKey
	}
	if key.Type != keyType {
		return nil, domain.ErrWrongType
	}
	return &key, nil
}
