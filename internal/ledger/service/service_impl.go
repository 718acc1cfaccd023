package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func New(log *zap.Logger, genID *snowflake.Node) ledgerdomain.Processor {
	return &Service{
		log:   log.Named("ledger.service"),
		genID: genID,
	}
}

// Process validates and posts one command inside tx. It never opens its
// own transaction: atomicity with the caller's data writes is the whole
// point of the contract.
func (s *Service) Process(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, livemode bool, cmd ledgerdomain.Command) error {
	if orgID == 0 {
		return ledgerdomain.ErrInvalidOrganization
	}

	sourceType := ledgerdomain.LedgerSourceType(strings.TrimSpace(string(cmd.SourceType)))
	if sourceType == "" {
		return ledgerdomain.ErrInvalidSourceType
	}
	if cmd.SourceID == 0 {
		return ledgerdomain.ErrInvalidSourceID
	}

	currency := strings.TrimSpace(cmd.Currency)
	if currency == "" {
		return ledgerdomain.ErrInvalidCurrency
	}
	if cmd.OccurredAt.IsZero() {
		return ledgerdomain.ErrInvalidOccurredAt
	}
	if len(cmd.Lines) < 2 {
		return ledgerdomain.ErrInvalidEntryLines
	}

	normalized := make([]ledgerdomain.CommandLine, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		if strings.TrimSpace(string(line.AccountCode)) == "" {
			return ledgerdomain.ErrInvalidAccount
		}
		direction, err := normalizeDirection(line.Direction)
		if err != nil {
			return err
		}
		if line.Amount < 0 {
			return ledgerdomain.ErrInvalidLineAmount
		}
		normalized = append(normalized, ledgerdomain.CommandLine{
			AccountCode: line.AccountCode,
			Direction:   direction,
			Amount:      line.Amount,
		})
	}

	if err := ledgerdomain.ValidateBalanced(normalized); err != nil {
		return err
	}

	entry := ledgerdomain.LedgerEntry{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		SourceType: sourceType,
		SourceID:   cmd.SourceID,
		Currency:   currency,
		Livemode:   livemode,
		OccurredAt: cmd.OccurredAt.UTC(),
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).
		Create(&entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("ledger entry already posted",
			zap.String("source_type", string(sourceType)),
			zap.String("source_id", cmd.SourceID.String()),
		)
		return nil
	}

	for _, line := range normalized {
		account, err := s.ensureAccount(ctx, tx, orgID, line.AccountCode)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(&ledgerdomain.LedgerEntryLine{
			ID:            s.genID.Generate(),
			LedgerEntryID: entry.ID,
			AccountID:     account.ID,
			Direction:     line.Direction,
			Amount:        line.Amount,
		}).Error; err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, code ledgerdomain.LedgerAccountCode) (*ledgerdomain.LedgerAccount, error) {
	var account ledgerdomain.LedgerAccount
	err := tx.WithContext(ctx).
		Where(ledgerdomain.LedgerAccount{OrgID: orgID, Code: code}).
		Attrs(ledgerdomain.LedgerAccount{
			ID:   s.genID.Generate(),
			Name: string(code),
		}).
		FirstOrCreate(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func normalizeDirection(direction ledgerdomain.LedgerEntryDirection) (ledgerdomain.LedgerEntryDirection, error) {
	normalized := strings.ToLower(strings.TrimSpace(string(direction)))
	switch normalized {
	case string(ledgerdomain.LedgerEntryDirectionDebit):
		return ledgerdomain.LedgerEntryDirectionDebit, nil
	case string(ledgerdomain.LedgerEntryDirectionCredit):
		return ledgerdomain.LedgerEntryDirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}
