package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Command is a declarative instruction to post one balanced ledger
// entry. Business logic declares commands through the transaction
// output; the processor applies them inside the caller's transaction.
type Command struct {
	SourceType LedgerSourceType
	SourceID   snowflake.ID
	Currency   string
	OccurredAt time.Time
	Lines      []CommandLine
}

// CommandLine posts an amount against a chart-of-accounts code.
type CommandLine struct {
	AccountCode LedgerAccountCode
	Direction   LedgerEntryDirection
	Amount      int64
}

// Processor applies a command within the supplied transaction. A
// command whose (org, source type, source id) entry already exists is
// skipped without error.
type Processor interface {
	Process(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, livemode bool, cmd Command) error
}

var (
	ErrInvalidOrganization  = errors.New("invalid ledger organization")
	ErrInvalidSourceType    = errors.New("invalid ledger source type")
	ErrInvalidSourceID      = errors.New("invalid ledger source id")
	ErrInvalidCurrency      = errors.New("invalid ledger currency")
	ErrInvalidOccurredAt    = errors.New("invalid ledger occurred_at")
	ErrInvalidEntryLines    = errors.New("ledger entry requires at least two lines")
	ErrInvalidAccount       = errors.New("invalid ledger account")
	ErrInvalidLineDirection = errors.New("invalid ledger line direction")
	ErrInvalidLineAmount    = errors.New("invalid ledger line amount")
	ErrUnbalancedEntry      = errors.New("ledger entry debits and credits do not balance")
)

// ValidateBalanced checks that debits equal credits.
func ValidateBalanced(lines []CommandLine) error {
	var debits, credits int64
	for _, line := range lines {
		switch line.Direction {
		case LedgerEntryDirectionDebit:
			debits += line.Amount
		case LedgerEntryDirectionCredit:
			credits += line.Amount
		default:
			return ErrInvalidLineDirection
		}
	}
	if debits != credits {
		return ErrUnbalancedEntry
	}
	return nil
}
