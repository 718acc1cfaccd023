// Package authtx runs business logic inside one authenticated,
// RLS-scoped database transaction and applies the side effects the
// logic declares: events and ledger commands before commit, cache
// invalidation after.
package authtx

import (
	"errors"

	"github.com/smallbiznis/ledgerline/internal/cache"
	eventdomain "github.com/smallbiznis/ledgerline/internal/event/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
)

// Output is the structured return contract of a unit of work. Side
// effects are declared, not executed; the runner applies them in a
// fixed order once the work succeeds.
type Output[T any] struct {
	Result T

	EventsToInsert []eventdomain.Event

	// LedgerCommand and LedgerCommands are mutually exclusive; setting
	// both fails validation before any side effect is applied.
	LedgerCommand  *ledgerdomain.Command
	LedgerCommands []ledgerdomain.Command

	CacheInvalidations []cache.Key
}

var ErrConflictingLedgerCommands = errors.New("transaction output sets both ledgerCommand and ledgerCommands")

func (o Output[T]) validate() error {
	if o.LedgerCommand != nil && len(o.LedgerCommands) > 0 {
		return ErrConflictingLedgerCommands
	}
	return nil
}

// commands flattens the singular and plural fields into apply order.
func (o Output[T]) commands() []ledgerdomain.Command {
	if o.LedgerCommand != nil {
		return []ledgerdomain.Command{*o.LedgerCommand}
	}
	return o.LedgerCommands
}
