package authtx

import (
	"context"
	"errors"

	apikeydomain "github.com/smallbiznis/ledgerline/internal/apikey/domain"
	authndomain "github.com/smallbiznis/ledgerline/internal/authn/domain"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	orgdomain "github.com/smallbiznis/ledgerline/internal/organization/domain"
	userdomain "github.com/smallbiznis/ledgerline/internal/user/domain"
	"github.com/smallbiznis/ledgerline/pkg/result"
)

// Classify maps sentinel errors onto result codes. Unknown errors stay
// internal so unexpected faults are never mistaken for expected ones.
func Classify(err error) result.Code {
	switch {
	case errors.Is(err, authndomain.ErrTestOverrideOutsideTest),
		errors.Is(err, authndomain.ErrUnsupportedSource),
		errors.Is(err, authndomain.ErrNoMemberships),
		errors.Is(err, apikeydomain.ErrInvalidKey),
		errors.Is(err, apikeydomain.ErrWrongType),
		errors.Is(err, ErrEmptyOrganization),
		errors.Is(err, ErrMissingUser):
		return result.CodeUnauthorized
	case errors.Is(err, ErrConflictingLedgerCommands),
		errors.Is(err, ledgerdomain.ErrInvalidEntryLines),
		errors.Is(err, ledgerdomain.ErrInvalidLineDirection),
		errors.Is(err, ledgerdomain.ErrInvalidLineAmount),
		errors.Is(err, ledgerdomain.ErrUnbalancedEntry):
		return result.CodeValidation
	case errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, orgdomain.ErrOrganizationNotFound),
		errors.Is(err, orgdomain.ErrMembershipNotFound),
		errors.Is(err, customerdomain.ErrCustomerNotFound):
		return result.CodeNotFound
	default:
		return result.CodeInternal
	}
}

// RunResult is the typed-result convention: expected failures come back
// as a tagged value instead of an error. result.Result.Unwrap restores
// the throwing convention at the outermost boundary.
func RunResult[T any](ctx context.Context, r *Runner, source authndomain.Source, opts Options, fn UnitOfWork[T]) result.Result[T] {
	value, err := RunComprehensive(ctx, r, source, opts, fn)
	return result.FromError(value, err, Classify)
}
