package authtx

import (
	"context"

	"github.com/google/uuid"
	"github.com/smallbiznis/ledgerline/pkg/rls"
	"github.com/smallbiznis/ledgerline/pkg/tenantctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authndomain "github.com/smallbiznis/ledgerline/internal/authn/domain"
)

// UnitOfWork runs inside the authenticated transaction and declares its
// side effects through the returned Output.
type UnitOfWork[T any] func(ctx context.Context, scope Scope) (Output[T], error)

// RunComprehensive resolves the principal, opens one transaction with
// its security context installed, runs fn, applies the declared events
// and ledger commands, commits, and only then fires cache invalidation.
// Any error between open and commit rolls the whole transaction back;
// errors from fn propagate to the caller untouched.
func RunComprehensive[T any](ctx context.Context, r *Runner, source authndomain.Source, opts Options, fn UnitOfWork[T]) (T, error) {
	var zero T

	txID := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "authtx.run")
	defer span.End()
	span.SetAttributes(attribute.String("tx_id", txID))

	// Resolution failures abort before any transaction is opened.
	principal, err := r.resolver.Resolve(ctx, source)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	span.SetAttributes(
		attribute.String("org_id", principal.OrgID.String()),
		attribute.String("role", string(principal.Role)),
		attribute.Bool("livemode", principal.Livemode),
	)

	// Fail closed before any transaction is opened: an empty
	// organization must never scope to "all tenants".
	if principal.IsEmpty() {
		span.SetStatus(codes.Error, ErrEmptyOrganization.Error())
		return zero, ErrEmptyOrganization
	}
	if opts.RequireUser && principal.UserID == nil {
		span.SetStatus(codes.Error, ErrMissingUser.Error())
		return zero, ErrMissingUser
	}

	var (
		out      Output[T]
		inserted int
	)
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimsJSON, err := principal.Claims.JSON()
		if err != nil {
			return err
		}

		var userID int64
		if principal.UserID != nil {
			userID = int64(*principal.UserID)
		}
		if err := rls.Activate(tx, rls.SessionContext{
			OrgID:      int64(principal.OrgID),
			UserID:     userID,
			Role:       string(principal.Role),
			Livemode:   principal.Livemode,
			ClaimsJSON: claimsJSON,
		}); err != nil {
			return err
		}

		workCtx := tenantctx.WithTenant(ctx, int64(principal.OrgID), userID, principal.Livemode)
		out, err = fn(workCtx, Scope{
			Tx:       tx,
			UserID:   principal.UserID,
			OrgID:    principal.OrgID,
			Livemode: principal.Livemode,
		})
		if err != nil {
			return err
		}

		// Output shape is checked before any declared side effect runs.
		if err := out.validate(); err != nil {
			return err
		}

		freshEvents, err := r.events.WithTx(tx).BulkInsert(ctx, out.EventsToInsert)
		if err != nil {
			return err
		}
		inserted = len(freshEvents)

		for _, cmd := range out.commands() {
			if err := r.ledger.Process(ctx, tx, principal.OrgID, principal.Livemode, cmd); err != nil {
				return err
			}
		}

		return rls.Deactivate(tx)
	})
	if err != nil {
		r.metrics.RecordTransaction("rolled_back")
		span.SetStatus(codes.Error, err.Error())
		r.log.Debug("authenticated transaction rolled back",
			zap.String("tx_id", txID),
			zap.String("org_id", principal.OrgID.String()),
			zap.Error(err),
		)
		return zero, err
	}

	r.metrics.RecordTransaction("committed")
	r.metrics.RecordEventsInserted(inserted)
	for range out.commands() {
		r.metrics.RecordLedgerCommand()
	}

	// Cache keys are dropped only for work that durably committed. A
	// failed invalidation leaves the cache stale, which is recoverable;
	// it is logged and never surfaced to the caller.
	if len(out.CacheInvalidations) > 0 {
		if err := r.invalidator.Invalidate(ctx, out.CacheInvalidations); err != nil {
			r.metrics.RecordCacheInvalidation("failed")
			r.log.Warn("post-commit cache invalidation failed",
				zap.String("tx_id", txID),
				zap.String("org_id", principal.OrgID.String()),
				zap.Int("keys", len(out.CacheInvalidations)),
				zap.Error(err),
			)
		} else {
			r.metrics.RecordCacheInvalidation("ok")
		}
	}

	return out.Result, nil
}

// Run is the raw convention: fn returns its value directly and the
// runner wraps it into an Output with no side effects declared.
func Run[T any](ctx context.Context, r *Runner, source authndomain.Source, opts Options, fn func(ctx context.Context, scope Scope) (T, error)) (T, error) {
	return RunComprehensive(ctx, r, source, opts, func(ctx context.Context, scope Scope) (Output[T], error) {
		value, err := fn(ctx, scope)
		if err != nil {
			return Output[T]{}, err
		}
		return Output[T]{Result: value}, nil
	})
}

// RunProcedure threads a caller-supplied input through to fn, for RPC
// layers that bind request payloads outside this package.
func RunProcedure[I any, T any](ctx context.Context, r *Runner, source authndomain.Source, opts Options, input I, fn func(ctx context.Context, scope Scope, input I) (Output[T], error)) (T, error) {
	return RunComprehensive(ctx, r, source, opts, func(ctx context.Context, scope Scope) (Output[T], error) {
		return fn(ctx, scope, input)
	})
}
