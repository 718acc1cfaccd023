package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/ledgerline/internal/apikey/domain"
	"github.com/smallbiznis/ledgerline/internal/authn/domain"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	orgdomain "github.com/smallbiznis/ledgerline/internal/organization/domain"
	userdomain "github.com/smallbiznis/ledgerline/internal/user/domain"
	"go.uber.org/zap"
)

// Resolver resolves authentication sources into database principals.
// isTestEnv is injected from configuration so tests can flip it without
// touching process-wide state; it is a func so the flag is evaluated at
// every call rather than cached at construction.
type Resolver struct {
	log       *zap.Logger
	verifier  apikeydomain.Verifier
	users     userdomain.Repository
	orgs      orgdomain.Repository
	customers customerdomain.Repository
	isTestEnv func() bool
}

func New(
	log *zap.Logger,
	verifier apikeydomain.Verifier,
	users userdomain.Repository,
	orgs orgdomain.Repository,
	customers customerdomain.Repository,
	isTestEnv func() bool,
) domain.Resolver {
	return &Resolver{
		log:       log.Named("authn.resolver"),
		verifier:  verifier,
		users:     users,
		orgs:      orgs,
		customers: customers,
		isTestEnv: isTestEnv,
	}
}

func (r *Resolver) Resolve(ctx context.Context, source domain.Source) (*domain.Principal, error) {
	// The override gate runs ahead of all credential verification so a
	// caller cannot smuggle an override past it alongside a valid key.
	if override, ok := source.(domain.TestOverride); ok {
		if !r.isTestEnv() {
			return nil, domain.ErrTestOverrideOutsideTest
		}
		return r.resolveTestOverride(override)
	}

	switch src := source.(type) {
	case domain.APIKeySecret:
		return r.resolveSecretKey(ctx, src)
	case domain.BillingPortalKey:
		return r.resolveBillingPortalKey(ctx, src)
	case domain.WebSession:
		return r.resolveWebSession(ctx, src)
	case domain.CustomerSession:
		return r.resolveCustomerSession(ctx, src)
	default:
		return nil, domain.ErrUnsupportedSource
	}
}

func (r *Resolver) resolveSecretKey(ctx context.Context, src domain.APIKeySecret) (*domain.Principal, error) {
	meta, err := r.verifier.VerifySecret(ctx, src.Token)
	if err != nil {
		return nil, err
	}

	user, err := r.users.Resolve(ctx, meta.SubjectUserID)
	if err != nil {
		return nil, err
	}

	// A key whose subject lost their membership must stop working; do
	// not fall back to any other membership.
	if _, err := r.orgs.MembershipOf(ctx, meta.OwnerOrgID, user.ID); err != nil {
		return nil, err
	}

	livemode := meta.Environment == apikeydomain.EnvironmentLive
	userID := user.ID
	return &domain.Principal{
		UserID:   &userID,
		OrgID:    meta.OwnerOrgID,
		Livemode: livemode,
		Role:     domain.RoleMerchant,
		Claims:   merchantClaims(user, meta.OwnerOrgID, livemode),
	}, nil
}

func (r *Resolver) resolveBillingPortalKey(ctx context.Context, src domain.BillingPortalKey) (*domain.Principal, error) {
	meta, err := r.verifier.VerifyBillingPortal(ctx, src.Token)
	if err != nil {
		return nil, err
	}

	customer, err := r.customers.FindByExternalUser(ctx, meta.OrgID, meta.HostedBillingUserID)
	if err != nil {
		return nil, fmt.Errorf("customer for hosted billing user %s: %w", meta.HostedBillingUserID, err)
	}

	// The portal acts as the organization's earliest member. An
	// organization with a customer but no members cannot act at all.
	membership, err := r.orgs.EarliestMembership(ctx, meta.OrgID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrMembershipNotFound) {
			return nil, domain.ErrNoMemberships
		}
		return nil, err
	}

	user, err := r.users.FindByID(ctx, membership.UserID)
	if err != nil {
		return nil, err
	}

	userID := user.ID
	principal := &domain.Principal{
		UserID:   &userID,
		OrgID:    meta.OrgID,
		Livemode: true,
		Role:     domain.RoleCustomer,
		Claims:   merchantClaims(user, meta.OrgID, true),
	}
	principal.Claims.Role = domain.RoleCustomer
	principal.Claims.CustomerID = customer.ID.String()
	return principal, nil
}

func (r *Resolver) resolveWebSession(ctx context.Context, src domain.WebSession) (*domain.Principal, error) {
	user, err := r.users.FindByExternalID(ctx, src.SessionUserID)
	if err != nil {
		return nil, err
	}

	memberships, err := r.orgs.MembershipsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	// Zero memberships resolves to an empty principal; the transaction
	// layer rejects it before any RLS-scoped work runs.
	if len(memberships) == 0 {
		return &domain.Principal{Role: domain.RoleMerchant}, nil
	}

	selected := selectMembership(memberships)
	userID := user.ID
	return &domain.Principal{
		UserID:   &userID,
		OrgID:    selected.OrgID,
		Livemode: selected.Livemode,
		Role:     domain.RoleMerchant,
		Claims:   merchantClaims(user, selected.OrgID, selected.Livemode),
	}, nil
}

func (r *Resolver) resolveCustomerSession(ctx context.Context, src domain.CustomerSession) (*domain.Principal, error) {
	// One error for wrong organization and true absence: resolution must
	// not reveal whether the customer exists under another tenant.
	customer, err := r.customers.FindByExternalUser(ctx, src.OrgID, src.SessionUserID)
	if err != nil {
		return nil, err
	}

	return &domain.Principal{
		OrgID:    customer.OrgID,
		Livemode: customer.Livemode,
		Role:     domain.RoleCustomer,
		Claims: domain.Claims{
			Sub:          customer.ID.String(),
			Email:        customer.Email,
			OrgID:        customer.OrgID.String(),
			Role:         domain.RoleCustomer,
			Livemode:     customer.Livemode,
			CustomerID:   customer.ID.String(),
			UserMetadata: domain.UserMetadata{UserID: customer.ID.String()},
		},
	}, nil
}

func (r *Resolver) resolveTestOverride(src domain.TestOverride) (*domain.Principal, error) {
	if src.OrgID == 0 {
		return nil, domain.ErrUnsupportedSource
	}
	r.log.Debug("resolved test override principal", zap.String("org_id", src.OrgID.String()))
	return &domain.Principal{
		OrgID:    src.OrgID,
		Livemode: false,
		Role:     domain.RoleMerchant,
		Claims: domain.Claims{
			OrgID:    src.OrgID.String(),
			Role:     domain.RoleMerchant,
			Livemode: false,
		},
	}, nil
}

// selectMembership prefers the focused membership and otherwise falls
// back to the earliest-created one. The fallback is a deliberate
// deterministic tie-break; memberships arrive ordered by created_at.
func selectMembership(memberships []orgdomain.Membership) orgdomain.Membership {
	for _, m := range memberships {
		if m.Focused {
			return m
		}
	}
	return memberships[0]
}

func merchantClaims(user *userdomain.User, orgID snowflake.ID, livemode bool) domain.Claims {
	return domain.Claims{
		Sub:          user.ID.String(),
		Email:        user.Email,
		OrgID:        orgID.String(),
		Role:         domain.RoleMerchant,
		Livemode:     livemode,
		UserMetadata: domain.UserMetadata{UserID: user.ID.String()},
	}
}
