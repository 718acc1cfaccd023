package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/ledgerline/internal/apikey/domain"
	apikeyservice "github.com/smallbiznis/ledgerline/internal/apikey/service"
	"github.com/smallbiznis/ledgerline/internal/authn/domain"
	"github.com/smallbiznis/ledgerline/internal/clock"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	customerrepo "github.com/smallbiznis/ledgerline/internal/customer/repository"
	"github.com/smallbiznis/ledgerline/internal/migration"
	orgdomain "github.com/smallbiznis/ledgerline/internal/organization/domain"
	orgrepo "github.com/smallbiznis/ledgerline/internal/organization/repository"
	userdomain "github.com/smallbiznis/ledgerline/internal/user/domain"
	userrepo "github.com/smallbiznis/ledgerline/internal/user/repository"
	"github.com/smallbiznis/ledgerline/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	resolver domain.Resolver
	clock    *clock.FakeClock
	node     *snowflake.Node
	testEnv  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Run(gdb))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	f := &fixture{db: gdb, clock: clk, node: node}
	f.resolver = New(
		log,
		apikeyservice.New(gdb, log, clk),
		userrepo.New(gdb),
		orgrepo.New(gdb),
		customerrepo.New(gdb),
		func() bool { return f.testEnv },
	)
	return f
}

func (f *fixture) createUser(t *testing.T, externalID, email string) *userdomain.User {
	t.Helper()
	user := &userdomain.User{ID: f.node.Generate(), ExternalID: externalID, Email: email}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) createOrg(t *testing.T, name string) *orgdomain.Organization {
	t.Helper()
	org := &orgdomain.Organization{ID: f.node.Generate(), Name: name, Slug: name}
	require.NoError(t, f.db.Create(org).Error)
	return org
}

func (f *fixture) createMembership(t *testing.T, orgID, userID snowflake.ID, focused, livemode bool, createdAt time.Time) *orgdomain.Membership {
	t.Helper()
	m := &orgdomain.Membership{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Focused:   focused,
		Livemode:  livemode,
		CreatedAt: createdAt,
	}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

func (f *fixture) createSecretKey(t *testing.T, orgID snowflake.ID, raw, subject string, env apikeydomain.Environment) {
	t.Helper()
	require.NoError(t, f.db.Create(&apikeydomain.APIKey{
		ID:            f.node.Generate(),
		OrgID:         orgID,
		Type:          apikeydomain.KeyTypeSecret,
		Name:          "test secret",
		KeyHash:       apikeydomain.HashAPIKey(raw),
		IsActive:      true,
		Environment:   env,
		SubjectUserID: subject,
	}).Error)
}

func (f *fixture) createPortalKey(t *testing.T, orgID snowflake.ID, raw, hostedUserID string) {
	t.Helper()
	require.NoError(t, f.db.Create(&apikeydomain.APIKey{
		ID:                  f.node.Generate(),
		OrgID:               orgID,
		Type:                apikeydomain.KeyTypeBillingPortal,
		Name:                "portal key",
		KeyHash:             apikeydomain.HashAPIKey(raw),
		IsActive:            true,
		Environment:         apikeydomain.EnvironmentLive,
		HostedBillingUserID: &hostedUserID,
	}).Error)
}

func (f *fixture) createCustomer(t *testing.T, orgID snowflake.ID, externalUserID, email string) *customerdomain.Customer {
	t.Helper()
	c := &customerdomain.Customer{
		ID:             f.node.Generate(),
		OrgID:          orgID,
		ExternalUserID: externalUserID,
		Name:           "Customer " + externalUserID,
		Email:          email,
		Livemode:       true,
	}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func TestResolveSecretKey(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "acme")
	user := f.createUser(t, "ext-1", "owner@acme.test")
	f.createMembership(t, org.ID, user.ID, true, true, f.clock.Now())
	f.createSecretKey(t, org.ID, "sk_live_abc", user.ID.String(), apikeydomain.EnvironmentLive)

	p, err := f.resolver.Resolve(context.Background(), domain.APIKeySecret{Token: "sk_live_abc"})
	require.NoError(t, err)

	require.NotNil(t, p.UserID)
	assert.Equal(t, user.ID, *p.UserID)
	assert.Equal(t, org.ID, p.OrgID)
	assert.True(t, p.Livemode)
	assert.Equal(t, domain.RoleMerchant, p.Role)

	assert.Equal(t, user.ID.String(), p.Claims.Sub)
	assert.Equal(t, p.Claims.Sub, p.Claims.UserMetadata.UserID)
	assert.Equal(t, org.ID.String(), p.Claims.OrgID)
}

func TestResolveSecretKeyTestEnvironmentClearsLivemode(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "acme")
	user := f.createUser(t, "ext-1", "owner@acme.test")
	f.createMembership(t, org.ID, user.ID, true, true, f.clock.Now())
	f.createSecretKey(t, org.ID, "sk_test_abc", user.ID.String(), apikeydomain.EnvironmentTest)

	p, err := f.resolver.Resolve(context.Background(), domain.APIKeySecret{Token: "sk_test_abc"})
	require.NoError(t, err)
	assert.False(t, p.Livemode)
}

func TestResolveSecretKeyWithoutMembershipFails(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "acme")
	user := f.createUser(t, "ext-1", "owner@acme.test")
	// No membership row; the key's subject lost access.
	f.createSecretKey(t, org.ID, "sk_live_abc", user.ID.String(), apikeydomain.EnvironmentLive)

	_, err := f.resolver.Resolve(context.Background(), domain.APIKeySecret{Token: "sk_live_abc"})
	require.ErrorIs(t, err, orgdomain.ErrMembershipNotFound)
}

func TestResolveUnknownSecretKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Resolve(context.Background(), domain.APIKeySecret{Token: "sk_bogus"})
	require.ErrorIs(t, err, apikeydomain.ErrInvalidKey)
}

func TestResolveWebSessionPrefersFocusedMembership(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ext-1", "user@acme.test")
	first := f.createOrg(t, "first")
	second := f.createOrg(t, "second")

	f.createMembership(t, first.ID, user.ID, false, false, f.clock.Now().Add(-2*time.Hour))
	f.createMembership(t, second.ID, user.ID, true, true, f.clock.Now().Add(-time.Hour))

	p, err := f.resolver.Resolve(context.Background(), domain.WebSession{SessionUserID: "ext-1"})
	require.NoError(t, err)
	assert.Equal(t, second.ID, p.OrgID)
	assert.True(t, p.Livemode)
}

func TestResolveWebSessionFallsBackToEarliestMembership(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ext-1", "user@acme.test")
	earliest := f.createOrg(t, "earliest")
	later := f.createOrg(t, "later")

	f.createMembership(t, later.ID, user.ID, false, false, f.clock.Now().Add(-time.Hour))
	f.createMembership(t, earliest.ID, user.ID, false, false, f.clock.Now().Add(-2*time.Hour))

	p, err := f.resolver.Resolve(context.Background(), domain.WebSession{SessionUserID: "ext-1"})
	require.NoError(t, err)
	assert.Equal(t, earliest.ID, p.OrgID)
}

func TestResolveWebSessionWithoutMembershipsIsEmptyPrincipal(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "ext-1", "user@acme.test")

	p, err := f.resolver.Resolve(context.Background(), domain.WebSession{SessionUserID: "ext-1"})
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
	assert.Nil(t, p.UserID)
}

func TestResolveWebSessionUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Resolve(context.Background(), domain.WebSession{SessionUserID: "ghost"})
	require.ErrorIs(t, err, userdomain.ErrUserNotFound)
}

func TestResolveBillingPortalKey(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "acme")
	founder := f.createUser(t, "ext-founder", "founder@acme.test")
	joiner := f.createUser(t, "ext-joiner", "joiner@acme.test")
	f.createMembership(t, org.ID, joiner.ID, true, true, f.clock.Now().Add(-time.Hour))
	f.createMembership(t, org.ID, founder.ID, false, true, f.clock.Now().Add(-2*time.Hour))

	customer := f.createCustomer(t, org.ID, "hosted-42", "cust@client.test")
	f.createPortalKey(t, org.ID, "pk_abc", "hosted-42")

	p, err := f.resolver.Resolve(context.Background(), domain.BillingPortalKey{Token: "pk_abc"})
	require.NoError(t, err)

	// The portal acts as the earliest member regardless of focus.
	require.NotNil(t, p.UserID)
	assert.Equal(t, founder.ID, *p.UserID)
	assert.Equal(t, org.ID, p.OrgID)
	assert.True(t, p.Livemode)
	assert.Equal(t, domain.RoleCustomer, p.Role)
	assert.Equal(t, customer.ID.String(), p.Claims.CustomerID)
}

func TestResolveBillingPortalKeyWithoutMemberships(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "acme")
	f.createCustomer(t, org.ID, "hosted-42", "cust@client.test")
	f.createPortalKey(t, org.ID, "pk_abc", "hosted-42")

	_, err := f.resolver.Resolve(context.Background(), domain.BillingPortalKey{Token: "pk_abc"})
	require.ErrorIs(t, err, domain.ErrNoMemberships)
}

// failingMembershipOrgs fails every earliest-membership lookup while
// delegating the rest to the wrapped repository.
type failingMembershipOrgs struct {
	orgdomain.Repository
	err error
}

func (f failingMembershipOrgs) EarliestMembership(ctx context.Context, orgID snowflake.ID) (*orgdomain.Membership, error) {
	return nil, f.err
}

func TestResolveBillingPortalKeyMembershipLookupFailure(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "acme")
	f.createCustomer(t, org.ID, "hosted-42", "cust@client.test")
	f.createPortalKey(t, org.ID, "pk_abc", "hosted-42")

	lookupErr := errors.New("connection reset by peer")
	log := zaptest.NewLogger(t)
	resolver := New(
		log,
		apikeyservice.New(f.db, log, f.clock),
		userrepo.New(f.db),
		failingMembershipOrgs{Repository: orgrepo.New(f.db), err: lookupErr},
		customerrepo.New(f.db),
		func() bool { return false },
	)

	// A transient lookup fault is not an authorization verdict.
	_, err := resolver.Resolve(context.Background(), domain.BillingPortalKey{Token: "pk_abc"})
	require.ErrorIs(t, err, lookupErr)
	require.NotErrorIs(t, err, domain.ErrNoMemberships)
}

func TestResolveBillingPortalKeyWithoutCustomer(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "acme")
	user := f.createUser(t, "ext-1", "owner@acme.test")
	f.createMembership(t, org.ID, user.ID, true, true, f.clock.Now())
	f.createPortalKey(t, org.ID, "pk_abc", "hosted-42")

	_, err := f.resolver.Resolve(context.Background(), domain.BillingPortalKey{Token: "pk_abc"})
	require.ErrorIs(t, err, customerdomain.ErrCustomerNotFound)
}

func TestResolveCustomerSession(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "acme")
	customer := f.createCustomer(t, org.ID, "hosted-42", "cust@client.test")

	p, err := f.resolver.Resolve(context.Background(), domain.CustomerSession{SessionUserID: "hosted-42", OrgID: org.ID})
	require.NoError(t, err)

	assert.Nil(t, p.UserID)
	assert.Equal(t, org.ID, p.OrgID)
	assert.Equal(t, domain.RoleCustomer, p.Role)
	assert.Equal(t, customer.ID.String(), p.Claims.Sub)
	assert.Equal(t, p.Claims.Sub, p.Claims.UserMetadata.UserID)
}

func TestResolveCustomerSessionWrongOrgLooksAbsent(t *testing.T) {
	f := newFixture(t)
	home := f.createOrg(t, "home")
	other := f.createOrg(t, "other")
	f.createCustomer(t, home.ID, "hosted-42", "cust@client.test")

	// The same sentinel covers wrong-tenant and true absence.
	_, errWrongOrg := f.resolver.Resolve(context.Background(), domain.CustomerSession{SessionUserID: "hosted-42", OrgID: other.ID})
	require.ErrorIs(t, errWrongOrg, customerdomain.ErrCustomerNotFound)

	_, errAbsent := f.resolver.Resolve(context.Background(), domain.CustomerSession{SessionUserID: "nobody", OrgID: home.ID})
	require.ErrorIs(t, errAbsent, customerdomain.ErrCustomerNotFound)
	assert.Equal(t, errWrongOrg.Error(), errAbsent.Error())
}

func TestResolveTestOverrideRequiresTestEnvironment(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	_, err := f.resolver.Resolve(context.Background(), domain.TestOverride{OrgID: orgID})
	require.ErrorIs(t, err, domain.ErrTestOverrideOutsideTest)

	// The flag is re-read on every call, not latched at construction.
	f.testEnv = true
	p, err := f.resolver.Resolve(context.Background(), domain.TestOverride{OrgID: orgID})
	require.NoError(t, err)
	assert.Equal(t, orgID, p.OrgID)
	assert.False(t, p.Livemode)
	assert.Nil(t, p.UserID)

	f.testEnv = false
	_, err = f.resolver.Resolve(context.Background(), domain.TestOverride{OrgID: orgID})
	require.ErrorIs(t, err, domain.ErrTestOverrideOutsideTest)
}
