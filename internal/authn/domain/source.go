// Package domain contains the authentication sources, the resolved
// principal, and the claims bundle the database security layer reads.
package domain

import "github.com/bwmarrin/snowflake"

// Source is the credential a caller presents. It is a closed union;
// each variant carries exactly what its resolution rule needs.
type Source interface {
	sourceVariant()
}

// APIKeySecret authenticates a merchant backend by secret API key.
type APIKeySecret struct {
	Token string
}

// BillingPortalKey authenticates a hosted billing portal request on
// behalf of one customer of one organization.
type BillingPortalKey struct {
	Token string
}

// WebSession authenticates the merchant webapp by the session's
// external user id.
type WebSession struct {
	SessionUserID string
}

// CustomerSession authenticates a customer portal session scoped to one
// organization.
type CustomerSession struct {
	SessionUserID string
	OrgID         snowflake.ID
}

// TestOverride pins the principal to an organization directly. Only
// honored when the process runs with the test-environment flag; any
// other use is rejected before credential verification.
type TestOverride struct {
	OrgID snowflake.ID
}

func (APIKeySecret) sourceVariant()     {}
func (BillingPortalKey) sourceVariant() {}
func (WebSession) sourceVariant()       {}
func (CustomerSession) sourceVariant()  {}
func (TestOverride) sourceVariant()     {}
