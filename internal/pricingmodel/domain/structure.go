package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DesiredPrice describes one price of a desired structure. A usage
// price with an empty slug receives a deterministic synthetic slug
// derived from its defining fields.
type DesiredPrice struct {
	Slug               string
	Name               string
	Type               PriceType
	UnitPrice          int64
	Currency           string
	IntervalUnit       IntervalUnit
	IntervalCount      int
	UsageEventsPerUnit int64
}

// DesiredProduct describes one product and its prices and feature
// grants.
type DesiredProduct struct {
	Slug         string
	Name         string
	Description  *string
	Default      bool
	Prices       []DesiredPrice
	FeatureSlugs []string
}

// DesiredFeature describes one feature.
type DesiredFeature struct {
	Slug        string
	Name        string
	Description *string
}

// DesiredMeter describes one usage meter and its usage prices.
type DesiredMeter struct {
	Slug        string
	Name        string
	Aggregation string
	Prices      []DesiredPrice
}

// DesiredResource describes one resource.
type DesiredResource struct {
	Slug string
	Name string
}

// DesiredStructure is the caller-supplied target shape of a pricing
// model.
type DesiredStructure struct {
	Name      string
	Features  []DesiredFeature
	Products  []DesiredProduct
	Meters    []DesiredMeter
	Resources []DesiredResource
}

// Structure is the persisted shape of a pricing model, loaded for
// reconciliation.
type Structure struct {
	Model           PricingModel
	Features        []Feature
	Products        []Product
	Prices          []Price
	Meters          []UsageMeter
	Resources       []Resource
	ProductFeatures []ProductFeature
}

// Service reconciles desired structures onto stored pricing models.
type Service interface {
	// Setup creates a pricing model from a desired structure.
	Setup(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, livemode bool, desired DesiredStructure) (*Structure, error)
	// Reconcile diffs desired against the stored structure of modelID
	// and applies the minimal add/update/expire sets.
	Reconcile(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, modelID snowflake.ID, desired DesiredStructure) (*Structure, error)
	// PromoteToLive clones or reconciles a test-mode pricing model onto
	// the organization's live structure.
	PromoteToLive(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, sourceModelID snowflake.ID) (*Structure, error)
}

var (
	ErrPricingModelNotFound = errors.New("pricing model not found")
	ErrMultipleDefaults     = errors.New("pricing model declares more than one default product")
	ErrInvalidSlug          = errors.New("invalid slug")
)
