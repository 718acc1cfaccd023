package reconcile

import (
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/domain"
)

const defaultProductCurrency = "usd"

// EnsureDefaultProduct validates the default-product constraint of a
// desired set and synthesizes a zero-cost default when none is
// declared. More than one declared default is a validation error raised
// before any row is written.
func EnsureDefaultProduct(modelName string, products []domain.DesiredProduct) ([]domain.DesiredProduct, error) {
	defaults := 0
	currency := ""
	for _, p := range products {
		if p.Default {
			defaults++
		}
		for _, price := range p.Prices {
			if currency == "" && price.Currency != "" {
				currency = price.Currency
			}
		}
	}
	if currency == "" {
		currency = defaultProductCurrency
	}
	if defaults > 1 {
		return nil, domain.ErrMultipleDefaults
	}
	if defaults == 1 {
		return products, nil
	}

	slug := SyntheticDefaultProductSlug(modelName, currency)
	synthetic := domain.DesiredProduct{
		Slug:    slug,
		Name:    "Default",
		Default: true,
		Prices: []domain.DesiredPrice{{
			Slug:          slug,
			Name:          "Default",
			Type:          domain.PriceTypeFlat,
			UnitPrice:     0,
			Currency:      currency,
			IntervalUnit:  domain.IntervalUnitMonth,
			IntervalCount: 1,
		}},
	}
	return append(products, synthetic), nil
}
