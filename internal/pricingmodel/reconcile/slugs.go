package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/smallbiznis/ledgerline/internal/pricingmodel/domain"
)

// SyntheticUsagePriceSlug derives a stable slug for a usage price that
// was supplied without one. The hash covers only the defining fields,
// so renaming a price updates it in place instead of replacing it.
func SyntheticUsagePriceSlug(meterSlug string, price domain.DesiredPrice) string {
	return "usage-" + fieldHash(
		meterSlug,
		fmt.Sprintf("%d", price.UnitPrice),
		fmt.Sprintf("%d", price.UsageEventsPerUnit),
		price.Currency,
		fmt.Sprintf("%d", price.IntervalCount),
		string(price.IntervalUnit),
	)
}

// SyntheticDefaultProductSlug derives the slug of the zero-cost default
// product generated when a desired structure declares none.
func SyntheticDefaultProductSlug(modelName, currency string) string {
	return "default-" + fieldHash("default_product", modelName, currency)
}

func fieldHash(fields ...string) string {
	h := sha256.New()
	for _, field := range fields {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
