// Package currency converts between the mobile-money network's localized
// currency and the canonical storage currency at a fixed per-deployment rate.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Converter holds a fixed exchange rate, expressed as localized minor-unit
// value per one canonical unit (e.g. 150 KES per USD). The rate is loaded
// from configuration at startup and never changes for the process lifetime.
type Converter struct {
	canonical string
	localized string
	rate      decimal.Decimal
}

func NewConverter(canonical, localized string, rate decimal.Decimal) (*Converter, error) {
	if rate.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("conversion rate must be positive, got %s", rate)
	}
	return &Converter{canonical: canonical, localized: localized, rate: rate}, nil
}

func (c *Converter) Canonical() string { return c.canonical }
func (c *Converter) Localized() string { return c.localized }
func (c *Converter) Rate() decimal.Decimal { return c.rate }

// ToCanonical converts an amount reported in the given currency into the
// canonical currency, rounded half-up to two decimal places. Amounts already
// denominated in the canonical currency pass through unchanged.
func (c *Converter) ToCanonical(amount decimal.Decimal, from string) (decimal.Decimal, error) {
	switch from {
	case c.canonical:
		return amount.Round(2), nil
	case c.localized:
		return amount.Div(c.rate).Round(2), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported currency %q", from)
	}
}

// ToLocalized converts a canonical amount into the localized currency,
// rounded half-up to two decimal places.
func (c *Converter) ToLocalized(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.rate).Round(2)
}

// WithinOneMinorUnit reports whether two amounts differ by at most 0.01,
// the tolerance used when reconciling converted amounts against catalog
// prices.
func WithinOneMinorUnit(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.New(1, -2))
}
