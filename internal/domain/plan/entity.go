package plan

import (
	"time"

	"github.com/shopspring/decimal"
)

type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Plan is one entry of the static plan catalog. Plans are immutable after
// process start; the ID is the only foreign key used elsewhere.
type Plan struct {
	ID                string          `json:"id"`
	DisplayName       string          `json:"display_name"`
	CanonicalPrice    decimal.Decimal `json:"canonical_price"`
	CanonicalCurrency string          `json:"canonical_currency"`
	LocalizedPrice    decimal.Decimal `json:"localized_price"`
	LocalizedCurrency string          `json:"localized_currency"`
	Interval          Interval        `json:"interval"`
	Features          []string        `json:"features"`
}

// PeriodEnd returns the end of a billing period that starts at the given time.
func (p Plan) PeriodEnd(start time.Time) time.Time {
	switch p.Interval {
	case IntervalYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
