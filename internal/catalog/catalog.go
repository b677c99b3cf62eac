// Package catalog holds the fixed set of subscription plans the service
// sells. The catalog is loaded once at process start, either from built-in
// defaults or from a JSON file, and validated against the currency converter
// before the server accepts traffic.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"lipia-service/internal/domain/plan"
	"lipia-service/internal/pkg/currency"

	"github.com/shopspring/decimal"
)

type Catalog struct {
	plans   map[string]plan.Plan
	ordered []plan.Plan
}

// Load builds the catalog from the JSON file at path, or from the built-in
// defaults when path is empty. Every plan's localized price must round-trip
// through the converter to its canonical price within one minor unit;
// violations fail startup rather than surfacing as mispriced activations.
func Load(path string, conv *currency.Converter) (*Catalog, error) {
	plans := defaultPlans(conv)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read plan catalog %s: %w", path, err)
		}
		plans = nil
		if err := json.Unmarshal(raw, &plans); err != nil {
			return nil, fmt.Errorf("failed to parse plan catalog %s: %w", path, err)
		}
	}

	c := &Catalog{plans: make(map[string]plan.Plan, len(plans)), ordered: plans}
	for _, p := range plans {
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %q in catalog", p.ID)
		}
		c.plans[p.ID] = p
	}

	if err := c.validate(conv); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the plan for the given identifier.
func (c *Catalog) Get(id string) (plan.Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// List returns all plans in declaration order.
func (c *Catalog) List() []plan.Plan {
	out := make([]plan.Plan, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *Catalog) validate(conv *currency.Converter) error {
	for _, p := range c.ordered {
		if p.ID == "" {
			return fmt.Errorf("catalog contains a plan with no id")
		}
		if p.Interval != plan.IntervalMonth && p.Interval != plan.IntervalYear {
			return fmt.Errorf("plan %s: unknown interval %q", p.ID, p.Interval)
		}
		if p.CanonicalCurrency != conv.Canonical() {
			return fmt.Errorf("plan %s: canonical currency %s, converter expects %s",
				p.ID, p.CanonicalCurrency, conv.Canonical())
		}
		if p.LocalizedCurrency != conv.Localized() {
			return fmt.Errorf("plan %s: localized currency %s, converter expects %s",
				p.ID, p.LocalizedCurrency, conv.Localized())
		}

		back, err := conv.ToCanonical(p.LocalizedPrice, p.LocalizedCurrency)
		if err != nil {
			return fmt.Errorf("plan %s: %w", p.ID, err)
		}
		if !currency.WithinOneMinorUnit(back, p.CanonicalPrice) {
			return fmt.Errorf("plan %s: localized price %s %s converts to %s, expected %s %s",
				p.ID, p.LocalizedPrice, p.LocalizedCurrency, back, p.CanonicalPrice, p.CanonicalCurrency)
		}
	}
	return nil
}

func defaultPlans(conv *currency.Converter) []plan.Plan {
	mk := func(id, name string, canonical int64, interval plan.Interval, features ...string) plan.Plan {
		price := decimal.NewFromInt(canonical)
		return plan.Plan{
			ID:                id,
			DisplayName:       name,
			CanonicalPrice:    price,
			CanonicalCurrency: conv.Canonical(),
			LocalizedPrice:    conv.ToLocalized(price),
			LocalizedCurrency: conv.Localized(),
			Interval:          interval,
			Features:          features,
		}
	}

	return []plan.Plan{
		mk("basic", "Basic", 500, plan.IntervalMonth,
			"Live session access", "Community chat"),
		mk("normal", "Normal", 1000, plan.IntervalMonth,
			"Live session access", "Community chat", "Signal alerts"),
		mk("premium_kes", "Premium", 2000, plan.IntervalMonth,
			"Live session access", "Community chat", "Signal alerts", "One-on-one mentorship"),
	}
}
