package postgres

import (
	"context"
	"fmt"

	"lipia-service/internal/domain/plan"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

// Seed mirrors the in-memory catalog into the plans table at startup. The
// catalog stays authoritative at runtime; the table exists so ledger and
// subscription rows have a referential anchor for SQL reporting.
func (r *PlanRepository) Seed(ctx context.Context, plans []plan.Plan) error {
	query := `
		INSERT INTO plans (
			id, display_name, canonical_price, canonical_currency,
			localized_price, localized_currency, billing_interval, features, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    canonical_price = EXCLUDED.canonical_price,
		    canonical_currency = EXCLUDED.canonical_currency,
		    localized_price = EXCLUDED.localized_price,
		    localized_currency = EXCLUDED.localized_currency,
		    billing_interval = EXCLUDED.billing_interval,
		    features = EXCLUDED.features,
		    updated_at = now()
	`

	for _, p := range plans {
		_, err := r.db.Exec(
			ctx, query,
			p.ID, p.DisplayName, p.CanonicalPrice, p.CanonicalCurrency,
			p.LocalizedPrice, p.LocalizedCurrency, p.Interval, pq.StringArray(p.Features),
		)
		if err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", p.ID, err)
		}
	}
	return nil
}
