package postgres

import (
	"context"
	"errors"
	"fmt"

	"lipia-service/internal/domain/subscription"
	xerrors "lipia-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// UpsertWithTx writes the single logical subscription row for a user, latest
// write wins. Running inside the reconcile transaction makes activation
// atomic with the ledger write; re-running it for the same confirmed session
// produces the same final row.
func (r *SubscriptionRepository) UpsertWithTx(ctx context.Context, tx pgx.Tx, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, plan_id, status, period_start, period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE
		SET plan_id = EXCLUDED.plan_id,
		    status = EXCLUDED.status,
		    period_start = EXCLUDED.period_start,
		    period_end = EXCLUDED.period_end,
		    updated_at = now()
		RETURNING updated_at
	`

	err := tx.QueryRow(
		ctx, query,
		sub.UserID, sub.PlanID, sub.Status, sub.PeriodStart, sub.PeriodEnd,
	).Scan(&sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	query := `
		SELECT user_id, plan_id, status, period_start, period_end, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`

	var sub subscription.Subscription
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.UserID, &sub.PlanID, &sub.Status, &sub.PeriodStart, &sub.PeriodEnd, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return &sub, nil
}
