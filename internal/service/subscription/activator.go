package subscription

import (
	"context"
	"time"

	"lipia-service/internal/catalog"
	paymentdomain "lipia-service/internal/domain/payment"
	"lipia-service/internal/domain/subscription"
	xerrors "lipia-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type Store interface {
	UpsertWithTx(ctx context.Context, tx pgx.Tx, sub *subscription.Subscription) error
	FindByUser(ctx context.Context, userID int64) (*subscription.Subscription, error)
}

// Activator is the single provider-agnostic entry point that turns a
// confirmed payment session into an active subscription. Upsert semantics
// make it safe to invoke repeatedly for the same session.
type Activator struct {
	store   Store
	catalog *catalog.Catalog
	logger  *zap.Logger
}

func NewActivator(store Store, cat *catalog.Catalog, logger *zap.Logger) *Activator {
	return &Activator{store: store, catalog: cat, logger: logger}
}

// ActivateWithTx upserts the user's subscription inside the caller's
// reconcile transaction, so activation commits atomically with the ledger
// write.
func (a *Activator) ActivateWithTx(ctx context.Context, tx pgx.Tx, sess *paymentdomain.Session) error {
	pl, ok := a.catalog.Get(sess.PlanID)
	if !ok {
		// Sessions are only ever created against the catalog; hitting this
		// means the catalog shrank across a deploy mid-flight.
		return xerrors.Wrap(xerrors.ErrInvalidPlan, "confirmed session references unknown plan "+sess.PlanID)
	}

	now := time.Now()
	sub := &subscription.Subscription{
		UserID:      sess.UserID,
		PlanID:      sess.PlanID,
		Status:      subscription.StatusActive,
		PeriodStart: now,
		PeriodEnd:   pl.PeriodEnd(now),
	}

	if err := a.store.UpsertWithTx(ctx, tx, sub); err != nil {
		return err
	}

	a.logger.Info("subscription activated",
		zap.Int64("user_id", sess.UserID),
		zap.String("plan_id", sess.PlanID),
		zap.Time("period_end", sub.PeriodEnd),
	)
	return nil
}

// Current returns the user's subscription row, if any.
func (a *Activator) Current(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	return a.store.FindByUser(ctx, userID)
}
