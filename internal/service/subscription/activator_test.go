package subscription

import (
	"context"
	"testing"
	"time"

	"lipia-service/internal/catalog"
	paymentdomain "lipia-service/internal/domain/payment"
	"lipia-service/internal/domain/subscription"
	"lipia-service/internal/pkg/currency"
	xerrors "lipia-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memSubs struct {
	subs map[int64]*subscription.Subscription
}

func (m *memSubs) UpsertWithTx(ctx context.Context, tx pgx.Tx, sub *subscription.Subscription) error {
	cp := *sub
	m.subs[sub.UserID] = &cp
	return nil
}

func (m *memSubs) FindByUser(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	sub, ok := m.subs[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return sub, nil
}

func newActivator(t *testing.T) (*Activator, *memSubs) {
	t.Helper()
	conv, err := currency.NewConverter("USD", "KES", decimal.NewFromInt(150))
	require.NoError(t, err)
	cat, err := catalog.Load("", conv)
	require.NoError(t, err)
	store := &memSubs{subs: make(map[int64]*subscription.Subscription)}
	return NewActivator(store, cat, zap.NewNop()), store
}

func TestActivateWithTx(t *testing.T) {
	activator, store := newActivator(t)

	sess := &paymentdomain.Session{UserID: 7, PlanID: "basic"}
	require.NoError(t, activator.ActivateWithTx(context.Background(), nil, sess))

	sub := store.subs[7]
	require.NotNil(t, sub)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, "basic", sub.PlanID)
	assert.WithinDuration(t, sub.PeriodStart.AddDate(0, 1, 0), sub.PeriodEnd, time.Second)
}

func TestActivateWithTxRepeatIdempotent(t *testing.T) {
	activator, store := newActivator(t)

	sess := &paymentdomain.Session{UserID: 7, PlanID: "basic"}
	require.NoError(t, activator.ActivateWithTx(context.Background(), nil, sess))
	require.NoError(t, activator.ActivateWithTx(context.Background(), nil, sess))

	assert.Len(t, store.subs, 1)
}

func TestActivateWithTxUnknownPlan(t *testing.T) {
	activator, store := newActivator(t)

	sess := &paymentdomain.Session{UserID: 7, PlanID: "retired_plan"}
	err := activator.ActivateWithTx(context.Background(), nil, sess)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidPlan))
	assert.Empty(t, store.subs)
}

func TestCurrent(t *testing.T) {
	activator, store := newActivator(t)
	store.subs[9] = &subscription.Subscription{UserID: 9, PlanID: "normal", Status: subscription.StatusActive}

	sub, err := activator.Current(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "normal", sub.PlanID)

	_, err = activator.Current(context.Background(), 10)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
}
