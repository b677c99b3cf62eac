package payment

import (
	"context"
	"strconv"
	"time"

	"lipia-service/internal/domain/payment"
	"lipia-service/internal/pkg/currency"
	xerrors "lipia-service/internal/pkg/errors"
	"lipia-service/internal/provider/card"
	"lipia-service/internal/provider/mobilemoney"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// reconcileInput is the provider-neutral shape both completion channels
// reduce to before entering the shared transaction.
type reconcileInput struct {
	correlationID string
	providerTxID  string
	success       bool
	resultCode    string
	resultDesc    string
	amount        decimal.Decimal
	amountCurrency string
	phoneNumber   string
	paidAt        time.Time
}

// HandleMobileMoneyCallback processes one delivery of the network's
// asynchronous result. Error mapping for the HTTP layer: malformed, unknown
// and duplicate are acknowledged; only store failures surface as 5xx so the
// network redelivers.
func (s *Service) HandleMobileMoneyCallback(ctx context.Context, body []byte) error {
	cb, err := mobilemoney.ParseCallback(body)
	if err != nil {
		return err
	}

	in := reconcileInput{
		correlationID: cb.CheckoutRequestID,
		providerTxID:  cb.CheckoutRequestID,
		success:       cb.Success(),
		resultCode:    strconv.Itoa(cb.ResultCode),
		resultDesc:    cb.ResultDesc,
		paidAt:        time.Now(),
	}

	if cb.Success() {
		receipt, err := cb.Receipt()
		if err != nil {
			return err
		}
		in.providerTxID = receipt.TransactionID
		in.amount = receipt.Amount
		in.amountCurrency = s.converter.Localized()
		in.phoneNumber = receipt.PhoneNumber
		in.paidAt = receipt.PaidAt
	}

	return s.reconcile(ctx, in)
}

// HandleCardWebhook processes the card processor's server-side confirmation.
// Both providers flow through the same state machine; the activator has one
// entry point.
func (s *Service) HandleCardWebhook(ctx context.Context, ev *card.Event) error {
	in := reconcileInput{
		correlationID: ev.Data.IntentID,
		providerTxID:  ev.Data.IntentID,
		paidAt:        time.Now(),
	}

	switch ev.Type {
	case card.EventIntentSucceeded:
		in.success = true
		in.resultCode = "0"
		in.resultDesc = "succeeded"
		in.amount = decimal.New(ev.Data.AmountMinor, -2)
		in.amountCurrency = ev.Data.Currency
	case card.EventIntentFailed:
		in.resultCode = "failed"
		in.resultDesc = ev.Data.FailureReason
	default:
		s.logger.Debug("ignoring card webhook event", zap.String("type", ev.Type))
		return nil
	}

	return s.reconcile(ctx, in)
}

// reconcile runs steps 3-5 of the callback algorithm inside one transaction
// keyed by the session row lock, so a duplicate delivery racing the first
// serializes and lands on the terminal-state check.
func (s *Service) reconcile(ctx context.Context, in reconcileInput) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	defer tx.Rollback(ctx)

	sess, err := s.sessions.FindByCorrelationIDForUpdate(ctx, tx, in.correlationID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return xerrors.ErrUnknownSession
	}
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if sess.Status.Terminal() {
		return xerrors.ErrDuplicateCallback
	}

	record, status, err := s.buildLedgerRow(sess, in)
	if err != nil {
		return err
	}

	if err := s.ledger.CreateWithTx(ctx, tx, record); err != nil {
		if xerrors.Is(err, xerrors.ErrDuplicateCallback) {
			return xerrors.ErrDuplicateCallback
		}
		return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if err := s.sessions.UpdateStatusWithTx(ctx, tx, sess.ID, status); err != nil {
		return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if in.success {
		if err := s.activator.ActivateWithTx(ctx, tx, sess); err != nil {
			return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	s.notifier.Publish(sess.CorrelationID, status)
	s.cache.Set(ctx, sess.CorrelationID, status)

	s.logger.Info("payment session reconciled",
		zap.String("correlation_id", sess.CorrelationID),
		zap.String("provider", string(sess.Provider)),
		zap.String("status", string(status)),
		zap.String("provider_transaction_id", in.providerTxID),
	)
	return nil
}

// buildLedgerRow converts the reported amount to the canonical currency and
// assembles the append-only Payment row. The plan always comes from the
// session; matching a plan by amount is ambiguous whenever two plans share a
// price and is deliberately not done.
func (s *Service) buildLedgerRow(sess *payment.Session, in reconcileInput) (*payment.Payment, payment.SessionStatus, error) {
	metadata := map[string]interface{}{
		"result_code":     in.resultCode,
		"result_desc":     in.resultDesc,
		"conversion_rate": s.converter.Rate().String(),
	}

	record := &payment.Payment{
		ID:                    ulid.Make().String(),
		UserID:                sess.UserID,
		PlanID:                sess.PlanID,
		Currency:              s.converter.Canonical(),
		Provider:              sess.Provider,
		ProviderTransactionID: in.providerTxID,
		Metadata:              metadata,
	}

	if !in.success {
		record.Status = payment.PaymentFailed
		record.Amount = decimal.Zero
		return record, payment.SessionFailed, nil
	}

	canonical, err := s.converter.ToCanonical(in.amount, in.amountCurrency)
	if err != nil {
		return nil, "", xerrors.Wrap(xerrors.ErrMalformedCallback, err.Error())
	}

	metadata["reported_amount"] = in.amount.String()
	metadata["reported_currency"] = in.amountCurrency
	metadata["paid_at"] = in.paidAt.UTC().Format(time.RFC3339)
	if in.phoneNumber != "" {
		metadata["phone_number"] = in.phoneNumber
	}

	if pl, ok := s.catalog.Get(sess.PlanID); ok {
		if !currency.WithinOneMinorUnit(canonical, pl.CanonicalPrice) {
			s.logger.Warn("reported amount differs from catalog price",
				zap.String("correlation_id", sess.CorrelationID),
				zap.String("plan_id", sess.PlanID),
				zap.String("reported_canonical", canonical.String()),
				zap.String("catalog_price", pl.CanonicalPrice.String()),
			)
		}
	}

	record.Status = payment.PaymentCompleted
	record.Amount = canonical
	return record, payment.SessionConfirmed, nil
}
