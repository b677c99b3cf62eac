package payment

import (
	"context"
	"regexp"
	"strings"
	"time"

	"lipia-service/internal/catalog"
	"lipia-service/internal/domain/payment"
	xerrors "lipia-service/internal/pkg/errors"
	"lipia-service/internal/pkg/currency"
	"lipia-service/internal/provider/card"
	"lipia-service/internal/provider/mobilemoney"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SessionStore interface {
	Create(ctx context.Context, sess *payment.Session) error
	AttachCorrelationID(ctx context.Context, id int64, correlationID string) error
	FindByCorrelationID(ctx context.Context, correlationID string) (*payment.Session, error)
	FindByCorrelationIDForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (*payment.Session, error)
	UpdateStatus(ctx context.Context, id int64, status payment.SessionStatus) error
	UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status payment.SessionStatus) error
	ExpireStale(ctx context.Context, now time.Time) ([]string, error)
}

type Ledger interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, p *payment.Payment) error
}

type Activator interface {
	ActivateWithTx(ctx context.Context, tx pgx.Tx, sess *payment.Session) error
}

type CardProcessor interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency, reference string) (*card.Intent, error)
}

type MobileMoneyProcessor interface {
	Push(ctx context.Context, msisdn string, amount decimal.Decimal, accountRef, description string) (*mobilemoney.PushResult, error)
}

type Notifier interface {
	Publish(correlationID string, status payment.SessionStatus)
}

type StatusCache interface {
	Get(ctx context.Context, correlationID string) (payment.SessionStatus, bool)
	Set(ctx context.Context, correlationID string, status payment.SessionStatus)
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	sessions   SessionStore
	ledger     Ledger
	activator  Activator
	catalog    *catalog.Catalog
	converter  *currency.Converter
	card       CardProcessor
	mobile     MobileMoneyProcessor
	db         TxBeginner
	notifier   Notifier
	cache      StatusCache
	logger     *zap.Logger
	sessionTTL time.Duration
}

func NewService(
	sessions SessionStore,
	ledger Ledger,
	activator Activator,
	cat *catalog.Catalog,
	converter *currency.Converter,
	cardProcessor CardProcessor,
	mobileProcessor MobileMoneyProcessor,
	db TxBeginner,
	notifier Notifier,
	cache StatusCache,
	logger *zap.Logger,
	sessionTTL time.Duration,
) *Service {
	return &Service{
		sessions:   sessions,
		ledger:     ledger,
		activator:  activator,
		catalog:    cat,
		converter:  converter,
		card:       cardProcessor,
		mobile:     mobileProcessor,
		db:         db,
		notifier:   notifier,
		cache:      cache,
		logger:     logger,
		sessionTTL: sessionTTL,
	}
}

// InitiateCardIntent creates a session and a processor-side payment intent
// for the plan's canonical price. The session row is durable before the
// processor call; a processor failure marks it failed immediately so no
// session is ever stranded in initiated without a recoverable identifier.
func (s *Service) InitiateCardIntent(ctx context.Context, userID int64, planID string) (*payment.CardIntentResponse, error) {
	pl, ok := s.catalog.Get(planID)
	if !ok {
		return nil, xerrors.ErrInvalidPlan
	}

	sess := &payment.Session{
		CorrelationID:     sessionReference(),
		PlanID:            pl.ID,
		UserID:            userID,
		Provider:          payment.ProviderCard,
		RequestedAmount:   pl.CanonicalPrice,
		RequestedCurrency: pl.CanonicalCurrency,
		Status:            payment.SessionInitiated,
		ExpiresAt:         time.Now().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	intent, err := s.card.CreateIntent(ctx, pl.CanonicalPrice, pl.CanonicalCurrency, sess.CorrelationID)
	if err != nil {
		s.failSession(ctx, sess)
		return nil, err
	}

	if err := s.sessions.AttachCorrelationID(ctx, sess.ID, intent.ID); err != nil {
		s.logger.Error("failed to attach card intent to session",
			zap.Int64("session_id", sess.ID),
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, "session correlation lost")
	}

	// Deliberately no client secret in this log line.
	s.logger.Info("card payment initiated",
		zap.Int64("user_id", userID),
		zap.String("plan_id", pl.ID),
		zap.String("correlation_id", intent.ID),
	)

	return &payment.CardIntentResponse{
		ClientSecret:  intent.ClientSecret,
		CorrelationID: intent.ID,
	}, nil
}

// InitiateMobileMoneyPush creates a session denominated in the network's
// localized currency and triggers the handset prompt. The correlation
// mapping is persisted before control returns: the callback arrives on a
// separate unauthenticated channel, possibly to another process instance.
func (s *Service) InitiateMobileMoneyPush(ctx context.Context, userID int64, planID, phoneNumber string) (*payment.MobileMoneyPushResponse, error) {
	pl, ok := s.catalog.Get(planID)
	if !ok {
		return nil, xerrors.ErrInvalidPlan
	}

	msisdn, err := normalizeMSISDN(phoneNumber)
	if err != nil {
		return nil, err
	}

	sess := &payment.Session{
		CorrelationID:     sessionReference(),
		PlanID:            pl.ID,
		UserID:            userID,
		Provider:          payment.ProviderMobileMoney,
		RequestedAmount:   pl.LocalizedPrice,
		RequestedCurrency: pl.LocalizedCurrency,
		Status:            payment.SessionInitiated,
		ExpiresAt:         time.Now().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	push, err := s.mobile.Push(ctx, msisdn, pl.LocalizedPrice, pl.ID, pl.DisplayName+" subscription")
	if err != nil {
		s.failSession(ctx, sess)
		return nil, err
	}

	if err := s.sessions.AttachCorrelationID(ctx, sess.ID, push.CheckoutRequestID); err != nil {
		s.logger.Error("failed to attach checkout id to session",
			zap.Int64("session_id", sess.ID),
			zap.String("checkout_request_id", push.CheckoutRequestID),
			zap.Error(err),
		)
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, "session correlation lost")
	}

	s.logger.Info("mobile money push initiated",
		zap.Int64("user_id", userID),
		zap.String("plan_id", pl.ID),
		zap.String("correlation_id", push.CheckoutRequestID),
	)

	return &payment.MobileMoneyPushResponse{CorrelationID: push.CheckoutRequestID}, nil
}

// GetStatus reports the session's current status. Purely a read: an
// initiated session past its window is reported as expired but the row is
// left for the sweep or a late callback to transition, so polling never
// races a real completion.
func (s *Service) GetStatus(ctx context.Context, correlationID string) (payment.SessionStatus, error) {
	if status, ok := s.cache.Get(ctx, correlationID); ok {
		return status, nil
	}

	sess, err := s.sessions.FindByCorrelationID(ctx, correlationID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return "", xerrors.ErrNotFound
	}
	if err != nil {
		return "", xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if sess.Status.Terminal() {
		s.cache.Set(ctx, correlationID, sess.Status)
		return sess.Status, nil
	}
	if sess.ExpiredAt(time.Now()) {
		return payment.SessionExpired, nil
	}
	return sess.Status, nil
}

// ExpireStaleSessions transitions initiated sessions past their window to
// expired and notifies watchers. Best effort; a late callback losing the
// race to the sweep is absorbed by the terminal-state check.
func (s *Service) ExpireStaleSessions(ctx context.Context) (int, error) {
	expired, err := s.sessions.ExpireStale(ctx, time.Now())
	if err != nil {
		return 0, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	for _, cid := range expired {
		s.notifier.Publish(cid, payment.SessionExpired)
		s.cache.Set(ctx, cid, payment.SessionExpired)
	}
	if len(expired) > 0 {
		s.logger.Info("expired stale payment sessions", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

// RunExpirySweep drives the sweep until the context is cancelled.
func (s *Service) RunExpirySweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireStaleSessions(ctx); err != nil {
				s.logger.Warn("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) failSession(ctx context.Context, sess *payment.Session) {
	if err := s.sessions.UpdateStatus(ctx, sess.ID, payment.SessionFailed); err != nil {
		s.logger.Error("failed to mark session failed after provider error",
			zap.Int64("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

// sessionReference is the placeholder correlation id a session carries until
// the provider issues the real one; it stays on sessions whose provider call
// never succeeded, so every failed row remains addressable.
func sessionReference() string {
	return "psn_" + ulid.Make().String()
}

var msisdnDigits = regexp.MustCompile(`^[0-9]+$`)

// normalizeMSISDN validates a subscriber number and normalizes it to the
// 2547XXXXXXXX form the push API expects.
func normalizeMSISDN(raw string) (string, error) {
	n := strings.TrimSpace(raw)
	n = strings.TrimPrefix(n, "+")
	n = strings.ReplaceAll(n, " ", "")

	if n == "" || !msisdnDigits.MatchString(n) {
		return "", xerrors.ErrInvalidPhoneNumber
	}

	switch {
	case strings.HasPrefix(n, "254") && len(n) == 12:
		return n, nil
	case strings.HasPrefix(n, "0") && len(n) == 10:
		return "254" + n[1:], nil
	case (strings.HasPrefix(n, "7") || strings.HasPrefix(n, "1")) && len(n) == 9:
		return "254" + n, nil
	default:
		return "", xerrors.ErrInvalidPhoneNumber
	}
}
