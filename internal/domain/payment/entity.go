package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Provider string

const (
	ProviderCard        Provider = "card"
	ProviderMobileMoney Provider = "mobile_money"
)

type SessionStatus string

const (
	SessionInitiated SessionStatus = "initiated"
	SessionConfirmed SessionStatus = "confirmed"
	SessionFailed    SessionStatus = "failed"
	SessionExpired   SessionStatus = "expired"
)

// Terminal reports whether the status is final. Terminal sessions are never
// written again; this is the idempotency boundary for redelivered callbacks.
func (s SessionStatus) Terminal() bool {
	return s == SessionConfirmed || s == SessionFailed || s == SessionExpired
}

// Session is the durable record of one payment attempt, created before the
// external provider call and keyed by the provider-issued correlation ID.
// It is the join key the callback reconciler depends on.
type Session struct {
	ID                int64           `json:"id"`
	CorrelationID     string          `json:"correlation_id"`
	PlanID            string          `json:"plan_id"`
	UserID            int64           `json:"user_id"`
	Provider          Provider        `json:"provider"`
	RequestedAmount   decimal.Decimal `json:"requested_amount"`
	RequestedCurrency string          `json:"requested_currency"`
	Status            SessionStatus   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
}

// ExpiredAt reports whether an initiated session has outlived its window.
// Callers must not treat this as a state transition; only the reconciler or
// the background sweep writes the terminal status.
func (s *Session) ExpiredAt(now time.Time) bool {
	return s.Status == SessionInitiated && now.After(s.ExpiresAt)
}

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is an append-only ledger row, at most one per terminal session.
// Amount is always in the canonical currency; the provider transaction ID
// carries a partial unique constraint so a redelivered success callback can
// never produce a second completed row.
type Payment struct {
	ID                    string                 `json:"id"`
	UserID                int64                  `json:"user_id"`
	PlanID                string                 `json:"plan_id"`
	Amount                decimal.Decimal        `json:"amount"`
	Currency              string                 `json:"currency"`
	Provider              Provider               `json:"provider"`
	ProviderTransactionID string                 `json:"provider_transaction_id"`
	Status                PaymentStatus          `json:"status"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
}
