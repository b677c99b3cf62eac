package card

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	xerrors "lipia-service/internal/pkg/errors"
)

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Event is the processor's server-side confirmation, delivered signed to the
// webhook endpoint.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	IntentID      string `json:"intent_id"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw body against
// the shared webhook secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseEvent decodes a webhook body. Unknown event types are not an error
// here; the caller decides whether to act on them.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrMalformedCallback, "undecodable webhook body")
	}
	if ev.Type == "" || ev.Data.IntentID == "" {
		return nil, xerrors.Wrap(xerrors.ErrMalformedCallback, "webhook missing type or intent id")
	}
	return &ev, nil
}
