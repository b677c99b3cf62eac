package mobilemoney

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	xerrors "lipia-service/internal/pkg/errors"

	"github.com/shopspring/decimal"
)

// Callback payload shapes. Delivery is at-least-once: the network resends
// until it receives an acknowledgement, so the same body can arrive twice.
type callbackEnvelope struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// ParseCallback decodes a raw callback body. A body without the expected
// top-level structure or a checkout identifier is malformed; the caller
// acknowledges it without persisting anything.
func ParseCallback(body []byte) (*StkCallback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrMalformedCallback, "undecodable callback body")
	}
	cb := env.Body.StkCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, xerrors.Wrap(xerrors.ErrMalformedCallback, "callback missing stkCallback or checkout id")
	}
	return cb, nil
}

// Success reports whether the payer completed the payment.
func (cb *StkCallback) Success() bool {
	return cb.ResultCode == 0
}

// Receipt is the transaction detail extracted from a successful callback's
// metadata item list.
type Receipt struct {
	TransactionID string
	Amount        decimal.Decimal
	PhoneNumber   string
	PaidAt        time.Time
}

// Receipt extracts the receipt from the metadata items. Transaction id and
// amount are mandatory; a success callback without them is malformed.
func (cb *StkCallback) Receipt() (*Receipt, error) {
	if cb.CallbackMetadata == nil {
		return nil, xerrors.Wrap(xerrors.ErrMalformedCallback, "success callback missing metadata")
	}

	r := &Receipt{PaidAt: time.Now()}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			if s, ok := item.Value.(string); ok {
				r.TransactionID = s
			}
		case "Amount":
			amount, err := decimalFromValue(item.Value)
			if err != nil {
				return nil, xerrors.Wrap(xerrors.ErrMalformedCallback, "unparseable amount")
			}
			r.Amount = amount
		case "PhoneNumber":
			r.PhoneNumber = stringFromValue(item.Value)
		case "TransactionDate":
			if ts, err := timeFromValue(item.Value); err == nil {
				r.PaidAt = ts
			}
		}
	}

	if r.TransactionID == "" {
		return nil, xerrors.Wrap(xerrors.ErrMalformedCallback, "success callback missing transaction id")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, xerrors.Wrap(xerrors.ErrMalformedCallback, "success callback missing amount")
	}
	return r, nil
}

func decimalFromValue(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		return decimal.NewFromString(val)
	case json.Number:
		return decimal.NewFromString(val.String())
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}

func stringFromValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// timeFromValue parses the network's compact numeric timestamp
// (yyyyMMddHHmmss, East Africa time).
func timeFromValue(v interface{}) (time.Time, error) {
	s := stringFromValue(v)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	eat := time.FixedZone("EAT", 3*60*60)
	return time.ParseInLocation("20060102150405", s, eat)
}
