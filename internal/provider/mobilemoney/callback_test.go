package mobilemoney

import (
	"testing"
	"time"

	xerrors "lipia-service/internal/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 300000.00},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20250901121530},
					{"Name": "PhoneNumber", "Value": 254708374149}
				]
			}
		}
	}
}`

const failureCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 1032,
			"ResultDesc": "Request cancelled by user."
		}
	}
}`

func TestParseCallbackSuccess(t *testing.T) {
	cb, err := ParseCallback([]byte(successCallback))
	require.NoError(t, err)

	assert.True(t, cb.Success())
	assert.Equal(t, "ws_CO_191220191020363925", cb.CheckoutRequestID)

	receipt, err := cb.Receipt()
	require.NoError(t, err)
	assert.Equal(t, "NLJ7RT61SV", receipt.TransactionID)
	assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(300000)))
	assert.Equal(t, "254708374149", receipt.PhoneNumber)

	eat := time.FixedZone("EAT", 3*60*60)
	assert.Equal(t, time.Date(2025, 9, 1, 12, 15, 30, 0, eat).Unix(), receipt.PaidAt.Unix())
}

func TestParseCallbackFailure(t *testing.T) {
	cb, err := ParseCallback([]byte(failureCallback))
	require.NoError(t, err)

	assert.False(t, cb.Success())
	assert.Equal(t, 1032, cb.ResultCode)
	assert.Equal(t, "Request cancelled by user.", cb.ResultDesc)
}

func TestParseCallbackMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"Body": `,
		"empty body":       `{}`,
		"no stkCallback":   `{"Body": {}}`,
		"no checkout id":   `{"Body": {"stkCallback": {"ResultCode": 0}}}`,
		"wrong root shape": `[1, 2, 3]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCallback([]byte(body))
			assert.True(t, xerrors.Is(err, xerrors.ErrMalformedCallback))
		})
	}
}

func TestReceiptMissingMetadata(t *testing.T) {
	cb := &StkCallback{CheckoutRequestID: "ws_1", ResultCode: 0}

	_, err := cb.Receipt()
	assert.True(t, xerrors.Is(err, xerrors.ErrMalformedCallback))
}

func TestReceiptMissingTransactionID(t *testing.T) {
	cb := &StkCallback{
		CheckoutRequestID: "ws_1",
		CallbackMetadata: &CallbackMetadata{Item: []MetadataItem{
			{Name: "Amount", Value: 1000.0},
		}},
	}

	_, err := cb.Receipt()
	assert.True(t, xerrors.Is(err, xerrors.ErrMalformedCallback))
}

func TestReceiptMissingAmount(t *testing.T) {
	cb := &StkCallback{
		CheckoutRequestID: "ws_1",
		CallbackMetadata: &CallbackMetadata{Item: []MetadataItem{
			{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
		}},
	}

	_, err := cb.Receipt()
	assert.True(t, xerrors.Is(err, xerrors.ErrMalformedCallback))
}

func TestReceiptAmountAsString(t *testing.T) {
	cb := &StkCallback{
		CheckoutRequestID: "ws_1",
		CallbackMetadata: &CallbackMetadata{Item: []MetadataItem{
			{Name: "Amount", Value: "150000"},
			{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
		}},
	}

	receipt, err := cb.Receipt()
	require.NoError(t, err)
	assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(150000)))
}
