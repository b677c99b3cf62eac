// Package card talks to the card-network processor. The processor uses a
// client-confirmed payment-intent protocol: the server creates an intent and
// hands the browser a single-use client secret; confirmation arrives later
// via the processor's signed webhook.
package card

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	xerrors "lipia-service/internal/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Intent is the processor-side payment intent. The client secret is
// single-use browser credential material and must never be logged.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type createIntentRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
}

// CreateIntent creates a payment intent for the given amount. One bounded
// outbound call, no retry; retries are the caller's responsibility.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, reference string) (*Intent, error) {
	payload := createIntentRequest{
		AmountMinor: amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:    currency,
		Reference:   reference,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("card processor unreachable", zap.Error(err))
		return nil, xerrors.Wrap(xerrors.ErrProviderUnavailable, "intent creation failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("card processor rejected intent",
			zap.Int("status", resp.StatusCode),
			zap.String("reference", reference),
		)
		return nil, xerrors.Wrap(xerrors.ErrProviderUnavailable,
			fmt.Sprintf("card processor returned %d", resp.StatusCode))
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrProviderUnavailable, "undecodable intent response")
	}
	if intent.ID == "" || intent.ClientSecret == "" {
		return nil, xerrors.Wrap(xerrors.ErrProviderUnavailable, "incomplete intent response")
	}

	c.logger.Info("card intent created",
		zap.String("intent_id", intent.ID),
		zap.String("reference", reference),
	)
	return &intent, nil
}
