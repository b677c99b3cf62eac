// Package mobilemoney talks to the mobile-money network. The network uses a
// push-prompt-then-callback protocol: the server triggers a PIN prompt on the
// payer's handset and the result arrives minutes later on a separate,
// unauthenticated callback channel keyed by the checkout identifier.
package mobilemoney

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	xerrors "lipia-service/internal/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string
	httpc          *http.Client
	logger         *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(baseURL, consumerKey, consumerSecret, shortCode, passkey, callbackURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		shortCode:      shortCode,
		passkey:        passkey,
		callbackURL:    callbackURL,
		httpc:          &http.Client{Timeout: timeout},
		logger:         logger,
	}
}

// PushResult carries the network's correlation identifiers. CheckoutRequestID
// is the load-bearing join key the callback reconciler matches on.
type PushResult struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type pushResponse struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
}

// Push triggers the asynchronous payment prompt on the payer's device.
// Amounts are denominated in the network's native currency, whole units.
func (c *Client) Push(ctx context.Context, msisdn string, amount decimal.Decimal, accountRef, description string) (*PushResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	payload := pushRequest{
		BusinessShortCode: c.shortCode,
		Password:          base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + timestamp)),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.Round(0).String(),
		PartyA:            msisdn,
		PartyB:            c.shortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       c.callbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("mobile money network unreachable", zap.Error(err))
		return nil, xerrors.Wrap(xerrors.ErrProviderUnavailable, "push failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("mobile money push rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("account_reference", accountRef),
		)
		return nil, xerrors.Wrap(xerrors.ErrProviderUnavailable,
			fmt.Sprintf("mobile money network returned %d", resp.StatusCode))
	}

	var pr pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrProviderUnavailable, "undecodable push response")
	}
	if pr.ResponseCode != "0" || pr.CheckoutRequestID == "" {
		c.logger.Warn("mobile money push not accepted",
			zap.String("response_code", pr.ResponseCode),
			zap.String("response_desc", pr.ResponseDesc),
		)
		return nil, xerrors.Wrap(xerrors.ErrProviderUnavailable, "push not accepted")
	}

	c.logger.Info("mobile money push accepted",
		zap.String("checkout_request_id", pr.CheckoutRequestID),
		zap.String("account_reference", accountRef),
	)
	return &PushResult{
		MerchantRequestID: pr.MerchantRequestID,
		CheckoutRequestID: pr.CheckoutRequestID,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken returns a cached OAuth token, refreshing it shortly before
// expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", xerrors.Wrap(xerrors.ErrProviderUnavailable, "token fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", xerrors.Wrap(xerrors.ErrProviderUnavailable,
			fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil || tr.AccessToken == "" {
		return "", xerrors.Wrap(xerrors.ErrProviderUnavailable, "undecodable token response")
	}

	ttl := 3600 * time.Second
	if secs, err := time.ParseDuration(tr.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}

	c.token = tr.AccessToken
	c.tokenExp = time.Now().Add(ttl - 30*time.Second)
	return c.token, nil
}
