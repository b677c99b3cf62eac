package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "lipia-service/internal/domain/payment"
	xerrors "lipia-service/internal/pkg/errors"
	"lipia-service/internal/provider/card"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test"

type stubService struct {
	cardResp     *domain.CardIntentResponse
	cardErr      error
	pushResp     *domain.MobileMoneyPushResponse
	pushErr      error
	status       domain.SessionStatus
	statusErr    error
	callbackErr  error
	webhookErr   error
	callbackBody []byte
	webhookEvent *card.Event
}

func (s *stubService) InitiateCardIntent(ctx context.Context, userID int64, planID string) (*domain.CardIntentResponse, error) {
	return s.cardResp, s.cardErr
}

func (s *stubService) InitiateMobileMoneyPush(ctx context.Context, userID int64, planID, phone string) (*domain.MobileMoneyPushResponse, error) {
	return s.pushResp, s.pushErr
}

func (s *stubService) GetStatus(ctx context.Context, correlationID string) (domain.SessionStatus, error) {
	return s.status, s.statusErr
}

func (s *stubService) HandleMobileMoneyCallback(ctx context.Context, body []byte) error {
	s.callbackBody = body
	return s.callbackErr
}

func (s *stubService) HandleCardWebhook(ctx context.Context, ev *card.Event) error {
	s.webhookEvent = ev
	return s.webhookErr
}

type stubLister struct {
	payments []domain.Payment
	err      error
	lastUser int64
}

func (s *stubLister) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Payment, error) {
	s.lastUser = userID
	return s.payments, s.err
}

func newTestRouter(svc *stubService, lister *stubLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPaymentHandler(svc, lister, testWebhookSecret, zap.NewNop())

	r := gin.New()
	authed := r.Group("/", func(c *gin.Context) {
		c.Set("user_id", int64(7))
		c.Next()
	})
	authed.POST("/payments/card/intent", h.CreateCardIntent)
	authed.POST("/payments/mobile-money/push", h.CreateMobileMoneyPush)
	authed.GET("/payments/status", h.GetStatus)
	authed.GET("/payments", h.ListPayments)
	r.POST("/payments/mobile-money/callback", h.MobileMoneyCallback)
	r.POST("/payments/card/webhook", h.CardWebhook)
	return r
}

func doJSON(r *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateCardIntent(t *testing.T) {
	svc := &stubService{cardResp: &domain.CardIntentResponse{ClientSecret: "pi_1_secret", CorrelationID: "pi_1"}}
	r := newTestRouter(svc, &stubLister{})

	w := doJSON(r, http.MethodPost, "/payments/card/intent", `{"plan_id":"normal"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ClientSecret  string `json:"client_secret"`
			CorrelationID string `json:"correlation_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "pi_1_secret", resp.Data.ClientSecret)
	assert.Equal(t, "pi_1", resp.Data.CorrelationID)
}

func TestCreateCardIntentErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid plan", xerrors.ErrInvalidPlan, http.StatusBadRequest},
		{"provider down", xerrors.ErrProviderUnavailable, http.StatusBadGateway},
		{"store down", xerrors.ErrStoreUnavailable, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubService{cardErr: tc.err}, &stubLister{})
			w := doJSON(r, http.MethodPost, "/payments/card/intent", `{"plan_id":"x"}`)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestCreateCardIntentBadBody(t *testing.T) {
	r := newTestRouter(&stubService{}, &stubLister{})
	w := doJSON(r, http.MethodPost, "/payments/card/intent", `{"plan_id":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMobileMoneyPush(t *testing.T) {
	svc := &stubService{pushResp: &domain.MobileMoneyPushResponse{CorrelationID: "ws_CO_1"}}
	r := newTestRouter(svc, &stubLister{})

	w := doJSON(r, http.MethodPost, "/payments/mobile-money/push", `{"plan_id":"basic","phone_number":"0708374149"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "ws_CO_1")
}

func TestCreateMobileMoneyPushInvalidPhone(t *testing.T) {
	r := newTestRouter(&stubService{pushErr: xerrors.ErrInvalidPhoneNumber}, &stubLister{})
	w := doJSON(r, http.MethodPost, "/payments/mobile-money/push", `{"plan_id":"basic","phone_number":"banana"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStatus(t *testing.T) {
	r := newTestRouter(&stubService{status: domain.SessionConfirmed}, &stubLister{})

	w := doJSON(r, http.MethodGet, "/payments/status?correlation_id=ws_CO_1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"confirmed"`)
}

func TestGetStatusMissingParam(t *testing.T) {
	r := newTestRouter(&stubService{}, &stubLister{})
	w := doJSON(r, http.MethodGet, "/payments/status", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStatusUnknown(t *testing.T) {
	r := newTestRouter(&stubService{statusErr: xerrors.ErrUnknownSession}, &stubLister{})
	w := doJSON(r, http.MethodGet, "/payments/status?correlation_id=nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// The callback endpoint acknowledges everything the provider cannot act on.
func TestMobileMoneyCallbackAlwaysAcks(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"applied", nil},
		{"malformed", xerrors.ErrMalformedCallback},
		{"unknown session", xerrors.ErrUnknownSession},
		{"duplicate", xerrors.ErrDuplicateCallback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubService{callbackErr: tc.err}, &stubLister{})
			w := doJSON(r, http.MethodPost, "/payments/mobile-money/callback", `{"Body":{}}`)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"ack_code":0,"ack_message":"received"}`, w.Body.String())
		})
	}
}

func TestMobileMoneyCallbackStoreFailure(t *testing.T) {
	r := newTestRouter(&stubService{callbackErr: xerrors.ErrStoreUnavailable}, &stubLister{})
	w := doJSON(r, http.MethodPost, "/payments/mobile-money/callback", `{"Body":{}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func signBody(body string) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCardWebhook(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, &stubLister{})

	body := `{"type":"payment_intent.succeeded","data":{"intent_id":"pi_1","amount_minor":100000,"currency":"USD"}}`
	req := httptest.NewRequest(http.MethodPost, "/payments/card/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-Webhook-Signature", signBody(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.webhookEvent)
	assert.Equal(t, card.EventIntentSucceeded, svc.webhookEvent.Type)
	assert.Equal(t, "pi_1", svc.webhookEvent.Data.IntentID)
}

func TestCardWebhookBadSignature(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, &stubLister{})

	body := `{"type":"payment_intent.succeeded","data":{"intent_id":"pi_1"}}`
	req := httptest.NewRequest(http.MethodPost, "/payments/card/webhook", bytes.NewBufferString(body))
	req.Header.Set("X-Webhook-Signature", "deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, svc.webhookEvent)
}

func TestListPayments(t *testing.T) {
	lister := &stubLister{payments: []domain.Payment{{ID: "pay_1", PlanID: "basic"}}}
	r := newTestRouter(&stubService{}, lister)

	w := doJSON(r, http.MethodGet, "/payments?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), lister.lastUser)
	assert.Contains(t, w.Body.String(), "pay_1")
}
