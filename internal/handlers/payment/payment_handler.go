package payment

import (
	"context"
	"io"
	"net/http"
	"strconv"

	domain "lipia-service/internal/domain/payment"
	"lipia-service/internal/middleware"
	xerrors "lipia-service/internal/pkg/errors"
	"lipia-service/internal/pkg/response"
	"lipia-service/internal/provider/card"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentService is the slice of the payment service the handler needs.
type PaymentService interface {
	InitiateCardIntent(ctx context.Context, userID int64, planID string) (*domain.CardIntentResponse, error)
	InitiateMobileMoneyPush(ctx context.Context, userID int64, planID, phoneNumber string) (*domain.MobileMoneyPushResponse, error)
	GetStatus(ctx context.Context, correlationID string) (domain.SessionStatus, error)
	HandleMobileMoneyCallback(ctx context.Context, body []byte) error
	HandleCardWebhook(ctx context.Context, ev *card.Event) error
}

// PaymentLister serves the payment history endpoint.
type PaymentLister interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Payment, error)
}

type PaymentHandler struct {
	service       PaymentService
	payments      PaymentLister
	webhookSecret string
	logger        *zap.Logger
}

func NewPaymentHandler(service PaymentService, payments PaymentLister, webhookSecret string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:       service,
		payments:      payments,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreateCardIntent starts a card payment for the authenticated user.
func (h *PaymentHandler) CreateCardIntent(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req domain.CardIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.service.InitiateCardIntent(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrInvalidPlan):
			response.Error(c, http.StatusBadRequest, "unknown plan", err)
		case xerrors.Is(err, xerrors.ErrProviderUnavailable):
			response.Error(c, http.StatusBadGateway, "card processor unavailable", err)
		default:
			response.Error(c, http.StatusInternalServerError, "failed to create payment intent", err)
		}
		return
	}

	response.Success(c, http.StatusCreated, "payment intent created", result)
}

// CreateMobileMoneyPush starts a mobile money payment for the authenticated user.
func (h *PaymentHandler) CreateMobileMoneyPush(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req domain.MobileMoneyPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.service.InitiateMobileMoneyPush(c.Request.Context(), userID, req.PlanID, req.PhoneNumber)
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrInvalidPlan):
			response.Error(c, http.StatusBadRequest, "unknown plan", err)
		case xerrors.Is(err, xerrors.ErrInvalidPhoneNumber):
			response.Error(c, http.StatusBadRequest, "invalid phone number", err)
		case xerrors.Is(err, xerrors.ErrProviderUnavailable):
			response.Error(c, http.StatusBadGateway, "mobile money processor unavailable", err)
		default:
			response.Error(c, http.StatusInternalServerError, "failed to initiate push", err)
		}
		return
	}

	response.Success(c, http.StatusCreated, "push initiated", result)
}

// GetStatus reports the current session status for polling clients.
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	correlationID := c.Query("correlation_id")
	if correlationID == "" {
		response.ValidationError(c, "correlation_id is required", nil)
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), correlationID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) || xerrors.Is(err, xerrors.ErrUnknownSession) {
			response.NotFound(c, "unknown payment session")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to read payment status", err)
		return
	}

	response.Success(c, http.StatusOK, "payment status", domain.StatusResponse{Status: status})
}

// MobileMoneyCallback receives the provider's asynchronous payment result.
// The provider retries on any non-200, so every outcome except a store
// failure is acknowledged: a duplicate or unknown callback has nothing
// actionable for the provider and retrying it cannot help.
func (h *PaymentHandler) MobileMoneyCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.ack(c)
		return
	}

	if err := h.service.HandleMobileMoneyCallback(c.Request.Context(), body); err != nil {
		if xerrors.Is(err, xerrors.ErrStoreUnavailable) {
			c.JSON(http.StatusInternalServerError, gin.H{"ack_code": 1, "ack_message": "retry"})
			return
		}
		h.logger.Warn("mobile money callback not applied", zap.Error(err))
	}
	h.ack(c)
}

// CardWebhook receives signed server-side events from the card network.
func (h *PaymentHandler) CardWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.ValidationError(c, "unreadable body", err)
		return
	}

	if !card.VerifySignature(h.webhookSecret, body, c.GetHeader("X-Webhook-Signature")) {
		response.Unauthorized(c, "invalid webhook signature")
		return
	}

	ev, err := card.ParseEvent(body)
	if err != nil {
		response.ValidationError(c, "malformed event", err)
		return
	}

	if err := h.service.HandleCardWebhook(c.Request.Context(), ev); err != nil {
		if xerrors.Is(err, xerrors.ErrStoreUnavailable) {
			response.Error(c, http.StatusInternalServerError, "event not stored", err)
			return
		}
		// Duplicates and unknown intents are final from the sender's side.
		h.logger.Warn("card webhook not applied", zap.Error(err), zap.String("event_type", string(ev.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// ListPayments returns the authenticated user's payment history.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.ValidationError(c, "invalid limit", err)
			return
		}
		limit = n
	}

	result, err := h.payments.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list payments", err)
		return
	}

	response.Success(c, http.StatusOK, "payments retrieved", result)
}

func (h *PaymentHandler) ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ack_code": 0, "ack_message": "received"})
}
