package subscription

import (
	"net/http"

	"lipia-service/internal/middleware"
	xerrors "lipia-service/internal/pkg/errors"
	"lipia-service/internal/pkg/response"
	service "lipia-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	activator *service.Activator
}

func NewSubscriptionHandler(activator *service.Activator) *SubscriptionHandler {
	return &SubscriptionHandler{activator: activator}
}

// GetCurrent returns the authenticated user's subscription, if any.
func (h *SubscriptionHandler) GetCurrent(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	sub, err := h.activator.Current(c.Request.Context(), userID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "no subscription found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", sub)
}
