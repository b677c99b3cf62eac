package payment

// CardIntentRequest initiates a card payment for a catalog plan. The user is
// resolved at the HTTP boundary and never read from ambient state.
type CardIntentRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

type CardIntentResponse struct {
	ClientSecret  string `json:"client_secret"`
	CorrelationID string `json:"correlation_id"`
}

type MobileMoneyPushRequest struct {
	PlanID      string `json:"plan_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

type MobileMoneyPushResponse struct {
	CorrelationID string `json:"correlation_id"`
}

type StatusResponse struct {
	Status SessionStatus `json:"status"`
}
