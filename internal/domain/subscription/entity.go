package subscription

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Subscription is the single logical row per user, latest write wins. It is
// only ever written by the activator, after a completed payment exists.
type Subscription struct {
	UserID      int64     `json:"user_id"`
	PlanID      string    `json:"plan_id"`
	Status      Status    `json:"status"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	UpdatedAt   time.Time `json:"updated_at"`
}
