package billing

// CancelSubscriptionRequest is the cancel endpoint payload.
type CancelSubscriptionRequest struct {
	Immediate bool `json:"immediate"`
}

// StartTrialRequest is the trial endpoint payload.
type StartTrialRequest struct {
	PlanID    string `json:"plan_id" binding:"required"`
	TrialDays int    `json:"trial_days"`
}

// GetPlansResponse wraps the plan catalog.
type GetPlansResponse struct {
	Plans []*Plan `json:"plans"`
}
