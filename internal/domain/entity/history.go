package entity

import "time"

// ClaimHistory is one entry of a claim's transition audit trail
type ClaimHistory struct {
	ID             int64     `json:"id"`
	ClaimID        string    `json:"claim_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Action         string    `json:"action"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
