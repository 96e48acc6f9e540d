package workflow

// Trigger is a command that moves a claim between states
type Trigger string

const (
	TriggerStartReview Trigger = "START_REVIEW"
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
	TriggerPayout      Trigger = "PAYOUT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
