package workflow

// claimGraph is the claim lifecycle:
//
//	SUBMITTED --START_REVIEW--> IN_REVIEW
//	IN_REVIEW --APPROVE--> APPROVED
//	IN_REVIEW --REJECT--> REJECTED
//	APPROVED  --PAYOUT--> PAID_OUT
var claimGraph = newClaimGraph()

func newClaimGraph() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StateSubmitted).
		Permit(TriggerStartReview, StateInReview)
	b.Configure(StateInReview).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)
	b.Configure(StateApproved).
		Permit(TriggerPayout, StatePaidOut)
	return b
}

// NewClaimMachine returns a claim lifecycle machine positioned at current
func NewClaimMachine(current State) StateMachine {
	return claimGraph.Build(current)
}
