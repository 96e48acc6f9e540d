package workflow

// State is a claim lifecycle state
type State string

const (
	StateSubmitted State = "SUBMITTED"
	StateInReview  State = "IN_REVIEW"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StatePaidOut   State = "PAID_OUT"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known claim state.
// It must not depend on package-level variables: the claim graph is
// configured during package initialization.
func (s State) IsValid() bool {
	switch s {
	case StateSubmitted, StateInReview, StateApproved, StateRejected, StatePaidOut:
		return true
	default:
		return false
	}
}

// ParseState converts a stored status string into a State
func ParseState(value string) (State, error) {
	s := State(value)
	if !s.IsValid() {
		return "", ErrInvalidState
	}
	return s, nil
}
