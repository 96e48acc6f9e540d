package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestClaimGraph_ConfiguredAtLoad(t *testing.T) {
	if claimGraph == nil {
		t.Fatal("claim graph was not built during package initialization")
	}

	for _, state := range []State{StateSubmitted, StateInReview, StateApproved, StateRejected, StatePaidOut} {
		if !state.IsValid() {
			t.Errorf("State(%s).IsValid() = false, want true", state)
		}
	}

	if !NewClaimMachine(StateSubmitted).CanFire(TriggerStartReview) {
		t.Error("SUBMITTED should permit START_REVIEW")
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    State
		wantErr bool
	}{
		{"submitted", "SUBMITTED", StateSubmitted, false},
		{"paid out", "PAID_OUT", StatePaidOut, false},
		{"lower case", "submitted", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseState(tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidState) {
					t.Errorf("ParseState() error = %v, want ErrInvalidState", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseState() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	t.Run("configure", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Configure() should panic on invalid state")
			}
		}()
		NewBuilder().Configure(State("INVALID"))
	})

	t.Run("build", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Build() should panic on invalid initial state")
			}
		}()
		NewBuilder().Build(State(""))
	})

	t.Run("permit target", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Permit() should panic on invalid target state")
			}
		}()
		NewBuilder().Configure(StateSubmitted).Permit(TriggerStartReview, State("NOPE"))
	})
}

func TestStateConfiguration_PermitReplacesTarget(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateInReview).
		Permit(TriggerApprove, StateRejected).
		Permit(TriggerApprove, StateApproved)

	machine := builder.Build(StateInReview)
	if err := machine.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() unexpected error: %v", err)
	}
	if machine.State() != StateApproved {
		t.Errorf("State() = %v, want %v", machine.State(), StateApproved)
	}
}

func TestBuild_IsolatedFromLaterConfiguration(t *testing.T) {
	builder := NewBuilder()
	machine := builder.Build(StateSubmitted)

	builder.Configure(StateSubmitted).Permit(TriggerStartReview, StateInReview)

	if machine.CanFire(TriggerStartReview) {
		t.Error("machine built before Configure should not see new transitions")
	}
}

func TestClaimMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		trigger Trigger
		want    State
		wantErr bool
	}{
		{"start review", StateSubmitted, TriggerStartReview, StateInReview, false},
		{"approve", StateInReview, TriggerApprove, StateApproved, false},
		{"reject", StateInReview, TriggerReject, StateRejected, false},
		{"payout", StateApproved, TriggerPayout, StatePaidOut, false},
		{"approve from submitted", StateSubmitted, TriggerApprove, StateSubmitted, true},
		{"review twice", StateInReview, TriggerStartReview, StateInReview, true},
		{"payout from in review", StateInReview, TriggerPayout, StateInReview, true},
		{"payout from rejected", StateRejected, TriggerPayout, StateRejected, true},
		{"reject after approval", StateApproved, TriggerReject, StateApproved, true},
		{"anything from paid out", StatePaidOut, TriggerApprove, StatePaidOut, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewClaimMachine(tt.from)
			err := machine.Fire(context.Background(), tt.trigger)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
				}
			} else if err != nil {
				t.Errorf("Fire() unexpected error: %v", err)
			}

			if machine.State() != tt.want {
				t.Errorf("State() = %v, want %v", machine.State(), tt.want)
			}
		})
	}
}

func TestClaimMachine_PermittedTriggers(t *testing.T) {
	machine := NewClaimMachine(StateInReview)

	got := machine.PermittedTriggers()
	if len(got) != 2 || got[0] != TriggerApprove || got[1] != TriggerReject {
		t.Errorf("PermittedTriggers() = %v, want [APPROVE REJECT]", got)
	}

	if triggers := NewClaimMachine(StatePaidOut).PermittedTriggers(); len(triggers) != 0 {
		t.Errorf("PermittedTriggers() from terminal state = %v, want empty", triggers)
	}
}

func TestClaimMachine_Independent(t *testing.T) {
	a := NewClaimMachine(StateSubmitted)
	b := NewClaimMachine(StateSubmitted)

	if err := a.Fire(context.Background(), TriggerStartReview); err != nil {
		t.Fatalf("Fire() unexpected error: %v", err)
	}

	if b.State() != StateSubmitted {
		t.Errorf("second machine State() = %v, want %v", b.State(), StateSubmitted)
	}
}
