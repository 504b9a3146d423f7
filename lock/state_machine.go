package lock

import (
	"context"

	"github.com/looplab/fsm"
)

// Primary session states. The async exchanges (battery, user creation,
// delete-all, listing) are tracked as pending requests and never move the
// primary state.
var (
	StateIdle               = "IDLE"
	StateConnected          = "CONNECTED"
	StatePairing            = "PAIRING"
	StateAwaitingRandomCode = "AWAITING-RANDOM-CODE"
	StateAuthenticating     = "AUTHENTICATING"
	StateAuthenticated      = "AUTHENTICATED"
)

// AuthStateMachine tracks the pairing and authentication progression of one
// lock session. Callbacks use looplab/fsm naming: enter_AUTHENTICATED,
// enter_IDLE, ...
type AuthStateMachine struct {
	fsm *fsm.FSM
}

func NewAuthStateMachine(callbacks fsm.Callbacks) *AuthStateMachine {
	m := &AuthStateMachine{}

	m.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: "connect", Src: []string{StateIdle}, Dst: StateConnected},
			{Name: "pair", Src: []string{StateConnected, StateAuthenticated}, Dst: StatePairing},
			{Name: "pair_acked", Src: []string{StatePairing}, Dst: StateAwaitingRandomCode},
			{Name: "random_code", Src: []string{StateAwaitingRandomCode}, Dst: StateAuthenticating},
			{Name: "auth_success", Src: []string{StateAuthenticating}, Dst: StateAuthenticated},
			{Name: "auth_failed", Src: []string{StatePairing, StateAwaitingRandomCode, StateAuthenticating}, Dst: StateConnected},
			{Name: "disconnect", Src: []string{StateConnected, StatePairing, StateAwaitingRandomCode, StateAuthenticating, StateAuthenticated}, Dst: StateIdle},
		},
		callbacks,
	)

	return m
}

func (m *AuthStateMachine) CurrentState() string {
	return m.fsm.Current()
}

func (m *AuthStateMachine) Connect() error {
	return m.fsm.Event(context.Background(), "connect")
}

func (m *AuthStateMachine) Pair() error {
	return m.fsm.Event(context.Background(), "pair")
}

func (m *AuthStateMachine) PairAcked() error {
	return m.fsm.Event(context.Background(), "pair_acked")
}

func (m *AuthStateMachine) RandomCode() error {
	return m.fsm.Event(context.Background(), "random_code")
}

func (m *AuthStateMachine) AuthSuccess() error {
	return m.fsm.Event(context.Background(), "auth_success")
}

func (m *AuthStateMachine) AuthFailed() error {
	return m.fsm.Event(context.Background(), "auth_failed")
}

func (m *AuthStateMachine) Disconnect() error {
	return m.fsm.Event(context.Background(), "disconnect")
}
