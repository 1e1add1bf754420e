package state

import (
	"errors"
	"sync"
)

// 状态机接口
type Machine interface {
	ChangeState(state State) error
	GetCurrentState() State
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	OnUpdate()
	GetID() string
	Terminal() bool
}

// ErrMachineTerminated is returned when a transition is attempted out of a
// terminal state.
var ErrMachineTerminated = errors.New("state machine reached a terminal state")

// BaseMachine drives the room's round phases. Transitions out of a terminal
// state are rejected so a stale timer or tick firing after match end cannot
// restart play.
type BaseMachine struct {
	currentState State
	mutex        sync.RWMutex
}

func NewBaseMachine(initialState State) *BaseMachine {
	machine := &BaseMachine{
		currentState: initialState,
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.currentState.Terminal() {
		return ErrMachineTerminated
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}
