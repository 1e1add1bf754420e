package state

import (
	"testing"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID             string
	IsTerminal     bool
	OnEnterCalled  bool
	OnExitCalled   bool
	OnUpdateCalled bool
}

func (m *MockState) OnEnter()       { m.OnEnterCalled = true }
func (m *MockState) OnExit()        { m.OnExitCalled = true }
func (m *MockState) OnUpdate()      { m.OnUpdateCalled = true }
func (m *MockState) GetID() string  { return m.ID }
func (m *MockState) Terminal() bool { return m.IsTerminal }

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
	m.OnUpdateCalled = false
}

// MockRoom is a test double for the RoomContext interface.
type MockRoom struct {
	machine Machine

	StartResult       bool
	DeadlinePassed    bool
	RoundAccepted     bool
	Intermission      int
	BeginRoundCalls   int
	PromptCalls       int
	LastChangedTo     string
	ChangeStateCalled bool
}

func (m *MockRoom) GetID() string { return "mock_room" }

func (m *MockRoom) ChangeState(newState State) error {
	m.ChangeStateCalled = true
	m.LastChangedTo = newState.GetID()
	if m.machine != nil {
		return m.machine.ChangeState(newState)
	}
	return nil
}

func (m *MockRoom) TryStart() bool             { return m.StartResult }
func (m *MockRoom) BeginRound()                { m.BeginRoundCalls++ }
func (m *MockRoom) RoundDeadlinePassed() bool  { return m.DeadlinePassed }
func (m *MockRoom) CurrentRoundAccepted() bool { return m.RoundAccepted }
func (m *MockRoom) PromptChoices()             { m.PromptCalls++ }
func (m *MockRoom) IntermissionTicks() int     { return m.Intermission }

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseMachine(initialState)
	initialState.reset() // Reset after initialization

	err := sm.ChangeState(nextState)
	if err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}

	if !initialState.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}

	if !nextState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}

	if sm.GetCurrentState() != nextState {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_TerminalRejectsTransition(t *testing.T) {
	terminal := &MockState{ID: "terminal", IsTerminal: true}
	next := &MockState{ID: "next"}

	sm := NewBaseMachine(terminal)

	err := sm.ChangeState(next)
	if err != ErrMachineTerminated {
		t.Fatalf("Expected ErrMachineTerminated, got: %v", err)
	}

	if sm.GetCurrentState() != terminal {
		t.Error("Machine should remain in the terminal state")
	}
	if terminal.OnExitCalled {
		t.Error("OnExit should not be called on a terminal state")
	}
	if next.OnEnterCalled {
		t.Error("OnEnter should not be called after a rejected transition")
	}
}

func TestAwaitingReadyState_StartsRoundWhenReady(t *testing.T) {
	room := &MockRoom{StartResult: false}
	awaiting := NewAwaitingReadyState(room)
	room.machine = NewBaseMachine(awaiting)

	awaiting.OnUpdate()
	if room.ChangeStateCalled {
		t.Fatal("Should not transition before the room reports ready")
	}

	room.StartResult = true
	awaiting.OnUpdate()

	if room.LastChangedTo != StateRound {
		t.Errorf("Expected transition to %s, got %s", StateRound, room.LastChangedTo)
	}
	if room.BeginRoundCalls != 1 {
		t.Errorf("Expected BeginRound to run once on round entry, got %d", room.BeginRoundCalls)
	}
}

func TestRoundState_PromptsOnceAfterDeadline(t *testing.T) {
	room := &MockRoom{}
	round := NewRoundState(room)

	round.OnUpdate()
	if room.PromptCalls != 0 {
		t.Fatal("Should not prompt before the deadline")
	}

	room.DeadlinePassed = true
	round.OnUpdate()
	round.OnUpdate()
	round.OnUpdate()

	if room.PromptCalls != 1 {
		t.Errorf("Expected exactly one prompt after the deadline, got %d", room.PromptCalls)
	}
}

func TestRoundState_NoPromptWhenResolved(t *testing.T) {
	room := &MockRoom{DeadlinePassed: true, RoundAccepted: true}
	round := NewRoundState(room)

	round.OnUpdate()

	if room.PromptCalls != 0 {
		t.Error("Should not prompt once the round is already resolved")
	}
}

func TestIntermissionState_CountsDownToNextRound(t *testing.T) {
	room := &MockRoom{Intermission: 3}
	intermission := NewIntermissionState(room)
	intermission.OnEnter()

	intermission.OnUpdate()
	intermission.OnUpdate()
	if room.ChangeStateCalled {
		t.Fatal("Should not transition before the countdown expires")
	}

	intermission.OnUpdate()
	if room.LastChangedTo != StateRound {
		t.Errorf("Expected transition to %s, got %s", StateRound, room.LastChangedTo)
	}
}

func TestEndedState_IsTerminal(t *testing.T) {
	room := &MockRoom{}
	ended := NewEndedState(room)

	if !ended.Terminal() {
		t.Fatal("EndedState must be terminal")
	}

	sm := NewBaseMachine(ended)
	if err := sm.ChangeState(NewRoundState(room)); err != ErrMachineTerminated {
		t.Errorf("Expected ErrMachineTerminated, got: %v", err)
	}
}
