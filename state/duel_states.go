// state/duel_states.go
package state

const (
	StateAwaitingReady = "awaiting_ready"
	StateRound         = "round"
	StateIntermission  = "intermission"
	StateEnded         = "ended"
)

// roomStateBase 房间状态基础结构
type roomStateBase struct {
	id   string
	room RoomContext
}

func (s *roomStateBase) GetID() string  { return s.id }
func (s *roomStateBase) OnEnter()       {}
func (s *roomStateBase) OnExit()        {}
func (s *roomStateBase) OnUpdate()      {}
func (s *roomStateBase) Terminal() bool { return false }

// AwaitingReadyState waits for both humans to ready up. A bot opponent is
// implicitly ready, so a single human ready starts the match.
type AwaitingReadyState struct {
	roomStateBase
}

func NewAwaitingReadyState(room RoomContext) *AwaitingReadyState {
	return &AwaitingReadyState{roomStateBase{id: StateAwaitingReady, room: room}}
}

func (s *AwaitingReadyState) OnUpdate() {
	if s.room.TryStart() {
		s.room.ChangeState(NewRoundState(s.room))
	}
}

// RoundState is one choice-collection window. The deadline prompt fires at
// most once; resolution itself is driven by choice submission, never by the
// deadline.
type RoundState struct {
	roomStateBase
	prompted bool
}

func NewRoundState(room RoomContext) *RoundState {
	return &RoundState{roomStateBase: roomStateBase{id: StateRound, room: room}}
}

func (s *RoundState) OnEnter() {
	s.room.BeginRound()
}

func (s *RoundState) OnUpdate() {
	if s.prompted {
		return
	}
	if s.room.RoundDeadlinePassed() && !s.room.CurrentRoundAccepted() {
		s.room.PromptChoices()
		s.prompted = true
	}
}

// IntermissionState counts down the fixed pause between a round result and
// the next round start.
type IntermissionState struct {
	roomStateBase
	ticks int
}

func NewIntermissionState(room RoomContext) *IntermissionState {
	return &IntermissionState{roomStateBase: roomStateBase{id: StateIntermission, room: room}}
}

func (s *IntermissionState) OnEnter() {
	s.ticks = s.room.IntermissionTicks()
}

func (s *IntermissionState) OnUpdate() {
	s.ticks--
	if s.ticks <= 0 {
		s.room.ChangeState(NewRoundState(s.room))
	}
}

// EndedState is terminal.
type EndedState struct {
	roomStateBase
}

func NewEndedState(room RoomContext) *EndedState {
	return &EndedState{roomStateBase{id: StateEnded, room: room}}
}

func (s *EndedState) Terminal() bool { return true }
