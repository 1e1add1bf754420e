// state/interfaces.go
package state

// RoomContext is the view of a duel room that the round states need. It is
// defined here to break the import cycle between room and state.
//
// Locking contract: every method acquires and releases the room's own lock
// internally; none of them may call ChangeState while still holding it.
type RoomContext interface {
	GetID() string
	ChangeState(newState State) error

	// TryStart reports whether the match should begin, flipping the
	// started flag on the first true result so it fires exactly once.
	TryStart() bool

	// BeginRound advances the round counter, broadcasts round-start and
	// kicks the bot simulator when the opponent is synthetic.
	BeginRound()

	RoundDeadlinePassed() bool
	CurrentRoundAccepted() bool

	// PromptChoices broadcasts the forced-submission request sent when the
	// round deadline expires without both choices in.
	PromptChoices()

	// IntermissionTicks is the number of update ticks between a resolved
	// round and the next round start.
	IntermissionTicks() int
}
