package room

import (
	"time"

	"github.com/wfunc/duelserver/bot"
)

// Broadcaster delivers outbound events. Defined here to break the import
// cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, payload interface{}) error
	SendToSession(sessionID string, msgID uint16, payload interface{}) error
}

// MatchRecorder is the slice of the persistence store the round engine
// needs. All calls are fire-and-forget from the room's point of view.
type MatchRecorder interface {
	CreateMatch(player1, player2 string) (uint, error)
	AppendRound(matchID uint, roundNumber int, player1Hand, player2Hand, winner string) error
	FinalizeMatch(matchID uint, winner, reason string) error
	RecordHand(uid, hand string) error
}

// BotPlayer drives the synthetic opponent's rounds.
type BotPlayer interface {
	PlayRound(window time.Duration, hooks bot.RoundHooks) (cancel func())
}
