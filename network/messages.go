// network/messages.go
package network

import (
	"github.com/wfunc/duelserver/game"
)

// PlayerInfo is the identity payload the client sends when queueing or
// joining a room. The uid comes from the external identity provider and is
// trusted as-is.
type PlayerInfo struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	PhotoURL string `json:"photoURL"`
	Elo      int    `json:"elo"`
}

type JoinQueueRequest struct {
	Player    PlayerInfo `json:"player"`
	QueueType game.Mode  `json:"queueType"`
}

type CreateRoomRequest struct {
	Player PlayerInfo `json:"player"`
}

type JoinRoomRequest struct {
	RoomID string     `json:"roomId"`
	Player PlayerInfo `json:"player"`
}

type RejoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type ReadyRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type SubmitChoiceRequest struct {
	RoomID   string    `json:"roomId"`
	PlayerID string    `json:"playerId"`
	Choice   game.Move `json:"choice"`
}

// ShowHandRequest is the cosmetic bluffing signal. Hand is nullable: nil
// means the player hid their hand again.
type ShowHandRequest struct {
	RoomID   string  `json:"roomId"`
	PlayerID string  `json:"playerId"`
	Hand     *string `json:"hand"`
}

type RoomCreatedEvent struct {
	RoomID string `json:"roomId"`
}

// ErrorEvent carries a human-readable reason plus a machine-checkable code.
// Always delivered per-connection, never broadcast.
type ErrorEvent struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Error codes.
const (
	CodeRoomNotFound    = "ROOM_NOT_FOUND"
	CodeRoomFull        = "ROOM_FULL"
	CodeGameNotFound    = "GAME_NOT_FOUND"
	CodePlayerNotInGame = "PLAYER_NOT_IN_GAME"
)

type RoundStartEvent struct {
	Round  int   `json:"round"`
	EndsAt int64 `json:"endsAt"` // unix milliseconds
}

type OpponentShownHandEvent struct {
	Hand *string `json:"hand"`
}

type RoundResultsEvent struct {
	Round   int                  `json:"round"`
	Choices map[string]game.Move `json:"choices"`
	Winner  string               `json:"winner"` // uid or "draw"
	Score   map[string]int       `json:"score"`
}

type MatchEndEvent struct {
	FinalScore map[string]int `json:"finalScore"`
	Winner     string         `json:"winner"`
	Reason     string         `json:"reason,omitempty"`
}
