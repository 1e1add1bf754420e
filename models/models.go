// models/models.go
package models

import (
	"github.com/wfunc/duelserver/game"
)

// PlayerSnapshot is the client-facing view of one duel slot. The bot flag
// is deliberately never serialized: decoy opponents present as humans.
type PlayerSnapshot struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	PhotoURL string `json:"photoURL"`
	Elo      int    `json:"elo"`
	IsBot    bool   `json:"-"`
}

// RoomSnapshot is the full session state sent on match-found and
// rejoin-success so a client can render or resume from scratch.
type RoomSnapshot struct {
	RoomID      string           `json:"roomId"`
	Mode        game.Mode        `json:"mode"`
	Players     []PlayerSnapshot `json:"players"`
	Score       map[string]int   `json:"score"`
	ReadyCheck  map[string]bool  `json:"readyCheck"`
	Round       int              `json:"round"`
	RoundEndsAt int64            `json:"roundEndsAt,omitempty"` // unix ms
	GameStarted bool             `json:"gameStarted"`
	GameEnded   bool             `json:"gameEnded"`
	Winner      string           `json:"winner,omitempty"`
}

// PlayerProfile is the persisted identity snapshot served back over the
// admin surface.
type PlayerProfile struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	PhotoURL string `json:"photoURL"`
	Elo      int    `json:"elo"`
}

// MatchSummary is one row of a player's match history.
type MatchSummary struct {
	MatchID   uint   `json:"matchId"`
	Opponent  string `json:"opponent"`
	Winner    string `json:"winner"`
	Reason    string `json:"reason,omitempty"`
	Rounds    int    `json:"rounds"`
	CreatedAt int64  `json:"createdAt"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	TotalMatches int `json:"total_matches"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
	Draws        int `json:"draws"`
}
