// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/wfunc/duelserver/models"
)

// Store is the durable record of finished rounds and matches. Every caller
// treats it as best-effort: a write failure is logged and never interrupts
// gameplay.
type Store interface {
	UpsertPlayer(uid, username, photoURL string, elo int) error
	GetPlayer(uid string) (*models.PlayerProfile, error)
	CreateMatch(player1, player2 string) (uint, error)
	AppendRound(matchID uint, roundNumber int, player1Hand, player2Hand, winner string) error
	FinalizeMatch(matchID uint, winner, reason string) error
	RecordHand(uid, hand string) error
	GetPlayerMatches(uid string, limit int) ([]models.MatchSummary, error)
	GetPlayerStats(uid string) (*models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)
